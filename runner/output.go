package runner

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/sflowg/blockrunner/runtime"
)

// HitResult is one record that ended in a status worth keeping.
type HitResult struct {
	Data     string            `json:"data"`
	Captures map[string]string `json:"captures"`
	Proxy    string            `json:"proxy"`
}

// OutputWriter appends hits to one file per status, named
// {pipeline}_{status}.{format} inside the output directory.
type OutputWriter struct {
	settings runtime.OutputSettings
	name     string

	mu    sync.Mutex
	sinks map[string]*statusFile
}

type statusFile struct {
	f         *os.File
	w         *bufio.Writer
	csvHeader []string
	count     int
}

func NewOutputWriter(pipelineName string, settings runtime.OutputSettings) *OutputWriter {
	return &OutputWriter{
		settings: settings,
		name:     runtime.SanitizeFileName(pipelineName),
		sinks:    make(map[string]*statusFile),
	}
}

// Write records a hit under the given status name after applying capture filters.
func (o *OutputWriter) Write(status string, hit HitResult) error {
	if !o.settings.SaveToFile {
		return nil
	}
	hit.Captures = ApplyCaptureFilters(hit.Captures, o.settings.CaptureFilters)

	o.mu.Lock()
	defer o.mu.Unlock()

	sink, err := o.open(status)
	if err != nil {
		return err
	}

	switch o.settings.Format {
	case runtime.FormatCSV:
		err = o.writeCSV(sink, hit)
	case runtime.FormatJSON:
		err = o.writeJSON(sink, hit)
	default:
		_, err = sink.w.WriteString(o.formatLine(hit) + "\n")
	}
	if err != nil {
		return fmt.Errorf("failed to write %s hit: %w", status, err)
	}
	return sink.w.Flush()
}

func (o *OutputWriter) open(status string) (*statusFile, error) {
	if sink, ok := o.sinks[status]; ok {
		return sink, nil
	}

	if err := os.MkdirAll(o.settings.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	ext := string(o.settings.Format)
	if ext == "" {
		ext = string(runtime.FormatTxt)
	}
	path := filepath.Join(o.settings.Directory, fmt.Sprintf("%s_%s.%s", o.name, runtime.SanitizeFileName(status), ext))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	sink := &statusFile{f: f, w: bufio.NewWriter(f)}
	if o.settings.Format == runtime.FormatJSON {
		if _, err := sink.w.WriteString("[\n"); err != nil {
			f.Close()
			return nil, err
		}
	}
	o.sinks[status] = sink
	return sink, nil
}

// formatLine renders the txt template. Captures are "k = v" pairs in name order joined by " | ".
func (o *OutputWriter) formatLine(hit HitResult) string {
	keys := sortedKeys(hit.Captures)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + " = " + hit.Captures[k]
	}

	return strings.NewReplacer(
		"{data}", hit.Data,
		"{captures}", strings.Join(pairs, " | "),
		"{proxy}", hit.Proxy,
	).Replace(o.settings.Template)
}

// writeCSV emits the header once per file, from the capture names of the first hit.
func (o *OutputWriter) writeCSV(sink *statusFile, hit HitResult) error {
	w := csv.NewWriter(sink.w)

	if sink.csvHeader == nil {
		sink.csvHeader = sortedKeys(hit.Captures)
		header := append([]string{"data"}, sink.csvHeader...)
		if o.settings.IncludeProxy {
			header = append(header, "proxy")
		}
		if err := w.Write(header); err != nil {
			return err
		}
	}

	row := []string{hit.Data}
	for _, k := range sink.csvHeader {
		row = append(row, hit.Captures[k])
	}
	if o.settings.IncludeProxy {
		row = append(row, hit.Proxy)
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (o *OutputWriter) writeJSON(sink *statusFile, hit HitResult) error {
	if hit.Captures == nil {
		hit.Captures = map[string]string{}
	}
	b, err := json.MarshalIndent(hit, "", "  ")
	if err != nil {
		return err
	}
	if sink.count > 0 {
		if _, err := sink.w.WriteString(",\n"); err != nil {
			return err
		}
	}
	sink.count++
	_, err = sink.w.Write(b)
	return err
}

// Close finishes every open file; JSON files get their closing bracket.
func (o *OutputWriter) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var errs []error
	for status, sink := range o.sinks {
		if o.settings.Format == runtime.FormatJSON {
			if _, err := sink.w.WriteString("\n]\n"); err != nil {
				errs = append(errs, err)
			}
		}
		if err := sink.w.Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := sink.f.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(o.sinks, status)
	}
	return errors.Join(errs...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
