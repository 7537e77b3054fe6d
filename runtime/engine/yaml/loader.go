package yaml

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sflowg/blockrunner/runtime"
	goyaml "gopkg.in/yaml.v3"
)

// PipelineLoader loads pipeline definitions from YAML files.
type PipelineLoader struct{}

func NewPipelineLoader() *PipelineLoader {
	return &PipelineLoader{}
}

func (l *PipelineLoader) Extensions() []string {
	return []string{"*.yaml", "*.yml"}
}

func (l *PipelineLoader) Load(filePath string) (*runtime.Pipeline, error) {
	yamlFile, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading YAML file: %w", err)
	}
	return LoadPipeline(yamlFile)
}

type pipelineFile struct {
	ID            string         `yaml:"id"`
	Name          string         `yaml:"name"`
	Author        string         `yaml:"author"`
	Blocks        []any          `yaml:"blocks"`
	StartupBlocks []any          `yaml:"startup_blocks"`
	Data          map[string]any `yaml:"data"`
	Proxy         map[string]any `yaml:"proxy"`
	Browser       map[string]any `yaml:"browser"`
	Runner        map[string]any `yaml:"runner"`
	Output        map[string]any `yaml:"output"`
}

// LoadPipeline decodes a pipeline document. Run settings get their defaults even when
// their section is absent; block ids are generated when missing and must be unique.
func LoadPipeline(data []byte) (*runtime.Pipeline, error) {
	var file pipelineFile
	if err := goyaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error unmarshalling YAML: %w", err)
	}

	p := &runtime.Pipeline{
		ID:     file.ID,
		Name:   file.Name,
		Author: file.Author,
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	sections := []struct {
		name   string
		target any
		raw    map[string]any
	}{
		{"data", &p.Data, file.Data},
		{"proxy", &p.Proxy, file.Proxy},
		{"browser", &p.Browser, file.Browser},
		{"runner", &p.Runner, file.Runner},
		{"output", &p.Output, file.Output},
	}
	for _, s := range sections {
		if err := runtime.DecodeSettings(s.target, s.raw); err != nil {
			return nil, fmt.Errorf("invalid %s settings: %w", s.name, err)
		}
	}

	var err error
	if p.StartupBlocks, err = decodeBlocks(file.StartupBlocks, "startup_blocks"); err != nil {
		return nil, err
	}
	if p.Blocks, err = decodeBlocks(file.Blocks, "blocks"); err != nil {
		return nil, err
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline: %w", err)
	}
	return p, nil
}

func decodeBlocks(raw []any, path string) ([]runtime.Block, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	blocks := make([]runtime.Block, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: block must be a mapping, got %T", path, i, item)
		}
		b, err := decodeBlock(m, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func decodeBlock(m map[string]any, path string) (runtime.Block, error) {
	b := runtime.Block{
		ID:       stringField(m, "id"),
		Kind:     runtime.BlockKind(stringField(m, "type")),
		Label:    stringField(m, "label"),
		Disabled: boolField(m, "disabled"),
		SafeMode: boolField(m, "safe_mode"),
	}
	if b.Kind == "" {
		return b, fmt.Errorf("%s: block type is required", path)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Label == "" {
		b.Label = runtime.DefaultLabel(b.Kind)
	}

	raw, _ := m["settings"].(map[string]any)
	settings, err := runtime.DecodeBlockSettings(b.Kind, raw)
	if err != nil {
		return b, fmt.Errorf("%s (%s): %w", path, b.Kind, err)
	}

	// child lists sit next to the settings they belong to
	switch s := settings.(type) {
	case runtime.IfElseSettings:
		if s.TrueBlocks, err = decodeChildren(raw, "true_blocks", path); err != nil {
			return b, err
		}
		if s.FalseBlocks, err = decodeChildren(raw, "false_blocks", path); err != nil {
			return b, err
		}
		settings = s
	case runtime.LoopSettings:
		if s.Blocks, err = decodeChildren(raw, "blocks", path); err != nil {
			return b, err
		}
		settings = s
	case runtime.GroupSettings:
		if s.Blocks, err = decodeChildren(raw, "blocks", path); err != nil {
			return b, err
		}
		settings = s
	}

	b.Settings = settings
	return b, nil
}

func decodeChildren(raw map[string]any, key, path string) ([]runtime.Block, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s.%s: expected a list of blocks, got %T", path, key, v)
	}
	return decodeBlocks(list, path+"."+key)
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}
