package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sflowg/blockrunner/cli/internal/security"
	"github.com/sflowg/blockrunner/cli/internal/telemetry"
	transport "github.com/sflowg/blockrunner/plugins/http"
	"github.com/sflowg/blockrunner/runtime"
	"gopkg.in/yaml.v3"
)

// FileName is looked up when Load is given a directory.
const FileName = "blockrunner.yaml"

// RunConfig describes one run: which pipeline, which records, and how to drive them.
type RunConfig struct {
	Pipeline string                `yaml:"pipeline" validate:"required"`
	Wordlist string                `yaml:"wordlist" validate:"required"`
	Proxies  []runtime.ProxySource `yaml:"proxies" validate:"dive"`

	// Listen enables the control API, e.g. ":8080".
	Listen    string           `yaml:"listen"`
	Overrides Overrides        `yaml:"overrides"`
	Transport transport.Config `yaml:"transport"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Log       LogConfig        `yaml:"log"`
}

// Overrides replace pipeline settings when non-zero.
type Overrides struct {
	Threads   int               `yaml:"threads" validate:"gte=0,lte=10000"`
	Skip      int               `yaml:"skip" validate:"gte=0"`
	Take      int               `yaml:"take" validate:"gte=0"`
	ProxyMode runtime.ProxyMode `yaml:"proxy_mode" validate:"omitempty,oneof=None Rotate Sticky"`
	OutputDir string            `yaml:"output_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"text" validate:"oneof=text json"`
}

// Default returns a RunConfig with only defaults applied.
func Default() (*RunConfig, error) {
	var cfg RunConfig
	if err := runtime.ApplyDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return &cfg, nil
}

// Load reads a run config file, or FileName inside a directory. ${VAR} references
// are substituted from the environment and relative paths resolve against the
// config's directory, which they may not leave.
func Load(path string) (*RunConfig, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %q: %w", path, err)
	}
	if info.IsDir() {
		path = filepath.Join(path, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run config from %q: %w", path, err)
	}

	cfg, err := Parse(data, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if err := cfg.resolvePaths(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes run config YAML, resolving environment references with lookup.
func Parse(data []byte, lookup LookupFunc) (*RunConfig, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse run config: %w", err)
	}

	resolved, err := ResolveTree(raw, lookup)
	if err != nil {
		return nil, err
	}
	m, _ := resolved.(map[string]any)

	var cfg RunConfig
	if err := runtime.DecodeSettings(&cfg, m); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *RunConfig) resolvePaths(dir string) error {
	var err error
	if c.Pipeline, err = security.ResolveWithin(dir, c.Pipeline); err != nil {
		return fmt.Errorf("invalid pipeline path: %w", err)
	}
	if c.Wordlist, err = security.ResolveWithin(dir, c.Wordlist); err != nil {
		return fmt.Errorf("invalid wordlist path: %w", err)
	}
	if c.Overrides.OutputDir, err = security.ResolveWithin(dir, c.Overrides.OutputDir); err != nil {
		return fmt.Errorf("invalid output directory: %w", err)
	}
	for i := range c.Proxies {
		if c.Proxies[i].Type != "file" {
			continue
		}
		if c.Proxies[i].Value, err = security.ResolveWithin(dir, c.Proxies[i].Value); err != nil {
			return fmt.Errorf("invalid proxy file: %w", err)
		}
	}
	return nil
}

// Apply writes the overrides onto a loaded pipeline.
func (o Overrides) Apply(p *runtime.Pipeline) {
	if o.Threads > 0 {
		p.Runner.Threads = o.Threads
	}
	if o.Skip > 0 {
		p.Runner.Skip = o.Skip
	}
	if o.Take > 0 {
		p.Runner.Take = o.Take
	}
	if o.ProxyMode != "" {
		p.Proxy.Mode = o.ProxyMode
	}
	if o.OutputDir != "" {
		p.Output.Directory = o.OutputDir
	}
}
