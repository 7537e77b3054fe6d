package runtime

import (
	"fmt"
	"time"
)

// Pipeline is a named block tree plus the settings of a run.
type Pipeline struct {
	ID     string
	Name   string
	Author string
	Blocks []Block

	// StartupBlocks run once per worker session; their variables seed globals.*.
	StartupBlocks []Block

	Data    DataSettings
	Proxy   ProxySettings
	Browser BrowserSettings
	Runner  RunnerSettings
	Output  OutputSettings
}

type DataSettings struct {
	Separator    string   `yaml:"separator" default:":"`
	Slices       []string `yaml:"slices" default:"[\"USER\",\"PASS\"]"`
	SkipEmpty    bool     `yaml:"skip_empty" default:"true"`
	WordlistType string   `yaml:"wordlist_type" default:"Credentials"`
}

type ProxyMode string

const (
	ProxyModeNone   ProxyMode = "None"
	ProxyModeRotate ProxyMode = "Rotate"
	ProxyModeSticky ProxyMode = "Sticky"
)

// ProxySource names where proxy lines come from.
type ProxySource struct {
	Type        string `yaml:"type" default:"file" validate:"oneof=file inline"`
	Value       string `yaml:"value" validate:"required"`
	DefaultType string `yaml:"default_type" validate:"proxy_type"`
}

type ProxySettings struct {
	Mode        ProxyMode     `yaml:"mode" default:"None" validate:"oneof=None Rotate Sticky"`
	BanDuration time.Duration `yaml:"ban_duration" default:"5m" validate:"gte=0"`
	Sources     []ProxySource `yaml:"sources" validate:"dive"`
}

type BrowserSettings struct {
	Browser          string `yaml:"browser" default:"chrome"`
	JA3              string `yaml:"ja3"`
	HTTP2Fingerprint string `yaml:"http2_fingerprint"`
	UserAgent        string `yaml:"user_agent"`
}

type RunnerSettings struct {
	Threads int `yaml:"threads" default:"100" validate:"gte=1,lte=10000"`
	Skip    int `yaml:"skip" validate:"gte=0"`
	Take    int `yaml:"take" validate:"gte=0"`

	// MaxRetries caps how often one line is put back; 0 means no cap.
	MaxRetries            int    `yaml:"max_retries" default:"3" validate:"gte=0"`
	CustomStatusName      string `yaml:"custom_status_name" default:"CUSTOM"`
	StartThreadsGradually bool   `yaml:"start_threads_gradually" default:"true"`
	GradualDelayMS        int    `yaml:"gradual_delay_ms" default:"100" validate:"gte=0"`
	HitBuffer             int    `yaml:"hit_buffer" default:"1024" validate:"gte=1"`
}

type OutputFormat string

const (
	FormatTxt  OutputFormat = "txt"
	FormatCSV  OutputFormat = "csv"
	FormatJSON OutputFormat = "json"
)

type FilterType string

const (
	FilterContains   FilterType = "Contains"
	FilterEquals     FilterType = "Equals"
	FilterStartsWith FilterType = "StartsWith"
	FilterEndsWith   FilterType = "EndsWith"
	FilterRegex      FilterType = "MatchesRegex"
	FilterMinLength  FilterType = "MinLength"
	FilterMaxLength  FilterType = "MaxLength"
	FilterNotEmpty   FilterType = "NotEmpty"
)

// CaptureFilter keeps or drops individual captures before they are written.
// VariableName "*" applies the filter to every capture.
type CaptureFilter struct {
	VariableName string     `yaml:"variable_name" default:"*"`
	Type         FilterType `yaml:"type" validate:"oneof=Contains Equals StartsWith EndsWith MatchesRegex MinLength MaxLength NotEmpty"`
	Value        string     `yaml:"value"`
	Negate       bool       `yaml:"negate"`
}

type OutputSettings struct {
	SaveToFile     bool            `yaml:"save_to_file" default:"true"`
	Directory      string          `yaml:"directory" default:"results"`
	Format         OutputFormat    `yaml:"format" default:"txt" validate:"oneof=txt csv json"`
	Template       string          `yaml:"template" default:"{data} | {captures}"`
	IncludeProxy   bool            `yaml:"include_proxy"`
	CaptureFilters []CaptureFilter `yaml:"capture_filters" validate:"dive"`
	SaveToDatabase bool            `yaml:"save_to_database"`
	DatabaseDriver string          `yaml:"database_driver" default:"sqlite" validate:"oneof=sqlite postgres"`
	DatabaseDSN    string          `yaml:"database_dsn" validate:"required_if=SaveToDatabase true"`
}

// Validate checks the tree-wide invariants that per-block settings validation cannot see.
func (p *Pipeline) Validate() error {
	seen := make(map[string]bool)
	var dup error
	check := func(b Block) {
		if dup != nil {
			return
		}
		if b.ID == "" {
			dup = fmt.Errorf("block %q has no id", b.Label)
			return
		}
		if seen[b.ID] {
			dup = fmt.Errorf("duplicate block id %s", b.ID)
			return
		}
		seen[b.ID] = true
	}
	Walk(p.StartupBlocks, check)
	Walk(p.Blocks, check)
	return dup
}
