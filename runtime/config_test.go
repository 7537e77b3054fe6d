package runtime

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type BasicConfig struct {
	Name    string        `default:"default-name"`
	Threads int           `default:"100"`
	Enabled bool          `default:"true"`
	Timeout time.Duration `default:"30s"`
}

type ValidatorConfig struct {
	HostPort  string `validate:"omitempty,hostname_port"`
	URL       string `validate:"omitempty,url_format"`
	Status    string `validate:"omitempty,status_name"`
	ProxyType string `validate:"proxy_type"`
	Pattern   string `validate:"omitempty,regex"`
}

func TestApplyDefaults(t *testing.T) {
	config := BasicConfig{}
	if err := ApplyDefaults(&config); err != nil {
		t.Fatalf("ApplyDefaults failed: %v", err)
	}

	if config.Name != "default-name" || config.Threads != 100 || !config.Enabled || config.Timeout != 30*time.Second {
		t.Errorf("Unexpected defaults: %+v", config)
	}

	custom := BasicConfig{Name: "custom", Threads: 5}
	if err := ApplyDefaults(&custom); err != nil {
		t.Fatalf("ApplyDefaults failed: %v", err)
	}
	if custom.Name != "custom" || custom.Threads != 5 {
		t.Errorf("Non-zero values should remain unchanged: %+v", custom)
	}

	if err := ApplyDefaults(nil); err == nil {
		t.Error("Expected error for nil config")
	}
}

func TestCustomValidators(t *testing.T) {
	tests := []struct {
		name    string
		config  ValidatorConfig
		wantErr string
	}{
		{"all valid", ValidatorConfig{HostPort: "127.0.0.1:8080", URL: "https://example.com", Status: "ban", ProxyType: "SOCKS5", Pattern: `\d+`}, ""},
		{"empty proxy type", ValidatorConfig{}, ""},
		{"port missing", ValidatorConfig{HostPort: "localhost"}, "hostname_port"},
		{"url without host", ValidatorConfig{URL: "/relative"}, "url_format"},
		{"unknown status", ValidatorConfig{Status: "Maybe"}, "status_name"},
		{"unknown proxy type", ValidatorConfig{ProxyType: "ftp"}, "proxy_type"},
		{"bad regex", ValidatorConfig{Pattern: "(unclosed"}, "regex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(tt.config)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDecodeSettings_HTTPRequest(t *testing.T) {
	var s HTTPRequestSettings
	err := DecodeSettings(&s, map[string]any{
		"url":              "https://example.com/login",
		"method":           "POST",
		"follow_redirects": false,
		"timeout_ms":       "2500",
		"headers":          map[string]any{"Accept": "*/*"},
	})
	if err != nil {
		t.Fatalf("DecodeSettings failed: %v", err)
	}

	if s.Method != "POST" || s.URL != "https://example.com/login" {
		t.Errorf("Unexpected request: %+v", s)
	}
	if s.FollowRedirects {
		t.Error("Explicit false must override the default")
	}
	if !s.SSLVerify || s.MaxRedirects != 8 || s.ResponseVar != "SOURCE" {
		t.Errorf("Defaults not applied: %+v", s)
	}
	if s.TimeoutMS != 2500 {
		t.Errorf("Expected weakly typed timeout 2500, got %d", s.TimeoutMS)
	}
	if len(s.Headers) != 1 || s.Headers[0].Name != "Accept" {
		t.Errorf("Unexpected headers: %+v", s.Headers)
	}
}

func TestDecodeSettings_ValidationFails(t *testing.T) {
	var s HTTPRequestSettings
	err := DecodeSettings(&s, map[string]any{"method": "FETCH", "url": "https://example.com"})
	if err == nil || !strings.Contains(err.Error(), "Method") {
		t.Errorf("Expected Method validation error, got %v", err)
	}

	var d DelaySettings
	if err := DecodeSettings(&d, map[string]any{"min_ms": 500, "max_ms": 100}); err == nil {
		t.Error("Expected error when max_ms < min_ms")
	}
}

func TestDecodeSettings_SliceElementDefaults(t *testing.T) {
	var s KeyCheckSettings
	err := DecodeSettings(&s, map[string]any{
		"keychains": []any{
			map[string]any{
				"result": "success",
				"conditions": []any{
					map[string]any{"source": "data.SOURCE", "value": "Welcome"},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("DecodeSettings failed: %v", err)
	}

	kc := s.Keychains[0]
	if kc.Result != StatusSuccess {
		t.Errorf("Expected normalised Success, got %q", kc.Result)
	}
	if kc.Mode != ModeAnd {
		t.Errorf("Expected default mode And, got %q", kc.Mode)
	}
	if kc.Conditions[0].Comparison != CompareContains {
		t.Errorf("Expected default comparison Contains, got %q", kc.Conditions[0].Comparison)
	}
}

func TestDecodeBlockSettings(t *testing.T) {
	s, err := DecodeBlockSettings(KindParseLR, map[string]any{"left": "pre[", "right": "]post", "output_var": "TOKEN"})
	if err != nil {
		t.Fatalf("DecodeBlockSettings failed: %v", err)
	}

	lr, ok := s.(ParseLRSettings)
	if !ok {
		t.Fatalf("Expected ParseLRSettings value, got %T", s)
	}
	if lr.InputVar != "data.SOURCE" || lr.OutputVar != "TOKEN" {
		t.Errorf("Unexpected settings: %+v", lr)
	}

	if _, err := DecodeBlockSettings("Teleport", nil); !errors.Is(err, ErrUnknownBlock) {
		t.Errorf("Expected ErrUnknownBlock, got %v", err)
	}
}

func TestPrepareConfig(t *testing.T) {
	type required struct {
		Name    string `validate:"required"`
		Threads int    `default:"10" validate:"gte=1"`
	}

	if err := PrepareConfig(&required{Name: "x"}); err != nil {
		t.Errorf("PrepareConfig failed: %v", err)
	}
	if err := PrepareConfig(&required{}); err == nil {
		t.Error("Expected validation error after defaults")
	}
}
