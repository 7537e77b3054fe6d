package config

import (
	"errors"
	"testing"
)

func lookupFrom(env map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}

func TestParseEnvVar_RequiredVariable(t *testing.T) {
	spec, err := ParseEnvVar("${PROXY_FILE}")
	if err != nil {
		t.Fatalf("ParseEnvVar failed: %v", err)
	}

	if spec.IsLiteral {
		t.Error("Expected IsLiteral=false for env var")
	}
	if spec.VarName != "PROXY_FILE" {
		t.Errorf("Expected VarName='PROXY_FILE', got '%s'", spec.VarName)
	}
	if spec.HasDefault {
		t.Error("Expected HasDefault=false for required variable")
	}
}

func TestParseEnvVar_Defaults(t *testing.T) {
	tests := []struct {
		input           string
		expectedVar     string
		expectedDefault string
	}{
		{"${THREADS:50}", "THREADS", "50"},
		{"${DB_DSN:postgres://localhost:5432/hits}", "DB_DSN", "postgres://localhost:5432/hits"},
		{"${OTLP_ENDPOINT:127.0.0.1:4317}", "OTLP_ENDPOINT", "127.0.0.1:4317"},
		{"${EMPTY:}", "EMPTY", ""},
	}

	for _, test := range tests {
		spec, err := ParseEnvVar(test.input)
		if err != nil {
			t.Errorf("ParseEnvVar(%q) failed: %v", test.input, err)
			continue
		}

		if !spec.HasDefault {
			t.Errorf("ParseEnvVar(%q): expected HasDefault=true", test.input)
		}
		if spec.VarName != test.expectedVar {
			t.Errorf("ParseEnvVar(%q): expected VarName=%q, got %q", test.input, test.expectedVar, spec.VarName)
		}
		if spec.DefaultValue != test.expectedDefault {
			t.Errorf("ParseEnvVar(%q): expected DefaultValue=%q, got %q", test.input, test.expectedDefault, spec.DefaultValue)
		}
	}
}

func TestParseEnvVar_Literals(t *testing.T) {
	tests := []string{
		"",
		"lists/combo.txt",
		"${lowercase}",
		"${123VAR}",
		"${VAR-NAME}",
		"$VAR",
		"${VAR",
		"${}",
		"prefix ${VAR}",
	}

	for _, test := range tests {
		spec, err := ParseEnvVar(test)
		if err != nil {
			t.Errorf("ParseEnvVar(%q) should not error, got: %v", test, err)
			continue
		}

		if !spec.IsLiteral {
			t.Errorf("ParseEnvVar(%q) should treat as literal", test)
		}
		if spec.LiteralValue != test {
			t.Errorf("ParseEnvVar(%q) should preserve value as literal, got %q", test, spec.LiteralValue)
		}
	}
}

func TestEnvVarSpec_Resolve(t *testing.T) {
	lookup := lookupFrom(map[string]string{"THREADS": "200", "BLANK": ""})

	tests := []struct {
		input   string
		want    string
		wantErr error
	}{
		{"${THREADS}", "200", nil},
		{"${THREADS:50}", "200", nil},
		{"${BLANK:fallback}", "", nil},
		{"${UNSET:50}", "50", nil},
		{"${UNSET}", "", ErrMissingEnvVar},
		{"literal", "literal", nil},
	}

	for _, test := range tests {
		spec, _ := ParseEnvVar(test.input)
		got, err := spec.Resolve(lookup)
		if !errors.Is(err, test.wantErr) {
			t.Errorf("Resolve(%q) error = %v, want %v", test.input, err, test.wantErr)
		}
		if got != test.want {
			t.Errorf("Resolve(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestResolveTree(t *testing.T) {
	tree := map[string]any{
		"wordlist": "${WORDLIST}",
		"overrides": map[string]any{
			"threads": "${THREADS:10}",
			"skip":    5,
		},
		"proxies": []any{
			map[string]any{"type": "file", "value": "${PROXIES:proxies.txt}"},
		},
	}

	got, err := ResolveTree(tree, lookupFrom(map[string]string{"WORDLIST": "combo.txt"}))
	if err != nil {
		t.Fatalf("ResolveTree failed: %v", err)
	}

	m := got.(map[string]any)
	if m["wordlist"] != "combo.txt" {
		t.Errorf("Expected wordlist 'combo.txt', got %v", m["wordlist"])
	}
	overrides := m["overrides"].(map[string]any)
	if overrides["threads"] != "10" || overrides["skip"] != 5 {
		t.Errorf("Unexpected overrides: %v", overrides)
	}
	proxy := m["proxies"].([]any)[0].(map[string]any)
	if proxy["value"] != "proxies.txt" {
		t.Errorf("Expected proxy value 'proxies.txt', got %v", proxy["value"])
	}

	if tree["wordlist"] != "${WORDLIST}" {
		t.Error("ResolveTree must not modify its input")
	}
}

func TestResolveTree_MissingVariable(t *testing.T) {
	tree := map[string]any{"telemetry": map[string]any{"endpoint": "${OTLP_ENDPOINT}"}}

	_, err := ResolveTree(tree, lookupFrom(nil))
	if !errors.Is(err, ErrMissingEnvVar) {
		t.Fatalf("Expected ErrMissingEnvVar, got %v", err)
	}
	if want := "telemetry: endpoint: environment variable not set: OTLP_ENDPOINT"; err.Error() != want {
		t.Errorf("Expected error %q, got %q", want, err.Error())
	}
}
