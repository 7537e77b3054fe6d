package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMissingEnvVar is returned when a ${VAR} reference has no value and no default.
var ErrMissingEnvVar = errors.New("environment variable not set")

// EnvVarSpec is one parsed config value.
type EnvVarSpec struct {
	VarName      string
	HasDefault   bool
	DefaultValue string

	// IsLiteral is set for plain values that reference no variable.
	IsLiteral    bool
	LiteralValue string
}

// envVarPattern matches ${VAR} and ${VAR:default}
var envVarPattern = regexp.MustCompile(`^\$\{([A-Z_][A-Z0-9_]*)(:[^}]*)?\}$`)

// ParseEnvVar parses a config value that may reference an environment variable.
//
//	ParseEnvVar("${PROXY_FILE}")                -> required variable
//	ParseEnvVar("${THREADS:50}")                -> variable with default "50"
//	ParseEnvVar("lists/combo.txt")              -> literal
//
// Anything not matching the whole-value pattern, e.g. "${lower}", is a literal.
func ParseEnvVar(value string) (*EnvVarSpec, error) {
	matches := envVarPattern.FindStringSubmatch(value)
	if matches == nil {
		return &EnvVarSpec{IsLiteral: true, LiteralValue: value}, nil
	}

	spec := &EnvVarSpec{
		VarName:    matches[1],
		HasDefault: matches[2] != "",
	}
	if spec.HasDefault {
		spec.DefaultValue = strings.TrimPrefix(matches[2], ":")
	}

	return spec, nil
}

// LookupFunc has the shape of os.LookupEnv.
type LookupFunc func(name string) (string, bool)

// Resolve returns the value a spec stands for.
func (s *EnvVarSpec) Resolve(lookup LookupFunc) (string, error) {
	if s.IsLiteral {
		return s.LiteralValue, nil
	}
	if v, ok := lookup(s.VarName); ok {
		return v, nil
	}
	if s.HasDefault {
		return s.DefaultValue, nil
	}
	return "", fmt.Errorf("%w: %s", ErrMissingEnvVar, s.VarName)
}

// ResolveTree walks a decoded YAML document and substitutes every string leaf.
// Maps and lists are rebuilt; other scalars pass through.
func ResolveTree(v any, lookup LookupFunc) (any, error) {
	switch node := v.(type) {
	case string:
		spec, err := ParseEnvVar(node)
		if err != nil {
			return nil, err
		}
		return spec.Resolve(lookup)
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			resolved, err := ResolveTree(child, lookup)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(node))
		for i, child := range node {
			resolved, err := ResolveTree(child, lookup)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}
