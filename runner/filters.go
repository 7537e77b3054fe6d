package runner

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sflowg/blockrunner/runtime"
)

// ApplyCaptureFilters drops the captures that fail any filter aimed at them.
// Filters never drop the hit itself.
func ApplyCaptureFilters(captures map[string]string, filters []runtime.CaptureFilter) map[string]string {
	if len(filters) == 0 {
		return captures
	}

	out := make(map[string]string, len(captures))
	for name, value := range captures {
		keep := true
		for _, f := range filters {
			if f.VariableName != "*" && f.VariableName != name {
				continue
			}
			if !filterMatches(f, value) {
				keep = false
				break
			}
		}
		if keep {
			out[name] = value
		}
	}
	return out
}

func filterMatches(f runtime.CaptureFilter, value string) bool {
	var ok bool
	switch f.Type {
	case runtime.FilterContains:
		ok = strings.Contains(value, f.Value)
	case runtime.FilterEquals:
		ok = value == f.Value
	case runtime.FilterStartsWith:
		ok = strings.HasPrefix(value, f.Value)
	case runtime.FilterEndsWith:
		ok = strings.HasSuffix(value, f.Value)
	case runtime.FilterRegex:
		re, err := regexp.Compile(f.Value)
		ok = err == nil && re.MatchString(value)
	case runtime.FilterMinLength:
		n, err := strconv.Atoi(f.Value)
		ok = err != nil || utf8.RuneCountInString(value) >= n
	case runtime.FilterMaxLength:
		n, err := strconv.Atoi(f.Value)
		ok = err != nil || utf8.RuneCountInString(value) <= n
	case runtime.FilterNotEmpty:
		ok = value != ""
	default:
		ok = true
	}

	if f.Negate {
		return !ok
	}
	return ok
}
