package blocks

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html"
	"math/rand/v2"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sflowg/blockrunner/runtime"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func (e *Executor) executeStringFunction(execution *runtime.Execution, s runtime.StringFunctionSettings) error {
	vars := execution.Variables
	input := vars.ResolveInput(s.InputVar)
	p1 := vars.Interpolate(s.Param1)
	p2 := vars.Interpolate(s.Param2)

	var out runtime.Value
	switch s.Function {
	case "Replace":
		out = runtime.StringValue(strings.ReplaceAll(input, p1, p2))
	case "Substring":
		out = runtime.StringValue(substring(input, p1, p2))
	case "Trim":
		out = runtime.StringValue(strings.TrimSpace(input))
	case "ToUpper":
		out = runtime.StringValue(cases.Upper(language.Und).String(input))
	case "ToLower":
		out = runtime.StringValue(cases.Lower(language.Und).String(input))
	case "Title":
		out = runtime.StringValue(cases.Title(language.Und).String(input))
	case "URLEncode":
		out = runtime.StringValue(url.QueryEscape(input))
	case "URLDecode":
		decoded, err := url.QueryUnescape(input)
		if err != nil {
			return fmt.Errorf("url decode: %w", err)
		}
		out = runtime.StringValue(decoded)
	case "Base64Encode":
		out = runtime.StringValue(base64.StdEncoding.EncodeToString([]byte(input)))
	case "Base64Decode":
		decoded, err := base64.StdEncoding.DecodeString(input)
		if err != nil {
			decoded = nil
		}
		out = runtime.StringValue(string(decoded))
	case "HTMLEncode":
		out = runtime.StringValue(html.EscapeString(input))
	case "HTMLDecode":
		out = runtime.StringValue(html.UnescapeString(input))
	case "Split":
		sep := p1
		if sep == "" {
			sep = ","
		}
		out = runtime.ListValue(strings.Split(input, sep))
	case "RandomString":
		n, err := strconv.Atoi(p1)
		if err != nil || n <= 0 {
			n = 16
		}
		out = runtime.StringValue(runtime.RandomString(n))
	case "Reverse":
		r := []rune(input)
		slices.Reverse(r)
		out = runtime.StringValue(string(r))
	case "Length":
		out = runtime.IntValue(int64(utf8.RuneCountInString(input)))
	default:
		return fmt.Errorf("unknown string function %q", s.Function)
	}

	vars.SetUser(s.OutputVar, out, s.Capture)
	return nil
}

// substring takes start and length in runes. Out of range values are clamped;
// an empty or invalid length means the rest of the string.
func substring(input, start, length string) string {
	r := []rune(input)
	from, _ := strconv.Atoi(start)
	from = max(0, min(from, len(r)))

	to := len(r)
	if n, err := strconv.Atoi(length); err == nil && n >= 0 {
		to = from + min(n, len(r)-from)
	}
	return string(r[from:to])
}

func (e *Executor) executeListFunction(execution *runtime.Execution, s runtime.ListFunctionSettings) error {
	vars := execution.Variables
	items := listInput(vars, s.InputVar)
	p1 := vars.Interpolate(s.Param1)

	var out runtime.Value
	switch s.Function {
	case "Join":
		sep := p1
		if sep == "" {
			sep = ", "
		}
		out = runtime.StringValue(strings.Join(items, sep))
	case "Sort":
		sorted := slices.Clone(items)
		slices.Sort(sorted)
		out = runtime.ListValue(sorted)
	case "Shuffle":
		shuffled := slices.Clone(items)
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		out = runtime.ListValue(shuffled)
	case "Add":
		out = runtime.ListValue(append(slices.Clone(items), p1))
	case "Remove":
		out = runtime.ListValue(slices.DeleteFunc(slices.Clone(items), func(item string) bool {
			return item == p1
		}))
	case "Deduplicate":
		seen := make(map[string]bool, len(items))
		unique := make([]string, 0, len(items))
		for _, item := range items {
			if !seen[item] {
				seen[item] = true
				unique = append(unique, item)
			}
		}
		out = runtime.ListValue(unique)
	case "RandomItem":
		var item string
		if len(items) > 0 {
			item = items[rand.IntN(len(items))]
		}
		out = runtime.StringValue(item)
	case "Length":
		out = runtime.IntValue(int64(len(items)))
	default:
		return fmt.Errorf("unknown list function %q", s.Function)
	}

	vars.SetUser(s.OutputVar, out, s.Capture)
	return nil
}

// listInput reads a list variable, a JSON array, or a single value as a one-item list.
func listInput(vars *runtime.Variables, name string) []string {
	if v, ok := vars.Lookup(name); ok && v.Value.IsList() {
		return v.Value.List()
	}

	raw := vars.ResolveInput(name)
	if raw == "" {
		return nil
	}
	var arr []any
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		items := make([]string, len(arr))
		for i, a := range arr {
			items[i] = runtime.ValueOf(a).String()
		}
		return items
	}
	return []string{raw}
}
