package blocks

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/sflowg/blockrunner/runtime"
)

func (e *Executor) executeParseLR(execution *runtime.Execution, s runtime.ParseLRSettings) error {
	vars := execution.Variables
	input := vars.ResolveInput(s.InputVar)
	left := vars.Interpolate(s.Left)
	right := vars.Interpolate(s.Right)

	matches := parseLR(input, left, right, s.Recursive, s.CaseInsensitive)
	if s.Recursive {
		vars.SetUser(s.OutputVar, runtime.ListValue(matches), s.Capture)
		return nil
	}

	var out string
	if len(matches) > 0 {
		out = matches[0]
	}
	vars.SetUser(s.OutputVar, runtime.StringValue(out), s.Capture)
	return nil
}

// parseLR returns the text between left and right delimiters. An empty left
// anchors at the start of the input and an empty right at its end.
func parseLR(input, left, right string, recursive, caseInsensitive bool) []string {
	if left == "" && right == "" {
		return []string{input}
	}
	if caseInsensitive {
		return parseLRFold(input, left, right, recursive)
	}

	var out []string
	pos := 0
	for pos <= len(input) {
		start := pos
		if left != "" {
			i := strings.Index(input[pos:], left)
			if i < 0 {
				break
			}
			start = pos + i + len(left)
		}

		end := len(input)
		if right != "" {
			i := strings.Index(input[start:], right)
			if i < 0 {
				break
			}
			end = start + i
		}

		out = append(out, input[start:end])
		if !recursive {
			break
		}
		next := end + len(right)
		if next <= pos {
			break
		}
		pos = next
	}
	return out
}

// parseLRFold matches case-insensitively on the input itself. Folding can change
// byte lengths, so offsets from a lowered copy would not line up.
func parseLRFold(input, left, right string, recursive bool) []string {
	group := "(.*?)"
	if right == "" {
		group = "(.*)"
	}
	re := regexp.MustCompile("(?is)" + regexp.QuoteMeta(left) + group + regexp.QuoteMeta(right))

	if !recursive {
		if m := re.FindStringSubmatch(input); m != nil {
			return []string{m[1]}
		}
		return nil
	}

	var out []string
	for _, m := range re.FindAllStringSubmatch(input, -1) {
		out = append(out, m[1])
	}
	return out
}

func (e *Executor) executeParseRegex(execution *runtime.Execution, s runtime.ParseRegexSettings) error {
	vars := execution.Variables
	input := vars.ResolveInput(s.InputVar)

	pattern := vars.Interpolate(s.Pattern)
	if s.MultiLine {
		pattern = "(?m)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid regex %q: %w", s.Pattern, err)
	}

	groups := re.FindStringSubmatch(input)
	if groups == nil {
		return nil
	}
	vars.SetUser(s.OutputVar, runtime.StringValue(renderGroups(s.OutputFormat, groups)), s.Capture)
	return nil
}

// renderGroups substitutes $0..$n, highest index first so $1 never eats into $10.
func renderGroups(format string, groups []string) string {
	out := format
	for i := len(groups) - 1; i >= 0; i-- {
		out = strings.ReplaceAll(out, "$"+strconv.Itoa(i), groups[i])
	}
	return out
}

func (e *Executor) executeParseJSON(execution *runtime.Execution, s runtime.ParseJSONSettings) error {
	vars := execution.Variables
	input := vars.ResolveInput(s.InputVar)

	parsed, err := gabs.ParseJSON([]byte(input))
	if err != nil {
		return fmt.Errorf("%w: %v", runtime.ErrInvalidJSON, err)
	}

	var out string
	if node, err := parsed.JSONPointer(jsonPointer(vars.Interpolate(s.JSONPath))); err == nil {
		if str, ok := node.Data().(string); ok {
			out = str
		} else {
			out = node.String()
		}
	}
	vars.SetUser(s.OutputVar, runtime.StringValue(out), s.Capture)
	return nil
}

// jsonPointer turns "user.id" into "/user/id". Paths starting with '/' are pointers already.
func jsonPointer(path string) string {
	if path == "" || strings.HasPrefix(path, "/") {
		return path
	}
	var b strings.Builder
	for _, segment := range strings.Split(path, ".") {
		b.WriteByte('/')
		segment = strings.ReplaceAll(segment, "~", "~0")
		b.WriteString(strings.ReplaceAll(segment, "/", "~1"))
	}
	return b.String()
}

func (e *Executor) executeParseCSS(execution *runtime.Execution, s runtime.ParseCSSSettings) error {
	vars := execution.Variables
	input := vars.ResolveInput(s.InputVar)

	matcher, err := cascadia.Compile(vars.Interpolate(s.Selector))
	if err != nil {
		return fmt.Errorf("invalid selector %q: %w", s.Selector, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}

	var out string
	selection := doc.FindMatcher(matcher)
	if s.Index < selection.Length() {
		out, err = selectAttribute(selection.Eq(s.Index), s.Attribute)
		if err != nil {
			return err
		}
	}
	vars.SetUser(s.OutputVar, runtime.StringValue(strings.TrimSpace(out)), s.Capture)
	return nil
}

func selectAttribute(node *goquery.Selection, attribute string) (string, error) {
	switch attribute {
	case "", "innerText", "text":
		return node.Text(), nil
	case "innerHTML", "html":
		return node.Html()
	case "outerHTML":
		return goquery.OuterHtml(node)
	default:
		return node.AttrOr(attribute, ""), nil
	}
}

func (e *Executor) executeParseXPath(execution *runtime.Execution, s runtime.ParseXPathSettings) error {
	vars := execution.Variables
	input := vars.ResolveInput(s.InputVar)

	expr, err := xpath.Compile(vars.Interpolate(s.XPath))
	if err != nil {
		return fmt.Errorf("invalid xpath %q: %w", s.XPath, err)
	}

	doc, err := xmlquery.Parse(strings.NewReader(input))
	if err != nil {
		doc, err = xmlquery.Parse(strings.NewReader("<root>" + input + "</root>"))
		if err != nil {
			return fmt.Errorf("failed to parse XML: %w", err)
		}
	}

	var out string
	switch result := expr.Evaluate(xmlquery.CreateXPathNavigator(doc)).(type) {
	case *xpath.NodeIterator:
		var values []string
		for result.MoveNext() {
			values = append(values, result.Current().Value())
		}
		out = strings.Join(values, ", ")
	case float64:
		out = strconv.FormatFloat(result, 'f', -1, 64)
	case bool:
		out = strconv.FormatBool(result)
	case string:
		out = result
	default:
		out = fmt.Sprint(result)
	}
	vars.SetUser(s.OutputVar, runtime.StringValue(out), s.Capture)
	return nil
}

func (e *Executor) executeParseCookie(execution *runtime.Execution, s runtime.ParseCookieSettings) error {
	vars := execution.Variables
	input := vars.ResolveInput(s.InputVar)
	name := vars.Interpolate(s.CookieName)

	vars.SetUser(s.OutputVar, runtime.StringValue(lookupCookie(input, name)), s.Capture)
	return nil
}

// lookupCookie reads a cookie from a JSON object, falling back to "a=b; c=d" header syntax.
func lookupCookie(input, name string) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(input), &m); err == nil {
		if v, ok := m[name]; ok && v != nil {
			return fmt.Sprint(v)
		}
		return ""
	}

	for _, part := range strings.Split(input, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && strings.TrimSpace(k) == name {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
