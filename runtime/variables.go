package runtime

import (
	"strings"
)

const (
	InputPrefix   = "input."
	DataPrefix    = "data."
	GlobalsPrefix = "globals."
)

// Variable is a user variable written by a block.
type Variable struct {
	Name    string
	Value   Value
	Capture bool
}

// Variables is the scoped store of one execution. It is not safe for concurrent use;
// each worker owns the store of the record it is running.
type Variables struct {
	input   map[string]string
	data    map[string]string
	globals map[string]string
	user    map[string]*Variable
	order   []string
}

func NewVariables() *Variables {
	return &Variables{
		input:   make(map[string]string),
		data:    make(map[string]string),
		globals: make(map[string]string),
		user:    make(map[string]*Variable),
	}
}

// Get resolves a scoped name. Unprefixed names are user variables.
func (v *Variables) Get(name string) (string, bool) {
	switch {
	case strings.HasPrefix(name, InputPrefix):
		val, ok := v.input[name[len(InputPrefix):]]
		return val, ok
	case strings.HasPrefix(name, DataPrefix):
		val, ok := v.data[name[len(DataPrefix):]]
		return val, ok
	case strings.HasPrefix(name, GlobalsPrefix):
		val, ok := v.globals[name[len(GlobalsPrefix):]]
		return val, ok
	}
	if uv, ok := v.user[name]; ok {
		return uv.Value.String(), true
	}
	return "", false
}

// Lookup returns the typed user variable.
func (v *Variables) Lookup(name string) (Variable, bool) {
	uv, ok := v.user[name]
	if !ok {
		return Variable{}, false
	}
	return *uv, true
}

func (v *Variables) SetUser(name string, value Value, capture bool) {
	if uv, ok := v.user[name]; ok {
		uv.Value = value
		uv.Capture = capture
		return
	}
	v.user[name] = &Variable{Name: name, Value: value, Capture: capture}
	v.order = append(v.order, name)
}

func (v *Variables) SetData(name, value string) {
	v.data[name] = value
}

func (v *Variables) SetInput(name, value string) {
	v.input[name] = value
}

func (v *Variables) SetGlobal(name, value string) {
	v.globals[name] = value
}

// Interpolate replaces every <name> placeholder with its value. Random generators are
// consulted before the store. Placeholders that resolve to nothing stay in the output
// as written, and a '<' without a closing '>' is copied through with the rest of the text.
func (v *Variables) Interpolate(template string) string {
	if !strings.Contains(template, "<") {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))

	rest := template
	for {
		open := strings.IndexByte(rest, '<')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:open])
		rest = rest[open+1:]

		end := strings.IndexByte(rest, '>')
		if end < 0 {
			b.WriteByte('<')
			b.WriteString(rest)
			break
		}

		name := rest[:end]
		rest = rest[end+1:]

		if name == "" {
			b.WriteString("<>")
			continue
		}
		if val, ok := resolveRandom(name); ok {
			b.WriteString(val)
			continue
		}
		if val, ok := v.Get(name); ok {
			b.WriteString(val)
			continue
		}
		b.WriteByte('<')
		b.WriteString(name)
		b.WriteByte('>')
	}

	return b.String()
}

// ResolveInput reads a block's input setting: a variable name when one exists,
// otherwise the setting interpolated as a template.
func (v *Variables) ResolveInput(name string) string {
	if val, ok := v.Get(name); ok {
		return val
	}
	return v.Interpolate(name)
}

// Captures returns the user variables flagged for capture.
func (v *Variables) Captures() map[string]string {
	out := make(map[string]string)
	for _, name := range v.order {
		uv := v.user[name]
		if uv.Capture {
			out[name] = uv.Value.String()
		}
	}
	return out
}

// Snapshot flattens every scope into one map keyed by scoped name.
func (v *Variables) Snapshot() map[string]string {
	out := make(map[string]string, len(v.input)+len(v.data)+len(v.globals)+len(v.user))
	for k, val := range v.input {
		out[InputPrefix+k] = val
	}
	for k, val := range v.data {
		out[DataPrefix+k] = val
	}
	for k, val := range v.globals {
		out[GlobalsPrefix+k] = val
	}
	for k, uv := range v.user {
		out[k] = uv.Value.String()
	}
	return out
}

// Env builds an expression environment. Keys use the flat underscore form of FormatKey,
// and user variables keep their typed values.
func (v *Variables) Env() map[string]any {
	env := make(map[string]any, len(v.input)+len(v.data)+len(v.globals)+len(v.user))
	for k, val := range v.Snapshot() {
		env[FormatKey(k)] = val
	}
	for k, uv := range v.user {
		env[FormatKey(k)] = uv.Value.Any()
	}
	return env
}

// UserNames lists user variables in first-write order.
func (v *Variables) UserNames() []string {
	out := make([]string, len(v.order))
	copy(out, v.order)
	return out
}
