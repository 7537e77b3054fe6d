package runtime

import (
	"encoding/json"
	"strconv"
	"strings"
)

type valueKind uint8

const (
	kindString valueKind = iota
	kindList
	kindInt
	kindFloat
	kindBool
)

// Value holds a variable's content. Every kind collapses to a string through String.
type Value struct {
	kind valueKind
	s    string
	list []string
	i    int64
	f    float64
	b    bool
}

func StringValue(s string) Value {
	return Value{kind: kindString, s: s}
}

func IntValue(i int64) Value {
	return Value{kind: kindInt, i: i}
}

func FloatValue(f float64) Value {
	return Value{kind: kindFloat, f: f}
}

func BoolValue(b bool) Value {
	return Value{kind: kindBool, b: b}
}

func ListValue(l []string) Value {
	cp := make([]string, len(l))
	copy(cp, l)
	return Value{kind: kindList, list: cp}
}

// String renders the canonical form: lists join with ", ".
func (v Value) String() string {
	switch v.kind {
	case kindList:
		return strings.Join(v.list, ", ")
	case kindInt:
		return strconv.FormatInt(v.i, 10)
	case kindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case kindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// List returns the items of a list value, or the value itself as a single item.
func (v Value) List() []string {
	if v.kind == kindList {
		cp := make([]string, len(v.list))
		copy(cp, v.list)
		return cp
	}
	return []string{v.String()}
}

func (v Value) IsList() bool {
	return v.kind == kindList
}

// Any returns the value as a plain Go value for script and expression environments.
func (v Value) Any() any {
	switch v.kind {
	case kindList:
		return v.List()
	case kindInt:
		return v.i
	case kindFloat:
		return v.f
	case kindBool:
		return v.b
	default:
		return v.s
	}
}

// ValueOf converts script results and decoded YAML into a Value.
func ValueOf(x any) Value {
	switch t := x.(type) {
	case nil:
		return StringValue("")
	case Value:
		return t
	case string:
		return StringValue(t)
	case []string:
		return ListValue(t)
	case []any:
		items := make([]string, len(t))
		for i, it := range t {
			items[i] = ValueOf(it).String()
		}
		return ListValue(items)
	case int:
		return IntValue(int64(t))
	case int32:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case float32:
		return FloatValue(float64(t))
	case float64:
		return FloatValue(t)
	case bool:
		return BoolValue(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return StringValue("")
		}
		return StringValue(string(b))
	}
}

// SplitList reads a list out of a string: a JSON array if it parses as one,
// otherwise the string split on sep. An empty sep yields the string as a single item.
func SplitList(s, sep string) []string {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "[") {
		var items []any
		if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
			out := make([]string, len(items))
			for i, it := range items {
				out[i] = ValueOf(it).String()
			}
			return out
		}
	}
	if s == "" {
		return nil
	}
	if sep == "" {
		return []string{s}
	}
	return strings.Split(s, sep)
}
