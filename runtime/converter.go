package runtime

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// mapToStructFromYAML merges a raw YAML map into a settings struct. Field names follow
// the yaml tags, scalars are coerced (e.g. "8" -> int) and durations parse from strings.
func mapToStructFromYAML(m map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "yaml",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToStatusHook,
			headerListHook,
		),
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(m); err != nil {
		return fmt.Errorf("failed to decode map to struct: %w", err)
	}

	return nil
}

// stringToStatusHook normalises status names so "success" and "SUCCESS" both decode.
func stringToStatusHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(Status("")) {
		return data, nil
	}
	st, err := ParseStatus(data.(string))
	if err != nil {
		return nil, err
	}
	return st, nil
}

// headerListHook accepts headers as a mapping, as [name, value] pairs, or as "Name: value" lines.
func headerListHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf([]Header{}) {
		return data, nil
	}

	switch v := data.(type) {
	case map[string]any:
		out := make([]Header, 0, len(v))
		for k, val := range v {
			out = append(out, Header{Name: k, Value: fmt.Sprint(val)})
		}
		return out, nil
	case []any:
		out := make([]Header, 0, len(v))
		for _, item := range v {
			switch h := item.(type) {
			case []any:
				if len(h) != 2 {
					return nil, fmt.Errorf("header pair must have 2 items, got %d", len(h))
				}
				out = append(out, Header{Name: fmt.Sprint(h[0]), Value: fmt.Sprint(h[1])})
			case string:
				name, value, ok := strings.Cut(h, ":")
				if !ok {
					return nil, fmt.Errorf("header %q is not in 'Name: value' form", h)
				}
				out = append(out, Header{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
			case map[string]any:
				out = append(out, Header{Name: fmt.Sprint(h["name"]), Value: fmt.Sprint(h["value"])})
			default:
				return nil, fmt.Errorf("unsupported header entry %T", item)
			}
		}
		return out, nil
	}
	return data, nil
}

// ToStringValueMap renders arbitrary values the way variables stringify them.
func ToStringValueMap(m map[string]any) map[string]string {
	result := make(map[string]string, len(m))
	for key, value := range m {
		result[key] = ValueOf(value).String()
	}
	return result
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
