package script

import (
	"context"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/object"
)

// RisorInterpreter wraps Risor's Eval with sandboxing.
// WithoutDefaultGlobals removes os/exec/file builtins; only the injected
// variables are visible to script code.
type RisorInterpreter struct{}

func (i *RisorInterpreter) Eval(ctx context.Context, code string, globals map[string]any) (any, error) {
	result, err := risor.Eval(ctx, code,
		risor.WithoutDefaultGlobals(),
		risor.WithGlobals(convertGlobals(globals)),
	)
	if err != nil {
		return nil, err
	}
	return objectToGo(result), nil
}

// convertGlobals widens typed slices to []any, the only list form the Risor VM
// converts on its own.
func convertGlobals(globals map[string]any) map[string]any {
	result := make(map[string]any, len(globals))
	for k, v := range globals {
		switch t := v.(type) {
		case []string:
			items := make([]any, len(t))
			for i, s := range t {
				items[i] = s
			}
			result[k] = items
		default:
			result[k] = v
		}
	}
	return result
}

// objectToGo recursively converts a Risor object.Object to a native Go value.
func objectToGo(obj object.Object) any {
	if obj == nil {
		return nil
	}

	switch o := obj.(type) {
	case *object.Map:
		goMap := make(map[string]any)
		for k, v := range o.Value() {
			goMap[k] = objectToGo(v)
		}
		return goMap
	case *object.List:
		items := o.Value()
		goSlice := make([]any, len(items))
		for i, v := range items {
			goSlice[i] = objectToGo(v)
		}
		return goSlice
	case *object.NilType:
		return nil
	default:
		// String, Int, Float, Bool: Interface() returns the native Go value
		return obj.Interface()
	}
}
