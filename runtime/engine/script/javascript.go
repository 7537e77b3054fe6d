package script

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// globals a script must never reach
var blockedGlobals = []string{
	"require",
	"module",
	"exports",
	"process",
	"global",
	"eval",
}

// JSInterpreter runs JavaScript on a fresh goja runtime per evaluation.
type JSInterpreter struct{}

func (i *JSInterpreter) Eval(ctx context.Context, code string, globals map[string]any) (any, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	for _, name := range blockedGlobals {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return nil, fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	for k, v := range globals {
		if err := vm.Set(k, v); err != nil {
			return nil, fmt.Errorf("failed to set global %s: %w", k, err)
		}
	}

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt("execution cancelled")
	})
	defer stop()

	value, err := vm.RunString(code)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, fmt.Errorf("script interrupted: %w", ctx.Err())
		}
		return nil, err
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}
	return value.Export(), nil
}
