// Package script evaluates the code of Script blocks. Variables of the running
// execution are exposed as globals under their flat underscore names
// (data.SOURCE becomes data_SOURCE).
package script

import (
	"context"
	"fmt"
	"time"
)

const (
	LanguageRisor      = "risor"
	LanguageJavaScript = "javascript"
)

// DefaultTimeout bounds a single evaluation when the context has no earlier deadline.
const DefaultTimeout = 10 * time.Second

// Evaluator dispatches code to the interpreter for its language.
type Evaluator struct {
	risor   *RisorInterpreter
	js      *JSInterpreter
	timeout time.Duration
}

func NewEvaluator() *Evaluator {
	return &Evaluator{
		risor:   &RisorInterpreter{},
		js:      &JSInterpreter{},
		timeout: DefaultTimeout,
	}
}

// Eval runs code and returns its result converted to plain Go values
// (string, int64, float64, bool, []any, map[string]any or nil).
func (e *Evaluator) Eval(ctx context.Context, language, code string, globals map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	switch language {
	case LanguageRisor, "":
		return e.risor.Eval(ctx, code, globals)
	case LanguageJavaScript:
		return e.js.Eval(ctx, code, globals)
	default:
		return nil, fmt.Errorf("unsupported script language %q", language)
	}
}
