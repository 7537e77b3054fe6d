// Package blocks implements the leaf block kinds. Control flow (IfElse, Loop,
// Group) is walked by runtime.Executor, which hands every other block to Executor.
package blocks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sflowg/blockrunner/runtime"
)

// ScriptEvaluator runs the code of a Script block.
type ScriptEvaluator interface {
	Eval(ctx context.Context, language, code string, globals map[string]any) (any, error)
}

type Executor struct {
	l          *slog.Logger
	conditions runtime.ConditionEvaluator
	scripts    ScriptEvaluator
}

func NewExecutor(l *slog.Logger, conditions runtime.ConditionEvaluator, scripts ScriptEvaluator) *Executor {
	return &Executor{
		l:          l,
		conditions: conditions,
		scripts:    scripts,
	}
}

func (e *Executor) ExecuteBlock(execution *runtime.Execution, b runtime.Block) error {
	switch s := b.Settings.(type) {
	case runtime.HTTPRequestSettings:
		return e.executeHTTP(execution, b, s)
	case runtime.ParseLRSettings:
		return e.executeParseLR(execution, s)
	case runtime.ParseRegexSettings:
		return e.executeParseRegex(execution, s)
	case runtime.ParseJSONSettings:
		return e.executeParseJSON(execution, s)
	case runtime.ParseCSSSettings:
		return e.executeParseCSS(execution, s)
	case runtime.ParseXPathSettings:
		return e.executeParseXPath(execution, s)
	case runtime.ParseCookieSettings:
		return e.executeParseCookie(execution, s)
	case runtime.KeyCheckSettings:
		return e.executeKeyCheck(execution, b, s)
	case runtime.DelaySettings:
		return e.executeDelay(execution, s)
	case runtime.SetVariableSettings:
		return e.executeSetVariable(execution, s)
	case runtime.LogSettings:
		return e.executeLog(execution, b, s)
	case runtime.ClearCookiesSettings:
		return e.executeClearCookies(execution)
	case runtime.StringFunctionSettings:
		return e.executeStringFunction(execution, s)
	case runtime.ListFunctionSettings:
		return e.executeListFunction(execution, s)
	case runtime.CryptoFunctionSettings:
		return e.executeCryptoFunction(execution, s)
	case runtime.ScriptSettings:
		return e.executeScript(execution, s)
	case runtime.GenerateGUIDSettings:
		return e.executeGenerateGUID(execution, s)
	default:
		return fmt.Errorf("%w: %s", runtime.ErrUnknownBlock, b.Kind)
	}
}
