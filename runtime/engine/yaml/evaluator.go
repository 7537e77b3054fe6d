package yaml

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/sflowg/blockrunner/runtime"
)

// Custom expression functions available in all conditions
var exprFunctions = []expr.Option{
	expr.Function("base64_encode", func(params ...any) (any, error) {
		s, _ := params[0].(string)
		return base64.StdEncoding.EncodeToString([]byte(s)), nil
	}),
	expr.Function("base64_decode", func(params ...any) (any, error) {
		s, _ := params[0].(string)
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	}),
}

// ExpressionEvaluator evaluates expressions using the expr-lang library.
// Variable names use the flat underscore convention of runtime.FormatKey.
type ExpressionEvaluator struct{}

func NewExpressionEvaluator() *ExpressionEvaluator {
	return &ExpressionEvaluator{}
}

func (e *ExpressionEvaluator) Eval(expression string, env map[string]any) (any, error) {
	env["null"] = nil

	// defined("data.SOURCE") reports whether a variable exists, even if empty
	definedFn := expr.Function(
		"defined",
		func(params ...any) (any, error) {
			path, ok := params[0].(string)
			if !ok {
				return false, fmt.Errorf("defined() expects string path argument, got %T", params[0])
			}
			_, exists := env[runtime.FormatKey(path)]
			return exists, nil
		},
		new(func(string) bool),
	)

	// NOTE: expr.Env MUST come before AllowUndefinedVariables for it to work
	opts := []expr.Option{
		expr.Env(env),
		expr.AllowUndefinedVariables(),
		definedFn,
	}
	opts = append(opts, exprFunctions...)

	program, err := expr.Compile(runtime.FormatExpression(expression), opts...)
	if err != nil {
		return nil, err
	}
	return expr.Run(program, env)
}

// ConditionEvaluator decides block conditions against an execution's variables.
type ConditionEvaluator struct {
	expressions *ExpressionEvaluator
}

func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{expressions: NewExpressionEvaluator()}
}

// Evaluate reads the source with Get and compares it with the interpolated value.
// A missing source compares as "", so Exists means non-empty. Expression
// conditions are not interpolated.
func (c *ConditionEvaluator) Evaluate(execution *runtime.Execution, cond runtime.Condition) (bool, error) {
	vars := execution.Variables
	source, _ := vars.Get(cond.Source)

	switch cond.Comparison {
	case runtime.CompareExists:
		return source != "", nil
	case runtime.CompareNotExists:
		return source == "", nil
	case runtime.CompareExpression:
		return c.evaluateExpression(vars, cond.Value)
	}

	value := vars.Interpolate(cond.Value)

	switch cond.Comparison {
	case runtime.CompareContains, "":
		return strings.Contains(source, value), nil
	case runtime.CompareNotContains:
		return !strings.Contains(source, value), nil
	case runtime.CompareEqualTo:
		return source == value, nil
	case runtime.CompareNotEqualTo:
		return source != value, nil
	case runtime.CompareRegex:
		re, err := regexp.Compile(value)
		if err != nil {
			return false, nil
		}
		return re.MatchString(source), nil
	case runtime.CompareGreaterThan:
		return parseNumber(source) > parseNumber(value), nil
	case runtime.CompareLessThan:
		return parseNumber(source) < parseNumber(value), nil
	default:
		return false, fmt.Errorf("unknown comparison %q", cond.Comparison)
	}
}

func (c *ConditionEvaluator) evaluateExpression(vars *runtime.Variables, expression string) (bool, error) {
	result, err := c.expressions.Eval(expression, vars.Env())
	if err != nil {
		return false, fmt.Errorf("error evaluating expression '%s': %w", expression, err)
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression %s evaluated to %T, expected boolean", expression, result)
	}
	return b, nil
}

// parseNumber reads a comparison operand; anything unparsable counts as 0.
func parseNumber(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
