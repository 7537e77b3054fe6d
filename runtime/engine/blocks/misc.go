package blocks

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/sflowg/blockrunner/runtime"
)

// executeDelay sleeps for MinMS, or a uniform sample in [MinMS, MaxMS]. Cancellation
// of the execution ends the sleep early with an error.
func (e *Executor) executeDelay(execution *runtime.Execution, s runtime.DelaySettings) error {
	ms := s.MinMS
	if s.MaxMS > s.MinMS {
		ms += rand.IntN(s.MaxMS - s.MinMS + 1)
	}

	timer := time.NewTimer(runtime.Millis(ms))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-execution.Done():
		return fmt.Errorf("delay interrupted: %w", execution.Err())
	}
}

func (e *Executor) executeSetVariable(execution *runtime.Execution, s runtime.SetVariableSettings) error {
	vars := execution.Variables
	vars.SetUser(s.Name, runtime.StringValue(vars.Interpolate(s.Value)), s.Capture)
	return nil
}

func (e *Executor) executeLog(execution *runtime.Execution, b runtime.Block, s runtime.LogSettings) error {
	msg := execution.Variables.Interpolate(s.Message)
	execution.AddLog(b, msg)
	e.l.InfoContext(execution, msg, "block", b.ID)
	return nil
}

func (e *Executor) executeClearCookies(execution *runtime.Execution) error {
	req := runtime.NewRequest(runtime.ActionClearCookies, execution.Session)
	if _, err := runtime.Roundtrip(execution, execution.Transport, req); err != nil {
		return fmt.Errorf("clear cookies: %w", err)
	}
	return nil
}

func (e *Executor) executeGenerateGUID(execution *runtime.Execution, s runtime.GenerateGUIDSettings) error {
	execution.Variables.SetUser(s.OutputVar, runtime.StringValue(uuid.NewString()), s.Capture)
	return nil
}

func (e *Executor) executeScript(execution *runtime.Execution, s runtime.ScriptSettings) error {
	if e.scripts == nil {
		return fmt.Errorf("no script evaluator configured")
	}

	result, err := e.scripts.Eval(execution, s.Language, s.Code, execution.Variables.Env())
	if err != nil {
		return fmt.Errorf("%s script failed: %w", s.Language, err)
	}
	if s.OutputVar != "" {
		execution.Variables.SetUser(s.OutputVar, runtime.ValueOf(result), s.Capture)
	}
	return nil
}
