package blocks

import (
	"fmt"

	"github.com/sflowg/blockrunner/runtime"
)

// executeKeyCheck sets the status of the first keychain that holds. When none holds
// the status is left alone.
func (e *Executor) executeKeyCheck(execution *runtime.Execution, b runtime.Block, s runtime.KeyCheckSettings) error {
	for i, kc := range s.Keychains {
		ok, err := e.keychainHolds(execution, kc)
		if err != nil {
			return fmt.Errorf("keychain %d: %w", i, err)
		}
		if !ok {
			continue
		}

		execution.SetStatus(kc.Result)
		execution.AddLog(b, fmt.Sprintf("Keychain %q matched: %s", kc.Name, execution.StatusName()))
		e.l.DebugContext(execution, fmt.Sprintf("Keychain matched: %s", kc.Name),
			"block", b.ID,
			"status", kc.Result)
		return nil
	}
	return nil
}

// keychainHolds combines the keychain's conditions. A keychain without conditions never holds.
func (e *Executor) keychainHolds(execution *runtime.Execution, kc runtime.Keychain) (bool, error) {
	if len(kc.Conditions) == 0 {
		return false, nil
	}

	for _, cond := range kc.Conditions {
		ok, err := e.conditions.Evaluate(execution, cond)
		if err != nil {
			return false, err
		}
		if kc.Mode == runtime.ModeOr && ok {
			return true, nil
		}
		if kc.Mode != runtime.ModeOr && !ok {
			return false, nil
		}
	}
	return kc.Mode != runtime.ModeOr, nil
}
