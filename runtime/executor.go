package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Executor walks a block tree. It handles the control-flow kinds itself and
// delegates every leaf block to a BlockExecutor.
type Executor struct {
	l          *slog.Logger
	conditions ConditionEvaluator
	blocks     BlockExecutor
}

func NewExecutor(l *slog.Logger, conditions ConditionEvaluator, blocks BlockExecutor) *Executor {
	return &Executor{
		l:          l,
		conditions: conditions,
		blocks:     blocks,
	}
}

// ExecuteBlocks runs blocks in order until the list ends or the execution reaches
// a terminal status. A failing block sets StatusError and stops the walk unless
// the block is in safe mode, in which case the failure is logged and skipped.
func (e *Executor) ExecuteBlocks(execution *Execution, blocks []Block) error {
	for _, b := range blocks {
		if b.Disabled {
			continue
		}

		execution.Results = append(execution.Results, BlockResult{
			BlockID: b.ID,
			Label:   b.Label,
			Kind:    b.Kind,
			Success: true,
		})
		idx := len(execution.Results) - 1

		start := time.Now()
		err := e.executeBlock(execution, b)
		elapsed := time.Since(start)

		// children may have appended results, so address by index
		res := &execution.Results[idx]
		res.Elapsed = elapsed
		res.Variables = execution.Variables.Snapshot()

		if err != nil {
			res.Success = false

			if b.SafeMode {
				res.Message = fmt.Sprintf("Error (safe mode): %v", err)
				execution.AddLog(b, res.Message)
				e.l.WarnContext(execution, fmt.Sprintf("Block failed in safe mode: %s", b.Label),
					"block", b.ID,
					"kind", b.Kind,
					"error", err)
			} else {
				execution.SetStatus(StatusError)
				res.Message = fmt.Sprintf("Error: %v", err)
				execution.AddLog(b, res.Message)
				e.l.ErrorContext(execution, fmt.Sprintf("Block failed: %s", b.Label),
					"block", b.ID,
					"kind", b.Kind,
					"error", err)

				var blockErr *BlockError
				if errors.As(err, &blockErr) {
					return err
				}
				return NewBlockError(b, err)
			}
		}

		if execution.Status.Terminal() {
			e.l.DebugContext(execution, fmt.Sprintf("Status %s reached at block: %s", execution.Status, b.Label),
				"block", b.ID)
			break
		}
	}

	return nil
}

func (e *Executor) executeBlock(execution *Execution, b Block) error {
	switch s := b.Settings.(type) {
	case IfElseSettings:
		return e.executeIfElse(execution, s)
	case LoopSettings:
		return e.executeLoop(execution, s)
	case GroupSettings:
		return e.ExecuteBlocks(execution, s.Blocks)
	case nil:
		return fmt.Errorf("%w: block %s has no settings", ErrUnknownBlock, b.ID)
	default:
		return e.blocks.ExecuteBlock(execution, b)
	}
}

func (e *Executor) executeIfElse(execution *Execution, s IfElseSettings) error {
	ok, err := e.conditions.Evaluate(execution, s.Condition)
	if err != nil {
		return fmt.Errorf("error evaluating condition on %s: %w", s.Condition.Source, err)
	}

	if ok {
		return e.ExecuteBlocks(execution, s.TrueBlocks)
	}
	return e.ExecuteBlocks(execution, s.FalseBlocks)
}

func (e *Executor) executeLoop(execution *Execution, s LoopSettings) error {
	switch s.LoopType {
	case LoopRepeat:
		for i := 0; i < s.Count; i++ {
			if err := e.ExecuteBlocks(execution, s.Blocks); err != nil {
				return err
			}
			if execution.Status.Terminal() {
				break
			}
		}
	default:
		for _, item := range e.loopItems(execution, s) {
			execution.Variables.SetUser(s.ItemVar, StringValue(item), false)
			if err := e.ExecuteBlocks(execution, s.Blocks); err != nil {
				return err
			}
			if execution.Status.Terminal() {
				break
			}
		}
	}
	return nil
}

func (e *Executor) loopItems(execution *Execution, s LoopSettings) []string {
	if v, ok := execution.Variables.Lookup(s.ListVar); ok && v.Value.IsList() {
		return v.Value.List()
	}

	raw, _ := execution.Variables.Get(s.ListVar)
	sep := s.Delimiter
	if sep == "" {
		sep = "\n"
	}
	return SplitList(raw, sep)
}
