package runtime

// PipelineLoader loads pipeline definitions from files.
type PipelineLoader interface {
	Extensions() []string
	Load(filePath string) (*Pipeline, error)
}

// ConditionEvaluator decides a single condition against an execution's variables.
// The *Execution also carries cancellation, since it implements context.Context.
type ConditionEvaluator interface {
	Evaluate(execution *Execution, cond Condition) (bool, error)
}

// BlockExecutor runs one leaf block. Control-flow kinds never reach it; the
// Executor walks those itself.
type BlockExecutor interface {
	ExecuteBlock(execution *Execution, block Block) error
}
