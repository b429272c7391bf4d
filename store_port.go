package gorkflow

import "context"

// WorkflowStore is the persistence port the core requires (spec §6): append
// new WorkflowExecution/StepAttempt/LogEvent rows, update the mutable fields
// of a non-terminal WorkflowExecution/StepAttempt, and fetch a workflow's
// ordered steps plus a run's attempt history. Every concrete backend
// (memory, libsql, postgres, dynamodb) implements this same interface.
type WorkflowStore interface {
	LogAppender

	// Workflow definitions.
	CreateWorkflow(ctx context.Context, wf *Workflow) error
	GetWorkflow(ctx context.Context, workflowID string) (*Workflow, error)

	// WorkflowExecution.
	CreateExecution(ctx context.Context, exec *WorkflowExecution) error
	UpdateExecution(ctx context.Context, exec *WorkflowExecution) error
	GetExecution(ctx context.Context, id string) (*WorkflowExecution, error)
	ListExecutions(ctx context.Context, workflowID string) ([]*WorkflowExecution, error)

	// StepAttempt.
	CreateStepAttempt(ctx context.Context, attempt *StepAttempt) error
	UpdateStepAttempt(ctx context.Context, attempt *StepAttempt) error
	GetStepAttempt(ctx context.Context, id string) (*StepAttempt, error)
	ListStepAttempts(ctx context.Context, workflowExecutionID string) ([]*StepAttempt, error)

	// LogEvents for a single execution, in emission order.
	ListLogEvents(ctx context.Context, workflowExecutionID string) ([]*LogEvent, error)
}
