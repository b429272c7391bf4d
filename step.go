package gorkflow

import (
	"context"
	"time"
)

// ExecutionContext is the value record handed to every StepExecutor.execute
// call (spec §4.1). It is intentionally narrow: a linear workflow only ever
// hands a step its own input, so the teacher's richer per-step data/state
// accessors (GetOutput, cross-step StateAccessor) have no operation to
// generalize here and are not carried over — see DESIGN.md.
type ExecutionContext struct {
	context.Context

	WorkflowExecutionID string
	StepAttemptID        string
	WorkflowID           string
	StepID               string

	// TriggerInput is the original trigger input of this attempt; it is
	// never replaced by a preceding step's output.
	TriggerInput any

	RetryCount int
}

// StepMetadata reports step-call timing, attached to every StepResult.
type StepMetadata struct {
	DurationMs int64     `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// StepError is the error half of a StepResult (spec §4.1).
type StepError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	ErrorType ErrorType `json:"error_type"`
	Retryable bool      `json:"retryable"`
}

// Error implements the error interface so a StepError can be wrapped and
// logged like any other Go error.
func (e *StepError) Error() string {
	return e.Code + ": " + e.Message
}

// NewStepError builds a StepError with Retryable derived from ErrorType,
// per spec §4.1 ("retryable must equal error_type == transient").
func NewStepError(code, message string, errType ErrorType) *StepError {
	return &StepError{
		Code:      code,
		Message:   message,
		ErrorType: errType,
		Retryable: errType == ErrorTypeTransient,
	}
}

// StepResult is the tagged union returned by StepExecutor.Execute: exactly
// one of Output/Err is set, matching the Success flag (spec §3 invariant 8).
type StepResult struct {
	Success  bool
	Output   any
	Err      *StepError
	Metadata StepMetadata
}

// SuccessResult builds a SUCCESS StepResult.
func SuccessResult(output any, meta StepMetadata) StepResult {
	return StepResult{Success: true, Output: output, Metadata: meta}
}

// FailureResult builds a FAILED StepResult.
func FailureResult(err *StepError, meta StepMetadata) StepResult {
	return StepResult{Success: false, Err: err, Metadata: meta}
}

// WrapInput applies spec §4.7.2's input-snapshot rule: a non-mapping value
// is wrapped as {"value": x} before it is stored as a StepAttempt's input
// and handed to the step; a mapping passes through unchanged.
func WrapInput(v any) any {
	if _, ok := v.(map[string]any); ok {
		return v
	}
	return map[string]any{"value": v}
}

// StepExecutor is the step contract (spec §4.1). Implementations must never
// let a panic/exception escape; the engine's timeout harness recovers any
// panic and converts it into a permanent STEP_CRASH failure, but a well
// behaved executor should not rely on that safety net.
type StepExecutor interface {
	// Configure attaches the step's declarative Config map before the first
	// Execute call (registry responsibility, spec §4.3 "ensures the step's
	// declared configuration is attached to the instance").
	Configure(config map[string]any) error

	Execute(input any, ctx *ExecutionContext) StepResult
}
