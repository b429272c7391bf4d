package gorkflow

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by persistence port implementations.
var (
	ErrWorkflowNotFound      = errors.New("gorkflow: workflow not found")
	ErrRunNotFound           = errors.New("gorkflow: workflow execution not found")
	ErrStepNotFound          = errors.New("gorkflow: step not found")
	ErrStepExecutionNotFound = errors.New("gorkflow: step attempt not found")
)

// InvalidTransitionError is raised when a state machine is asked to move to
// a status that is not reachable from its current status. It always
// indicates a bug in the caller, not a business-level failure.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("gorkflow: invalid %s transition %s -> %s", e.Entity, e.From, e.To)
}

func NewInvalidTransitionError(entity string, from, to fmt.Stringer) *InvalidTransitionError {
	return &InvalidTransitionError{Entity: entity, From: from.String(), To: to.String()}
}

// NotRetryableError is raised by the resume entry point when a
// WorkflowExecution/StepAttempt pair does not qualify for a manual retry.
// It is kept distinguishable from other errors so an HTTP layer sitting on
// top of the core can map it to a 4xx response.
type NotRetryableError struct {
	Reason string
}

func (e *NotRetryableError) Error() string {
	return fmt.Sprintf("gorkflow: not retryable: %s", e.Reason)
}

func NewNotRetryableError(reason string) *NotRetryableError {
	return &NotRetryableError{Reason: reason}
}
