package gorkflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewInvalidTransitionError(t *testing.T) {
	err := NewInvalidTransitionError("WorkflowExecution", ExecutionFailed, ExecutionRunning)
	assert.Equal(t, "gorkflow: invalid WorkflowExecution transition FAILED -> RUNNING", err.Error())
}

func TestNewNotRetryableError(t *testing.T) {
	err := NewNotRetryableError("step no longer exists")
	assert.Equal(t, "gorkflow: not retryable: step no longer exists", err.Error())
}
