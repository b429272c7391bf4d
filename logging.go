package gorkflow

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger is the thin façade over the LogEvent append stream described in
// spec §4.8: every lifecycle edge emits exactly one event, persisted through
// the store and mirrored to an operational zerolog sink. Grounded on the
// teacher's logging.go event-function style, narrowed to the exact set of
// messages §4.7 names verbatim.
type Logger struct {
	zl    zerolog.Logger
	store LogAppender
}

// LogAppender is the slice of the persistence port the Logger needs.
type LogAppender interface {
	AppendLogEvent(ctx context.Context, event LogEvent) error
}

// NewLogger builds a Logger writing operational output to zl and persisting
// every event through store.
func NewLogger(zl zerolog.Logger, store LogAppender) *Logger {
	return &Logger{zl: zl, store: store}
}

func (l *Logger) emit(ctx context.Context, execID, stepAttemptID, message string, metadata map[string]any) {
	event := LogEvent{
		ID:                  uuid.NewString(),
		StepAttemptID:       stepAttemptID,
		WorkflowExecutionID: execID,
		Message:             message,
		Timestamp:           time.Now().UTC(),
		Metadata:            metadata,
	}

	zev := l.zl.Info()
	if stepAttemptID != "" {
		zev = zev.Str("step_execution_id", stepAttemptID)
	}
	for k, v := range metadata {
		zev = zev.Interface(k, v)
	}
	zev.Msg(message)

	if l.store == nil {
		return
	}
	if err := l.store.AppendLogEvent(ctx, event); err != nil {
		l.zl.Error().Err(err).Str("event", "persistence_error").Msg("failed to persist log event")
	}
}

// WorkflowStarted logs "Workflow execution started" (spec §4.7.1 step 2).
func (l *Logger) WorkflowStarted(ctx context.Context, execID, workflowID string) {
	l.emit(ctx, execID, "", "Workflow execution started", map[string]any{"workflow_id": workflowID})
}

// WorkflowCompleted logs "Workflow execution completed successfully"
// (spec §4.7.3).
func (l *Logger) WorkflowCompleted(ctx context.Context, execID, workflowID string) {
	l.emit(ctx, execID, "", "Workflow execution completed successfully", map[string]any{"workflow_id": workflowID})
}

// WorkflowFailed logs "Workflow execution failed" (spec §4.7.3).
func (l *Logger) WorkflowFailed(ctx context.Context, execID, workflowID string) {
	l.emit(ctx, execID, "", "Workflow execution failed", map[string]any{"workflow_id": workflowID})
}

// StepStarted logs "Step started", suffixed with the retry number when this
// is a retry (spec §4.7.2 step a).
func (l *Logger) StepStarted(ctx context.Context, execID, attemptID, stepID string, retryCount int) {
	msg := "Step started"
	meta := map[string]any{"step_type": stepID, "retry_count": retryCount}
	if retryCount > 0 {
		msg = "Step started (Retry " + strconv.Itoa(retryCount) + ")"
	}
	l.emit(ctx, execID, attemptID, msg, meta)
}

// StepCompleted logs "Step completed successfully" (spec §4.7.2 step g).
func (l *Logger) StepCompleted(ctx context.Context, execID, attemptID, stepID string) {
	l.emit(ctx, execID, attemptID, "Step completed successfully", map[string]any{"status": "SUCCESS", "step_type": stepID})
}

// StepFailed logs "Step failed" with error metadata (spec §4.7.2 step h).
func (l *Logger) StepFailed(ctx context.Context, execID, attemptID, stepID string, stepErr *StepError) {
	l.emit(ctx, execID, attemptID, "Step failed", map[string]any{
		"status":     "FAILED",
		"step_type":  stepID,
		"error":      stepErr.Error(),
		"error_type": stepErr.ErrorType,
	})
}

// StepRetrying logs "Retrying step after Ns backoff (attempt K)"
// (spec §4.7.2 step h).
func (l *Logger) StepRetrying(ctx context.Context, execID, attemptID, stepID string, backoffSeconds int, nextRetryCount int) {
	l.emit(ctx, execID, attemptID, retryingMessage(backoffSeconds, nextRetryCount), map[string]any{
		"step_type":       stepID,
		"backoff_seconds": backoffSeconds,
		"next_retry":      nextRetryCount,
	})
}

func retryingMessage(backoffSeconds, nextRetryCount int) string {
	return "Retrying step after " + strconv.Itoa(backoffSeconds) + "s backoff (attempt " + strconv.Itoa(nextRetryCount) + ")"
}
