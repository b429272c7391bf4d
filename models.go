package gorkflow

import (
	"encoding/json"
	"time"
)

// ExecutionStatus is the status of a WorkflowExecution.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "PENDING"
	ExecutionRunning   ExecutionStatus = "RUNNING"
	ExecutionSuccess   ExecutionStatus = "SUCCESS"
	ExecutionFailed    ExecutionStatus = "FAILED"
	ExecutionCancelled ExecutionStatus = "CANCELLED"
)

// IsTerminal reports whether status is a final WorkflowExecution state.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionSuccess || s == ExecutionFailed || s == ExecutionCancelled
}

func (s ExecutionStatus) String() string { return string(s) }

// AttemptStatus is the status of a StepAttempt.
type AttemptStatus string

const (
	AttemptPending AttemptStatus = "PENDING"
	AttemptRunning AttemptStatus = "RUNNING"
	AttemptSuccess AttemptStatus = "SUCCESS"
	AttemptFailed  AttemptStatus = "FAILED"
	AttemptSkipped AttemptStatus = "SKIPPED"
)

// IsTerminal reports whether status is a final StepAttempt state.
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptSuccess || s == AttemptFailed || s == AttemptSkipped
}

func (s AttemptStatus) String() string { return string(s) }

// StepKind identifies which family of executor a Step dispatches to.
type StepKind string

const (
	StepKindManual  StepKind = "MANUAL"
	StepKindAI      StepKind = "AI"
	StepKindAPI     StepKind = "API"
	StepKindLogic   StepKind = "LOGIC"
	StepKindStorage StepKind = "STORAGE"
)

// ErrorType classifies a StepError as eligible for automatic retry or not.
type ErrorType string

const (
	ErrorTypeTransient ErrorType = "transient"
	ErrorTypePermanent ErrorType = "permanent"
)

// RetryPolicy is a Step's declarative retry configuration. A nil
// *RetryPolicy on a Step means "no retry config" per spec §4.6 rule 2.
type RetryPolicy struct {
	MaxRetries     int `json:"max_retries" validate:"gte=0"`
	BackoffSeconds int `json:"backoff_seconds" validate:"gte=0"`
}

// Workflow is a declarative, versioned workflow definition: identity, a
// monotonic version, and an ordered list of Steps.
type Workflow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Steps     []Step    `json:"steps"`
}

// Step is a declarative unit inside a Workflow. Config is interpreted by
// whichever StepExecutor the registry resolves for Kind (and, for LOGIC/API,
// Config["handler"]).
type Step struct {
	ID             string          `json:"id"`
	WorkflowID     string          `json:"workflow_id"`
	Kind           StepKind        `json:"kind" validate:"required,oneof=MANUAL AI API LOGIC STORAGE"`
	Config         map[string]any  `json:"config,omitempty"`
	Order          int             `json:"order" validate:"gt=0"`
	TimeoutSeconds int             `json:"timeout_seconds" validate:"gte=0"`
	InputSchema    json.RawMessage `json:"input_schema,omitempty"`
	OutputSchema   json.RawMessage `json:"output_schema,omitempty"`
	RetryPolicy    *RetryPolicy    `json:"retry_policy,omitempty" validate:"omitempty"`
}

// Handler returns Config["handler"] for LOGIC/API steps, or "" if unset.
func (s Step) Handler() string {
	if s.Config == nil {
		return ""
	}
	h, _ := s.Config["handler"].(string)
	return h
}

// EffectiveTimeout returns the Step's configured timeout, falling back to
// DefaultStepTimeoutSeconds when unset (spec §2 Open Question 2).
func (s Step) EffectiveTimeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return DefaultStepTimeoutSeconds * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// WorkflowExecution is one attempt to run a Workflow.
type WorkflowExecution struct {
	ID              string          `json:"id"`
	WorkflowID      string          `json:"workflow_id"`
	WorkflowVersion int             `json:"workflow_version"`
	Status          ExecutionStatus `json:"status"`
	TriggerSource   string          `json:"trigger_source"`
	CreatedAt       time.Time       `json:"created_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	FinishedAt      *time.Time      `json:"finished_at,omitempty"`

	// ParentExecutionID links a resume()-spawned child execution to the one
	// it is retrying, per the resume architecture decided in DESIGN.md
	// (Open Question 4): resume never reopens a FAILED record, it always
	// creates a fresh WorkflowExecution.
	ParentExecutionID string `json:"parent_execution_id,omitempty"`
}

// TransitionTo applies the WorkflowExecution state machine (spec §4.2).
func (w *WorkflowExecution) TransitionTo(next ExecutionStatus, now time.Time) error {
	if w.Status.IsTerminal() {
		return NewInvalidTransitionError("WorkflowExecution", w.Status, next)
	}
	allowed, ok := executionTransitions[w.Status]
	if !ok || !containsExecutionStatus(allowed, next) {
		return NewInvalidTransitionError("WorkflowExecution", w.Status, next)
	}
	w.Status = next
	if next == ExecutionRunning && w.StartedAt == nil {
		w.StartedAt = &now
	}
	if next.IsTerminal() {
		w.FinishedAt = &now
	}
	return nil
}

// StepAttempt is a single attempt at a single Step inside a
// WorkflowExecution (source name in the Python original: StepExecution).
type StepAttempt struct {
	ID                  string          `json:"id"`
	WorkflowExecutionID string          `json:"workflow_execution_id"`
	StepID              string          `json:"step_id"`
	Status              AttemptStatus   `json:"status"`
	Input               json.RawMessage `json:"input,omitempty"`
	Output              json.RawMessage `json:"output,omitempty"`
	Error               string          `json:"error,omitempty"`
	ErrorType           ErrorType       `json:"error_type,omitempty"`
	RetryCount          int             `json:"retry_count"`
	IsRetry             bool            `json:"is_retry"`
	ParentAttemptID     string          `json:"parent_step_execution_id,omitempty"`
	StepMetadata        map[string]any  `json:"step_metadata,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	StartedAt           *time.Time      `json:"started_at,omitempty"`
	FinishedAt          *time.Time      `json:"finished_at,omitempty"`
}

// TransitionTo applies the StepAttempt state machine (spec §4.2).
func (a *StepAttempt) TransitionTo(next AttemptStatus, now time.Time) error {
	if a.Status.IsTerminal() {
		return NewInvalidTransitionError("StepAttempt", a.Status, next)
	}
	allowed, ok := attemptTransitions[a.Status]
	if !ok || !containsAttemptStatus(allowed, next) {
		return NewInvalidTransitionError("StepAttempt", a.Status, next)
	}
	a.Status = next
	if next == AttemptRunning && a.StartedAt == nil {
		a.StartedAt = &now
	}
	if next.IsTerminal() {
		a.FinishedAt = &now
	}
	return nil
}

// LogEvent is one structured, append-only event in the audit trail.
// StepAttemptID is empty for a workflow-level event.
type LogEvent struct {
	ID            string         `json:"id"`
	StepAttemptID string         `json:"step_execution_id,omitempty"`
	Message       string         `json:"message"`
	Timestamp     time.Time      `json:"timestamp"`
	// WorkflowExecutionID is an internal indexing field, not part of the
	// observable LogEvent JSON shape (spec §6), so stores can group events
	// by run without the wire record carrying a redundant key.
	WorkflowExecutionID string `json:"-"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}
