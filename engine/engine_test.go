package engine_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AryanBarman/gorkflow"
	"github.com/AryanBarman/gorkflow/engine"
	"github.com/AryanBarman/gorkflow/steps"
	"github.com/AryanBarman/gorkflow/store"
)

// newTestExecutor wires an Executor over a fresh in-memory store and the
// built-in step registry, mirroring the example binary's wiring.
func newTestExecutor(t *testing.T) (*engine.Executor, gorkflow.WorkflowStore) {
	t.Helper()
	s := store.NewMemoryStore()
	logger := gorkflow.NewLogger(zerolog.New(os.Stdout).With().Timestamp().Logger(), s)
	return engine.NewExecutor(s, steps.DefaultRegistry(), logger), s
}

func seedWorkflow(t *testing.T, s gorkflow.WorkflowStore, wf *gorkflow.Workflow) {
	t.Helper()
	require.NoError(t, s.CreateWorkflow(context.Background(), wf))
}

// --- Scenario: happy path, multiple steps chained in order ---

func TestExecute_HappyPath(t *testing.T) {
	exec, s := newTestExecutor(t)

	wf := &gorkflow.Workflow{
		ID:      "happy-path",
		Name:    "Happy Path",
		Version: 1,
		Steps: []gorkflow.Step{
			{ID: "s1", Kind: gorkflow.StepKindManual, Order: 1, TimeoutSeconds: 5},
			{ID: "s2", Kind: gorkflow.StepKindLogic, Order: 2, TimeoutSeconds: 5},
		},
	}
	seedWorkflow(t, s, wf)

	run, err := exec.Execute(context.Background(), wf.ID, map[string]any{"customer": "Ada"}, "test")
	require.NoError(t, err)
	assert.Equal(t, gorkflow.ExecutionSuccess, run.Status)
	require.NotNil(t, run.StartedAt)
	require.NotNil(t, run.FinishedAt)

	attempts, err := s.ListStepAttempts(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	for _, a := range attempts {
		assert.Equal(t, gorkflow.AttemptSuccess, a.Status)
		assert.Equal(t, 0, a.RetryCount)
	}

	events, err := s.ListLogEvents(context.Background(), run.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, events)
	assert.Equal(t, "Workflow execution started", events[0].Message)
	assert.Equal(t, "Workflow execution completed successfully", events[len(events)-1].Message)
}

// --- Scenario: halt on a permanent failure, later steps never run ---

func TestExecute_HaltsOnPermanentFailure(t *testing.T) {
	s := store.NewMemoryStore()
	logger := gorkflow.NewLogger(zerolog.New(os.Stdout).With().Timestamp().Logger(), s)
	registry := gorkflow.NewRegistry().
		WithManual(steps.NewManual).WithStorage(steps.NewStorage).WithAI(steps.NewAI).
		WithLogicHandler("", steps.NewDefaultTransform).
		WithAPIHandler("http", steps.NewHTTP).
		WithAPIHandler("forced_fail", steps.NewFail).
		WithAPIHandler("", steps.NewTransientFailureAPI)
	exec := engine.NewExecutor(s, registry, logger)

	wf := &gorkflow.Workflow{
		ID:      "halt-on-failure",
		Name:    "Halt On Failure",
		Version: 1,
		Steps: []gorkflow.Step{
			{ID: "fail", Kind: gorkflow.StepKindAPI, Order: 1, TimeoutSeconds: 5, Config: map[string]any{"handler": "forced_fail"}},
			{ID: "never", Kind: gorkflow.StepKindManual, Order: 2, TimeoutSeconds: 5},
		},
	}
	seedWorkflow(t, s, wf)

	// The forced-failure step fails permanently, so shouldRetry rejects it
	// immediately and the chain halts after a single attempt.
	run, err := exec.Execute(context.Background(), wf.ID, map[string]any{}, "test")
	require.NoError(t, err)
	assert.Equal(t, gorkflow.ExecutionFailed, run.Status)

	attempts, err := s.ListStepAttempts(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "fail", attempts[0].StepID)
	assert.Equal(t, gorkflow.AttemptFailed, attempts[0].Status)
	assert.Equal(t, gorkflow.ErrorTypePermanent, attempts[0].ErrorType)
}

// --- Scenario: transient failure that eventually succeeds under retry ---
//
// The built-in registry has no "transient_fail" LOGIC handler (that executor
// exists to make this exact scenario deterministic and network-free), so
// this test wires it in on a registry built the same way steps.DefaultRegistry
// wires its own handlers.

func TestExecute_RetryEventuallySucceeds(t *testing.T) {
	s := store.NewMemoryStore()
	logger := gorkflow.NewLogger(zerolog.New(os.Stdout).With().Timestamp().Logger(), s)
	registry := gorkflow.NewRegistry().
		WithManual(steps.NewManual).
		WithStorage(steps.NewStorage).
		WithAI(steps.NewAI).
		WithLogicHandler("transient_fail", steps.NewTransientFail).
		WithLogicHandler("", steps.NewDefaultTransform).
		WithAPIHandler("http", steps.NewHTTP).
		WithAPIHandler("", steps.NewTransientFailureAPI)
	exec := engine.NewExecutor(s, registry, logger)

	wf := &gorkflow.Workflow{
		ID:      "retry-succeeds",
		Name:    "Retry Succeeds",
		Version: 1,
		Steps: []gorkflow.Step{
			{
				ID:             "flaky",
				Kind:           gorkflow.StepKindLogic,
				Order:          1,
				TimeoutSeconds: 5,
				Config:         map[string]any{"handler": "transient_fail", "fail_count": float64(2)},
				RetryPolicy:    &gorkflow.RetryPolicy{MaxRetries: 3, BackoffSeconds: 0},
			},
		},
	}
	seedWorkflow(t, s, wf)

	run, err := exec.Execute(context.Background(), wf.ID, map[string]any{}, "test")
	require.NoError(t, err)
	assert.Equal(t, gorkflow.ExecutionSuccess, run.Status)

	attempts, err := s.ListStepAttempts(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 3) // initial + 2 retries before success
	assert.Equal(t, gorkflow.AttemptFailed, attempts[0].Status)
	assert.Equal(t, gorkflow.AttemptFailed, attempts[1].Status)
	assert.Equal(t, gorkflow.AttemptSuccess, attempts[2].Status)
	assert.Equal(t, 2, attempts[2].RetryCount)
	assert.True(t, attempts[1].IsRetry)
	assert.Equal(t, attempts[0].ID, attempts[1].ParentAttemptID)
}

// --- Scenario: retries exhausted, workflow fails ---

func TestExecute_RetryExhausted(t *testing.T) {
	s := store.NewMemoryStore()
	logger := gorkflow.NewLogger(zerolog.New(os.Stdout).With().Timestamp().Logger(), s)
	registry := gorkflow.NewRegistry().
		WithManual(steps.NewManual).
		WithStorage(steps.NewStorage).
		WithAI(steps.NewAI).
		WithLogicHandler("transient_fail", steps.NewTransientFail).
		WithLogicHandler("", steps.NewDefaultTransform).
		WithAPIHandler("http", steps.NewHTTP).
		WithAPIHandler("", steps.NewTransientFailureAPI)
	exec := engine.NewExecutor(s, registry, logger)

	wf := &gorkflow.Workflow{
		ID:      "retry-exhausted",
		Name:    "Retry Exhausted",
		Version: 1,
		Steps: []gorkflow.Step{
			{
				ID:             "always-flaky",
				Kind:           gorkflow.StepKindLogic,
				Order:          1,
				TimeoutSeconds: 5,
				Config:         map[string]any{"handler": "transient_fail", "fail_count": float64(10)},
				RetryPolicy:    &gorkflow.RetryPolicy{MaxRetries: 2, BackoffSeconds: 0},
			},
		},
	}
	seedWorkflow(t, s, wf)

	run, err := exec.Execute(context.Background(), wf.ID, map[string]any{}, "test")
	require.NoError(t, err)
	assert.Equal(t, gorkflow.ExecutionFailed, run.Status)

	attempts, err := s.ListStepAttempts(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 3) // initial + 2 retries, then exhausted
	for _, a := range attempts {
		assert.Equal(t, gorkflow.AttemptFailed, a.Status)
	}
	assert.Equal(t, 2, attempts[2].RetryCount)
}

// --- Scenario: a step that never returns is cut off by the timeout harness ---

func TestExecute_Timeout(t *testing.T) {
	s := store.NewMemoryStore()
	logger := gorkflow.NewLogger(zerolog.New(os.Stdout).With().Timestamp().Logger(), s)
	registry := gorkflow.NewRegistry().WithManual(steps.NewManual).WithStorage(steps.NewStorage).WithAI(steps.NewAI).
		WithLogicHandler("", steps.NewDefaultTransform).
		WithAPIHandler("http", steps.NewHTTP).
		WithAPIHandler("", func() gorkflow.StepExecutor { return &blockingExecutor{} })
	exec := engine.NewExecutor(s, registry, logger)

	wf := &gorkflow.Workflow{
		ID:      "timeout-test",
		Name:    "Timeout Test",
		Version: 1,
		Steps: []gorkflow.Step{
			{ID: "slow", Kind: gorkflow.StepKindAPI, Order: 1, TimeoutSeconds: 1},
		},
	}
	seedWorkflow(t, s, wf)

	start := time.Now()
	run, err := exec.Execute(context.Background(), wf.ID, map[string]any{}, "test")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, gorkflow.ExecutionFailed, run.Status)

	attempts, err := s.ListStepAttempts(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "TIMEOUT", attempts[0].Error[:7])
	assert.Equal(t, gorkflow.ErrorTypeTransient, attempts[0].ErrorType)
}

type blockingExecutor struct{}

func (b *blockingExecutor) Configure(config map[string]any) error { return nil }
func (b *blockingExecutor) Execute(input any, ctx *gorkflow.ExecutionContext) gorkflow.StepResult {
	<-ctx.Done()
	return gorkflow.FailureResult(gorkflow.NewStepError("CANCELLED", "context done", gorkflow.ErrorTypeTransient), gorkflow.StepMetadata{})
}

// --- Scenario: input schema rejection never reaches the step implementation ---

func TestExecute_InputSchemaRejection(t *testing.T) {
	exec, s := newTestExecutor(t)

	wf := &gorkflow.Workflow{
		ID:      "schema-rejection",
		Name:    "Schema Rejection",
		Version: 1,
		Steps: []gorkflow.Step{
			{
				ID:             "needs-name",
				Kind:           gorkflow.StepKindManual,
				Order:          1,
				TimeoutSeconds: 5,
				InputSchema: json.RawMessage(`{
					"type": "object",
					"required": ["name"],
					"properties": {"name": {"type": "string"}}
				}`),
			},
		},
	}
	seedWorkflow(t, s, wf)

	run, err := exec.Execute(context.Background(), wf.ID, map[string]any{"unrelated": true}, "test")
	require.NoError(t, err)
	assert.Equal(t, gorkflow.ExecutionFailed, run.Status)

	attempts, err := s.ListStepAttempts(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, gorkflow.AttemptFailed, attempts[0].Status)
	assert.Equal(t, gorkflow.ErrorTypePermanent, attempts[0].ErrorType)
}

// --- Panic safety: a crashing step becomes a permanent STEP_CRASH failure ---

func TestExecute_StepPanicBecomesPermanentFailure(t *testing.T) {
	s := store.NewMemoryStore()
	logger := gorkflow.NewLogger(zerolog.New(os.Stdout).With().Timestamp().Logger(), s)
	registry := gorkflow.NewRegistry().
		WithManual(func() gorkflow.StepExecutor { return &panickingExecutor{} }).
		WithStorage(steps.NewStorage).WithAI(steps.NewAI).
		WithLogicHandler("", steps.NewDefaultTransform).
		WithAPIHandler("http", steps.NewHTTP).
		WithAPIHandler("", steps.NewTransientFailureAPI)
	exec := engine.NewExecutor(s, registry, logger)

	wf := &gorkflow.Workflow{
		ID:      "panic-test",
		Name:    "Panic Test",
		Version: 1,
		Steps: []gorkflow.Step{
			{ID: "boom", Kind: gorkflow.StepKindManual, Order: 1, TimeoutSeconds: 5},
		},
	}
	seedWorkflow(t, s, wf)

	run, err := exec.Execute(context.Background(), wf.ID, map[string]any{}, "test")
	require.NoError(t, err)
	assert.Equal(t, gorkflow.ExecutionFailed, run.Status)

	attempts, err := s.ListStepAttempts(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Contains(t, attempts[0].Error, "STEP_CRASH")
	assert.Equal(t, gorkflow.ErrorTypePermanent, attempts[0].ErrorType)
}

type panickingExecutor struct{}

func (p *panickingExecutor) Configure(config map[string]any) error { return nil }
func (p *panickingExecutor) Execute(input any, ctx *gorkflow.ExecutionContext) gorkflow.StepResult {
	panic("deliberate crash")
}

// --- Resume: spawns a child execution rather than reopening the original ---

func TestResume_SpawnsChildExecution(t *testing.T) {
	s := store.NewMemoryStore()
	logger := gorkflow.NewLogger(zerolog.New(os.Stdout).With().Timestamp().Logger(), s)
	registry := gorkflow.NewRegistry().
		WithManual(steps.NewManual).WithStorage(steps.NewStorage).WithAI(steps.NewAI).
		WithLogicHandler("", steps.NewDefaultTransform).
		WithAPIHandler("http", steps.NewHTTP).
		WithAPIHandler("", steps.NewTransientFailureAPI).
		WithLogicHandler("always_fail", steps.NewFail)
	exec := engine.NewExecutor(s, registry, logger)

	wf := &gorkflow.Workflow{
		ID:      "resume-test",
		Name:    "Resume Test",
		Version: 1,
		Steps: []gorkflow.Step{
			{ID: "failer", Kind: gorkflow.StepKindLogic, Order: 1, TimeoutSeconds: 5, Config: map[string]any{"handler": "always_fail"}},
			{ID: "follow-up", Kind: gorkflow.StepKindManual, Order: 2, TimeoutSeconds: 5},
		},
	}
	seedWorkflow(t, s, wf)

	original, err := exec.Execute(context.Background(), wf.ID, map[string]any{}, "test")
	require.NoError(t, err)
	require.Equal(t, gorkflow.ExecutionFailed, original.Status)

	attempts, err := s.ListStepAttempts(context.Background(), original.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	failedAttemptID := attempts[0].ID

	// resume after "fixing" nothing: the handler still always fails, so
	// resume should still halt, but it must never mutate the original
	// terminal record in place.
	child, err := exec.Resume(context.Background(), original.ID, failedAttemptID)
	require.NoError(t, err)
	assert.NotEqual(t, original.ID, child.ID)
	assert.Equal(t, original.ID, child.ParentExecutionID)
	assert.Equal(t, gorkflow.ExecutionFailed, child.Status)

	reloadedOriginal, err := s.GetExecution(context.Background(), original.ID)
	require.NoError(t, err)
	assert.Equal(t, gorkflow.ExecutionFailed, reloadedOriginal.Status)
	assert.Equal(t, original.FinishedAt, reloadedOriginal.FinishedAt)
}

func TestResume_RejectsNonFailedAttempt(t *testing.T) {
	exec, s := newTestExecutor(t)

	wf := &gorkflow.Workflow{
		ID:      "resume-reject",
		Name:    "Resume Reject",
		Version: 1,
		Steps: []gorkflow.Step{
			{ID: "ok", Kind: gorkflow.StepKindManual, Order: 1, TimeoutSeconds: 5},
		},
	}
	seedWorkflow(t, s, wf)

	run, err := exec.Execute(context.Background(), wf.ID, map[string]any{}, "test")
	require.NoError(t, err)
	require.Equal(t, gorkflow.ExecutionSuccess, run.Status)

	attempts, err := s.ListStepAttempts(context.Background(), run.ID)
	require.NoError(t, err)

	_, err = exec.Resume(context.Background(), run.ID, attempts[0].ID)
	require.Error(t, err)

	var notRetryable *gorkflow.NotRetryableError
	require.ErrorAs(t, err, &notRetryable)
}
