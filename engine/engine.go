// Package engine implements the Linear Executor (spec §4.7): the single
// orchestrator that drives a Workflow's Steps, strictly in order, persisting
// every state-machine transition and log event as it goes. Grounded 1:1 on
// the Python original's app/executor/linear_executor.py.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/AryanBarman/gorkflow"
)

// Executor is the Linear Executor described in spec §4.7.
type Executor struct {
	store    gorkflow.WorkflowStore
	registry *gorkflow.Registry
	logger   *gorkflow.Logger
}

// NewExecutor wires a store, a step registry, and a logger into an Executor.
func NewExecutor(store gorkflow.WorkflowStore, registry *gorkflow.Registry, logger *gorkflow.Logger) *Executor {
	return &Executor{store: store, registry: registry, logger: logger}
}

// Execute runs workflowID from scratch, blocking until the resulting
// WorkflowExecution reaches a terminal status (spec §4.7.1).
func (e *Executor) Execute(ctx context.Context, workflowID string, triggerInput any, triggerSource string) (*gorkflow.WorkflowExecution, error) {
	wf, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	exec := &gorkflow.WorkflowExecution{
		ID:              uuid.NewString(),
		WorkflowID:      wf.ID,
		WorkflowVersion: wf.Version,
		Status:          gorkflow.ExecutionPending,
		TriggerSource:   triggerSource,
		CreatedAt:       now,
	}
	if err := e.store.CreateExecution(ctx, exec); err != nil {
		return nil, err
	}

	if err := exec.TransitionTo(gorkflow.ExecutionRunning, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := e.store.UpdateExecution(ctx, exec); err != nil {
		return nil, err
	}
	e.logger.WorkflowStarted(ctx, exec.ID, wf.ID)

	steps := sortedSteps(wf.Steps)
	currentInput := triggerInput
	for _, step := range steps {
		output, failed, err := e.stepLoop(ctx, exec, step, currentInput)
		if err != nil {
			return nil, err
		}
		if failed {
			break
		}
		currentInput = output
	}

	if err := e.completeWorkflow(ctx, exec); err != nil {
		return nil, err
	}
	return exec, nil
}

// Resume manually retries a single failed StepAttempt (spec §4.7.4). Per
// DESIGN.md's Open Question 4 decision, resume never reopens the original
// FAILED WorkflowExecution in place — it spawns a new child execution
// linked via ParentExecutionID, which keeps terminal immutability an
// exceptionless invariant for every WorkflowExecution record.
func (e *Executor) Resume(ctx context.Context, workflowExecutionID, failedAttemptID string) (*gorkflow.WorkflowExecution, error) {
	original, err := e.store.GetExecution(ctx, workflowExecutionID)
	if err != nil {
		return nil, err
	}
	if !original.Status.IsTerminal() || original.Status == gorkflow.ExecutionCancelled {
		return nil, gorkflow.NewNotRetryableError("workflow execution is not in a resumable terminal status")
	}

	failedAttempt, err := e.store.GetStepAttempt(ctx, failedAttemptID)
	if err != nil {
		return nil, err
	}
	if failedAttempt.WorkflowExecutionID != original.ID {
		return nil, gorkflow.NewNotRetryableError("step attempt does not belong to this workflow execution")
	}
	if failedAttempt.Status != gorkflow.AttemptFailed {
		return nil, gorkflow.NewNotRetryableError("step attempt is not in FAILED status")
	}

	priorAttempts, err := e.store.ListStepAttempts(ctx, original.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range priorAttempts {
		if a.StepID == failedAttempt.StepID && a.RetryCount > failedAttempt.RetryCount {
			return nil, gorkflow.NewNotRetryableError("a newer attempt for this step already exists")
		}
	}

	wf, err := e.store.GetWorkflow(ctx, original.WorkflowID)
	if err != nil {
		return nil, err
	}
	failedStep, ok := findStep(wf.Steps, failedAttempt.StepID)
	if !ok {
		return nil, gorkflow.NewNotRetryableError("step no longer exists in the workflow definition")
	}

	now := time.Now().UTC()
	child := &gorkflow.WorkflowExecution{
		ID:                 uuid.NewString(),
		WorkflowID:         wf.ID,
		WorkflowVersion:    wf.Version,
		Status:             gorkflow.ExecutionPending,
		TriggerSource:      "resume",
		CreatedAt:          now,
		ParentExecutionID:  original.ID,
	}
	if err := e.store.CreateExecution(ctx, child); err != nil {
		return nil, err
	}
	if err := child.TransitionTo(gorkflow.ExecutionRunning, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := e.store.UpdateExecution(ctx, child); err != nil {
		return nil, err
	}
	e.logger.WorkflowStarted(ctx, child.ID, wf.ID)

	retryAttempt := &gorkflow.StepAttempt{
		ID:                  uuid.NewString(),
		WorkflowExecutionID: child.ID,
		StepID:              failedAttempt.StepID,
		Status:              gorkflow.AttemptPending,
		Input:               failedAttempt.Input,
		RetryCount:          failedAttempt.RetryCount + 1,
		IsRetry:             true,
		ParentAttemptID:     failedAttempt.ID,
		CreatedAt:           time.Now().UTC(),
	}
	if err := e.store.CreateStepAttempt(ctx, retryAttempt); err != nil {
		return nil, err
	}

	var wrapped any
	if err := json.Unmarshal(retryAttempt.Input, &wrapped); err != nil {
		return nil, fmt.Errorf("gorkflow: failed to decode resumed step input: %w", err)
	}

	result, err := e.runAttempt(ctx, child, failedStep, retryAttempt, wrapped)
	if err != nil {
		return nil, err
	}

	if result.Success {
		currentInput := result.Output
		for _, step := range sortedSteps(wf.Steps) {
			if step.Order <= failedStep.Order {
				continue
			}
			output, failed, err := e.stepLoop(ctx, child, step, currentInput)
			if err != nil {
				return nil, err
			}
			if failed {
				break
			}
			currentInput = output
		}
	}

	if err := e.completeWorkflow(ctx, child); err != nil {
		return nil, err
	}
	return child, nil
}

// stepLoop runs the Step Loop for one Step (spec §4.7.2): an initial attempt
// plus any automatic retries the Retry Policy grants. Returns the step's
// output and false on success, or (nil, true) once the chain has terminated
// in FAILED with no further retries due.
func (e *Executor) stepLoop(ctx context.Context, exec *gorkflow.WorkflowExecution, step gorkflow.Step, currentInput any) (any, bool, error) {
	wrapped := gorkflow.WrapInput(currentInput)
	inputBytes, err := json.Marshal(wrapped)
	if err != nil {
		return nil, false, fmt.Errorf("gorkflow: failed to snapshot step input: %w", err)
	}

	attempt := &gorkflow.StepAttempt{
		ID:                  uuid.NewString(),
		WorkflowExecutionID: exec.ID,
		StepID:              step.ID,
		Status:              gorkflow.AttemptPending,
		Input:               inputBytes,
		RetryCount:          0,
		IsRetry:             false,
		CreatedAt:           time.Now().UTC(),
	}
	if err := e.store.CreateStepAttempt(ctx, attempt); err != nil {
		return nil, false, err
	}

	for {
		result, err := e.runAttempt(ctx, exec, step, attempt, wrapped)
		if err != nil {
			return nil, false, err
		}

		if result.Success {
			return result.Output, false, nil
		}

		if !shouldRetry(result.Err, attempt.RetryCount, step.RetryPolicy) {
			return nil, true, nil
		}

		backoff := gorkflow.BackoffDuration(step.RetryPolicy)
		nextRetryCount := attempt.RetryCount + 1
		e.logger.StepRetrying(ctx, exec.ID, attempt.ID, step.ID, int(backoff.Seconds()), nextRetryCount)
		time.Sleep(backoff)

		next := &gorkflow.StepAttempt{
			ID:                  uuid.NewString(),
			WorkflowExecutionID: exec.ID,
			StepID:              step.ID,
			Status:              gorkflow.AttemptPending,
			Input:               attempt.Input,
			RetryCount:          nextRetryCount,
			IsRetry:             true,
			ParentAttemptID:     attempt.ID,
			CreatedAt:           time.Now().UTC(),
		}
		if err := e.store.CreateStepAttempt(ctx, next); err != nil {
			return nil, false, err
		}
		attempt = next
	}
}

// runAttempt drives one StepAttempt through §4.7.2 steps (a)-(h): transition
// to RUNNING, build the ExecutionContext, validate input, instantiate the
// step, run under the timeout harness, validate output, persist the
// terminal result, and log the outcome.
func (e *Executor) runAttempt(ctx context.Context, exec *gorkflow.WorkflowExecution, step gorkflow.Step, attempt *gorkflow.StepAttempt, wrapped any) (gorkflow.StepResult, error) {
	runningAt := time.Now().UTC()
	if err := attempt.TransitionTo(gorkflow.AttemptRunning, runningAt); err != nil {
		return gorkflow.StepResult{}, err
	}
	if err := e.store.UpdateStepAttempt(ctx, attempt); err != nil {
		return gorkflow.StepResult{}, err
	}
	e.logger.StepStarted(ctx, exec.ID, attempt.ID, step.ID, attempt.RetryCount)

	execCtx := &gorkflow.ExecutionContext{
		Context:              ctx,
		WorkflowExecutionID:  exec.ID,
		StepAttemptID:        attempt.ID,
		WorkflowID:           exec.WorkflowID,
		StepID:               step.ID,
		TriggerInput:         wrapped,
		RetryCount:           attempt.RetryCount,
	}

	started := time.Now()
	var result gorkflow.StepResult
	if validationResult, ok := gorkflow.ValidateStepInput(step, wrapped, started, time.Now()); !ok {
		result = validationResult
	} else {
		instance, err := e.registry.Create(step)
		if err != nil {
			finished := time.Now()
			result = gorkflow.FailureResult(
				gorkflow.NewStepError("REGISTRY_ERROR", err.Error(), gorkflow.ErrorTypePermanent),
				gorkflow.StepMetadata{StartedAt: started, FinishedAt: finished, DurationMs: finished.Sub(started).Milliseconds()},
			)
		} else {
			result = runWithTimeout(instance, wrapped, execCtx, step.EffectiveTimeout())
			result = gorkflow.ValidateStepOutput(step, result)
		}
	}

	finishedAt := time.Now().UTC()
	if result.Success {
		outputBytes, err := json.Marshal(result.Output)
		if err != nil {
			return gorkflow.StepResult{}, fmt.Errorf("gorkflow: failed to snapshot step output: %w", err)
		}
		attempt.Output = outputBytes
		if err := attempt.TransitionTo(gorkflow.AttemptSuccess, finishedAt); err != nil {
			return gorkflow.StepResult{}, err
		}
		if err := e.store.UpdateStepAttempt(ctx, attempt); err != nil {
			return gorkflow.StepResult{}, err
		}
		e.logger.StepCompleted(ctx, exec.ID, attempt.ID, step.ID)
		return result, nil
	}

	attempt.Error = result.Err.Error()
	attempt.ErrorType = result.Err.ErrorType
	if err := attempt.TransitionTo(gorkflow.AttemptFailed, finishedAt); err != nil {
		return gorkflow.StepResult{}, err
	}
	if err := e.store.UpdateStepAttempt(ctx, attempt); err != nil {
		return gorkflow.StepResult{}, err
	}
	e.logger.StepFailed(ctx, exec.ID, attempt.ID, step.ID, result.Err)
	return result, nil
}

// completeWorkflow implements spec §4.7.3: select each step's effective
// (highest retry_count) attempt, and transition the WorkflowExecution to
// SUCCESS only if every effective attempt succeeded.
func (e *Executor) completeWorkflow(ctx context.Context, exec *gorkflow.WorkflowExecution) error {
	attempts, err := e.store.ListStepAttempts(ctx, exec.ID)
	if err != nil {
		return err
	}

	effective := make(map[string]*gorkflow.StepAttempt, len(attempts))
	for _, a := range attempts {
		cur, ok := effective[a.StepID]
		if !ok || a.RetryCount > cur.RetryCount {
			effective[a.StepID] = a
		}
	}

	anyFailed := false
	for _, a := range effective {
		if a.Status == gorkflow.AttemptFailed {
			anyFailed = true
			break
		}
	}

	now := time.Now().UTC()
	if anyFailed {
		if err := exec.TransitionTo(gorkflow.ExecutionFailed, now); err != nil {
			return err
		}
		if err := e.store.UpdateExecution(ctx, exec); err != nil {
			return err
		}
		e.logger.WorkflowFailed(ctx, exec.ID, exec.WorkflowID)
		return nil
	}

	if err := exec.TransitionTo(gorkflow.ExecutionSuccess, now); err != nil {
		return err
	}
	if err := e.store.UpdateExecution(ctx, exec); err != nil {
		return err
	}
	e.logger.WorkflowCompleted(ctx, exec.ID, exec.WorkflowID)
	return nil
}

func sortedSteps(steps []gorkflow.Step) []gorkflow.Step {
	out := make([]gorkflow.Step, len(steps))
	copy(out, steps)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func findStep(steps []gorkflow.Step, stepID string) (gorkflow.Step, bool) {
	for _, s := range steps {
		if s.ID == stepID {
			return s, true
		}
	}
	return gorkflow.Step{}, false
}
