package engine

import (
	"time"

	"github.com/AryanBarman/gorkflow"
)

// runWithTimeout wraps a StepExecutor.Execute call with the wall-clock
// deadline harness described in spec §4.4. If the step has not returned by
// the deadline the harness synthesizes a FAILED/TIMEOUT/transient result;
// metadata brackets the harness call itself, not the abandoned goroutine.
//
// The underlying step call keeps running in its own goroutine after a
// timeout fires — the harness does not (and, for an arbitrary synchronous
// StepExecutor, cannot) forcibly kill it. The harness also attaches no
// deadline to execCtx: the step sees the caller's context unchanged, so a
// step that does not return on its own keeps its goroutine alive after the
// TIMEOUT result has been delivered. The built-in HTTP and AI steps bound
// their requests with their own http.Client timeouts.
func runWithTimeout(exec gorkflow.StepExecutor, input any, execCtx *gorkflow.ExecutionContext, timeout time.Duration) gorkflow.StepResult {
	started := time.Now()

	resultCh := make(chan gorkflow.StepResult, 1)
	go func() {
		resultCh <- safeExecute(exec, input, execCtx)
	}()

	select {
	case result := <-resultCh:
		return result
	case <-time.After(timeout):
		finished := time.Now()
		return gorkflow.FailureResult(
			gorkflow.NewStepError("TIMEOUT", "step did not complete within the configured timeout", gorkflow.ErrorTypeTransient),
			gorkflow.StepMetadata{
				StartedAt:  started,
				FinishedAt: finished,
				DurationMs: finished.Sub(started).Milliseconds(),
			},
		)
	}
}

// safeExecute recovers a panic escaping a step implementation and converts
// it into the permanent STEP_CRASH failure required by spec §4.7.5: a bug
// in a step must never corrupt the audit trail.
func safeExecute(exec gorkflow.StepExecutor, input any, execCtx *gorkflow.ExecutionContext) (result gorkflow.StepResult) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			finished := time.Now()
			result = gorkflow.FailureResult(
				gorkflow.NewStepError("STEP_CRASH", panicMessage(r), gorkflow.ErrorTypePermanent),
				gorkflow.StepMetadata{StartedAt: started, FinishedAt: finished, DurationMs: finished.Sub(started).Milliseconds()},
			)
		}
	}()
	return exec.Execute(input, execCtx)
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	if s, ok := r.(string); ok {
		return s
	}
	return "step implementation panicked"
}
