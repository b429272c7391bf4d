package steps

import (
	"fmt"
	"time"

	"github.com/AryanBarman/gorkflow"
)

// TransientFail fails with a transient error for its first failCount
// attempts, then succeeds. Grounded on app/steps/transient_fail_step.py,
// but reworked per DESIGN.md's Open Question 1 decision: the registry
// constructs a fresh instance per attempt (spec §4.1), so an instance field
// counting attempts would always read zero. The attempt number instead
// comes from ExecutionContext.RetryCount, which the executor already
// tracks durably.
//
// Config:
//
//	fail_count: number of attempts to fail before succeeding (default 2)
type TransientFail struct {
	failCount int
}

func NewTransientFail() gorkflow.StepExecutor { return &TransientFail{failCount: 2} }

func (s *TransientFail) Configure(config map[string]any) error {
	if v, ok := config["fail_count"].(float64); ok {
		s.failCount = int(v)
	}
	return nil
}

func (s *TransientFail) Execute(input any, ctx *gorkflow.ExecutionContext) gorkflow.StepResult {
	started := time.Now()

	if ctx.RetryCount < s.failCount {
		message := fmt.Sprintf(
			"transient failure (attempt %d/%d): step %s, workflow execution %s",
			ctx.RetryCount+1, s.failCount+1, ctx.StepID, ctx.WorkflowExecutionID,
		)
		finished := time.Now()
		return gorkflow.FailureResult(
			gorkflow.NewStepError("TRANSIENT_FAILURE", message, gorkflow.ErrorTypeTransient),
			gorkflow.StepMetadata{StartedAt: started, FinishedAt: finished, DurationMs: finished.Sub(started).Milliseconds()},
		)
	}

	output := map[string]any{
		"result":   "success",
		"attempts": ctx.RetryCount + 1,
		"message":  fmt.Sprintf("succeeded after %d transient failures", s.failCount),
	}
	finished := time.Now()
	return gorkflow.SuccessResult(output, gorkflow.StepMetadata{
		StartedAt:  started,
		FinishedAt: finished,
		DurationMs: finished.Sub(started).Milliseconds(),
	})
}
