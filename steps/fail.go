package steps

import (
	"time"

	"github.com/AryanBarman/gorkflow"
)

// Fail always fails permanently. Used to exercise halt-on-failure behavior
// in tests and demos. Grounded on app/steps/fail_step.py.
type Fail struct{}

func NewFail() gorkflow.StepExecutor { return &Fail{} }

func (s *Fail) Configure(config map[string]any) error { return nil }

func (s *Fail) Execute(input any, ctx *gorkflow.ExecutionContext) gorkflow.StepResult {
	started := time.Now()
	finished := time.Now()
	return gorkflow.FailureResult(
		gorkflow.NewStepError("FORCED_FAILURE", "this step is designed to fail for testing purposes", gorkflow.ErrorTypePermanent),
		gorkflow.StepMetadata{StartedAt: started, FinishedAt: finished, DurationMs: finished.Sub(started).Milliseconds()},
	)
}
