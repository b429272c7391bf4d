// Package steps holds the built-in StepExecutor implementations the
// registry wires up by default: MANUAL, LOGIC (default + weather_formatter),
// STORAGE, API (http + fallback), and AI. Grounded 1:1 on the Python
// original's app/steps/*.py, expressed as the Go step contract (gorkflow.StepExecutor).
package steps

import (
	"time"

	"github.com/AryanBarman/gorkflow"
)

// Manual is a pass-through MANUAL step: it returns its input as output
// unmodified. Grounded on app/steps/input_step.py's InputStep.
type Manual struct{}

func NewManual() gorkflow.StepExecutor { return &Manual{} }

func (s *Manual) Configure(config map[string]any) error { return nil }

func (s *Manual) Execute(input any, ctx *gorkflow.ExecutionContext) gorkflow.StepResult {
	started := time.Now()
	finished := time.Now()
	return gorkflow.SuccessResult(input, gorkflow.StepMetadata{
		StartedAt:  started,
		FinishedAt: finished,
		DurationMs: finished.Sub(started).Milliseconds(),
	})
}
