package steps

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AryanBarman/gorkflow"
)

// Storage is the STORAGE executor. When its config carries a "path", it
// appends the input's "log_line" (or a string rendering of the input) to
// that file as a durable side effect; otherwise it simulates persistence.
// Grounded on app/steps/persist_step.py.
type Storage struct {
	path string
}

func NewStorage() gorkflow.StepExecutor { return &Storage{} }

func (s *Storage) Configure(config map[string]any) error {
	if p, ok := config["path"].(string); ok {
		s.path = p
	}
	return nil
}

func (s *Storage) Execute(input any, ctx *gorkflow.ExecutionContext) gorkflow.StepResult {
	started := time.Now()

	persisted := false
	if s.path != "" {
		content := renderContent(input)
		if err := appendLine(s.path, content); err != nil {
			finished := time.Now()
			return gorkflow.FailureResult(
				gorkflow.NewStepError("STORAGE_ERROR", fmt.Sprintf("failed to persist to %s: %s", s.path, err), gorkflow.ErrorTypeTransient),
				gorkflow.StepMetadata{StartedAt: started, FinishedAt: finished, DurationMs: finished.Sub(started).Milliseconds()},
			)
		}
		persisted = true
	}

	recordCount := 0
	if input != nil {
		recordCount = 1
	}

	finished := time.Now()
	output := map[string]any{
		"persisted":          persisted,
		"persisted_at":       started.UTC().Format(time.RFC3339Nano),
		"step_execution_id":  ctx.StepAttemptID,
		"record_count":       recordCount,
		"path":               s.path,
	}
	return gorkflow.SuccessResult(output, gorkflow.StepMetadata{
		StartedAt:  started,
		FinishedAt: finished,
		DurationMs: finished.Sub(started).Milliseconds(),
	})
}

func renderContent(input any) string {
	if m, ok := input.(map[string]any); ok {
		if line, ok := m["log_line"].(string); ok {
			return line
		}
	}
	return fmt.Sprintf("%v", input)
}

func appendLine(path, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(content + "\n")
	return err
}
