// Command seed builds a small three-step workflow (manual input, a logic
// transform, and a storage write), registers it with an in-memory store,
// and runs it to completion, printing the resulting execution and its
// step attempt history. Grounded on the teacher's
// example/libsql_persistence/main.go build-and-run style.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AryanBarman/gorkflow"
	"github.com/AryanBarman/gorkflow/engine"
	"github.com/AryanBarman/gorkflow/steps"
	"github.com/AryanBarman/gorkflow/store"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	memStore := store.NewMemoryStore()
	gorkflowLogger := gorkflow.NewLogger(logger, memStore)
	registry := steps.DefaultRegistry()
	exec := engine.NewExecutor(memStore, registry, gorkflowLogger)

	ctx := context.Background()
	wf := intakeWorkflow()
	if err := memStore.CreateWorkflow(ctx, wf); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed workflow")
	}

	logger.Info().Str("workflow_id", wf.ID).Msg("running seeded workflow")

	run, err := exec.Execute(ctx, wf.ID, map[string]any{"customer_name": "Ada Lovelace"}, "seed")
	if err != nil {
		logger.Fatal().Err(err).Msg("workflow execution failed")
	}

	fmt.Printf("\n=== Workflow Execution %s ===\n", run.ID)
	fmt.Printf("status: %s\n", run.Status)

	attempts, err := memStore.ListStepAttempts(ctx, run.ID)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to list step attempts")
	}
	for i, a := range attempts {
		fmt.Printf("  [%d] step=%s retry=%d status=%s\n", i+1, a.StepID, a.RetryCount, a.Status)
	}

	events, err := memStore.ListLogEvents(ctx, run.ID)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to list log events")
	}
	fmt.Println("\n=== Log Events ===")
	for _, e := range events {
		fmt.Printf("  %s  %s\n", e.Timestamp.Format(time.RFC3339), e.Message)
	}
}

func intakeWorkflow() *gorkflow.Workflow {
	return &gorkflow.Workflow{
		ID:        "customer-intake",
		Name:      "Customer Intake",
		Version:   1,
		CreatedBy: "seed",
		CreatedAt: time.Now().UTC(),
		Steps: []gorkflow.Step{
			{
				ID:             uuid.NewString(),
				WorkflowID:     "customer-intake",
				Kind:           gorkflow.StepKindManual,
				Order:          1,
				TimeoutSeconds: 10,
			},
			{
				ID:             uuid.NewString(),
				WorkflowID:     "customer-intake",
				Kind:           gorkflow.StepKindLogic,
				Order:          2,
				TimeoutSeconds: 10,
			},
			{
				ID:             uuid.NewString(),
				WorkflowID:     "customer-intake",
				Kind:           gorkflow.StepKindStorage,
				Order:          3,
				TimeoutSeconds: 10,
				Config:         map[string]any{"path": "./seed_output.log"},
			},
		},
	}
}
