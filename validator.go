package gorkflow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

// structValidator checks declarative config (Step, RetryPolicy) against
// their `validate` struct tags when ValidateDeclaration is called. Neither
// the registry, the engine nor the stores call it. Grounded on the
// teacher's validation.go usage of go-playground/validator.
var structValidator = validator.New()

// ValidateDeclaration runs struct-tag validation over a Step declaration.
func ValidateDeclaration(step Step) error {
	if err := structValidator.Struct(step); err != nil {
		return fmt.Errorf("gorkflow: invalid step declaration: %w", err)
	}
	return nil
}

// validateJSONSchema validates data against a raw JSON schema document,
// grounded on serverlessworkflow-sdk-go's impl/json_schema.go. A nil/empty
// schema is treated as "no constraint" (spec §4.5: schemas are optional).
func validateJSONSchema(schema json.RawMessage, data any) error {
	if len(schema) == 0 {
		return nil
	}

	schemaLoader := gojsonschema.NewBytesLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("gorkflow: failed to run json schema validation: %w", err)
	}

	if !result.Valid() {
		msg := ""
		for _, e := range result.Errors() {
			msg += e.String() + "; "
		}
		return fmt.Errorf("gorkflow: schema validation failed: %s", msg)
	}
	return nil
}

// ValidateStepInput is the §4.5 pre-execute input check. On failure it
// returns a synthesized FAILED StepResult with code VALIDATION_ERROR,
// permanent (never retried).
func ValidateStepInput(step Step, input any, startedAt, finishedAt time.Time) (StepResult, bool) {
	if err := validateJSONSchema(step.InputSchema, input); err != nil {
		return FailureResult(
			NewStepError("VALIDATION_ERROR", err.Error(), ErrorTypePermanent),
			StepMetadata{StartedAt: startedAt, FinishedAt: finishedAt, DurationMs: finishedAt.Sub(startedAt).Milliseconds()},
		), false
	}
	return StepResult{}, true
}

// ValidateStepOutput is the §4.5 post-execute output check. On failure it
// rewrites a SUCCESS result into the same VALIDATION_ERROR/permanent shape,
// preserving the step's own metadata.
func ValidateStepOutput(step Step, result StepResult) StepResult {
	if !result.Success {
		return result
	}
	if err := validateJSONSchema(step.OutputSchema, result.Output); err != nil {
		return FailureResult(NewStepError("VALIDATION_ERROR", err.Error(), ErrorTypePermanent), result.Metadata)
	}
	return result
}
