package steps

import (
	"fmt"
	"time"

	"github.com/AryanBarman/gorkflow"
)

// DefaultTransform is the fallback LOGIC executor for the default (and any
// unrecognized) handler: a pure, deterministic transformation that stamps
// the input with processing metadata. Grounded on app/steps/transform_step.py.
type DefaultTransform struct{}

func NewDefaultTransform() gorkflow.StepExecutor { return &DefaultTransform{} }

func (s *DefaultTransform) Configure(config map[string]any) error { return nil }

func (s *DefaultTransform) Execute(input any, ctx *gorkflow.ExecutionContext) gorkflow.StepResult {
	started := time.Now()

	var output map[string]any
	if m, ok := input.(map[string]any); ok {
		output = make(map[string]any, len(m)+3)
		for k, v := range m {
			output[k] = v
		}
	} else {
		output = map[string]any{"original_input": input}
	}
	output["processed"] = true
	output["processed_at"] = started.UTC().Format(time.RFC3339Nano)
	output["workflow_execution_id"] = ctx.WorkflowExecutionID

	finished := time.Now()
	return gorkflow.SuccessResult(output, gorkflow.StepMetadata{
		StartedAt:  started,
		FinishedAt: finished,
		DurationMs: finished.Sub(started).Milliseconds(),
	})
}

// WeatherFormatter is the LOGIC executor registered under the
// "weather_formatter" handler: it reshapes a wttr.in-style JSON payload
// (as typically produced by the built-in API/http step) into a single
// human-readable log line. Grounded on app/steps/weather_transform_step.py.
type WeatherFormatter struct{}

func NewWeatherFormatter() gorkflow.StepExecutor { return &WeatherFormatter{} }

func (s *WeatherFormatter) Configure(config map[string]any) error { return nil }

func (s *WeatherFormatter) Execute(input any, ctx *gorkflow.ExecutionContext) gorkflow.StepResult {
	started := time.Now()

	logLine, err := formatWeatherLogLine(input)
	finished := time.Now()
	meta := gorkflow.StepMetadata{StartedAt: started, FinishedAt: finished, DurationMs: finished.Sub(started).Milliseconds()}
	if err != nil {
		return gorkflow.FailureResult(
			gorkflow.NewStepError("TRANSFORM_ERROR", "failed to parse weather data: "+err.Error(), gorkflow.ErrorTypePermanent),
			meta,
		)
	}

	return gorkflow.SuccessResult(map[string]any{
		"log_line":  logLine,
		"processed": true,
	}, meta)
}

func formatWeatherLogLine(input any) (string, error) {
	m, ok := input.(map[string]any)
	if !ok {
		return "", fmt.Errorf("expected an object, got %T", input)
	}

	current, err := firstElement(m, "current_condition")
	if err != nil {
		return "", err
	}
	temp, _ := current["temp_C"].(string)
	if temp == "" {
		temp = "?"
	}
	humidity, _ := current["humidity"].(string)
	if humidity == "" {
		humidity = "?"
	}

	desc := "Unknown"
	if wd, ok := current["weatherDesc"].([]any); ok && len(wd) > 0 {
		if obj, ok := wd[0].(map[string]any); ok {
			if v, ok := obj["value"].(string); ok {
				desc = v
			}
		}
	}

	area := "Unknown Location"
	if na, ok := m["nearest_area"].([]any); ok && len(na) > 0 {
		if obj, ok := na[0].(map[string]any); ok {
			if names, ok := obj["areaName"].([]any); ok && len(names) > 0 {
				if nameObj, ok := names[0].(map[string]any); ok {
					if v, ok := nameObj["value"].(string); ok {
						area = v
					}
				}
			}
		}
	}

	return fmt.Sprintf("[%s] Weather in %s: %s°C, %s, Humidity: %s%%",
		time.Now().Format(time.RFC3339), area, temp, desc, humidity), nil
}

func firstElement(m map[string]any, key string) (map[string]any, error) {
	arr, ok := m[key].([]any)
	if !ok || len(arr) == 0 {
		return map[string]any{}, nil
	}
	obj, ok := arr[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s[0] is not an object", key)
	}
	return obj, nil
}
