package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AryanBarman/gorkflow"
)

func TestDefaultTransform_StampsInputMap(t *testing.T) {
	tr := NewDefaultTransform()
	require.NoError(t, tr.Configure(nil))

	ctx := &gorkflow.ExecutionContext{WorkflowExecutionID: "exec-1"}
	result := tr.Execute(map[string]any{"name": "Ada"}, ctx)
	require.True(t, result.Success)

	out := result.Output.(map[string]any)
	assert.Equal(t, "Ada", out["name"])
	assert.Equal(t, true, out["processed"])
	assert.Equal(t, "exec-1", out["workflow_execution_id"])
	assert.NotEmpty(t, out["processed_at"])
}

func TestDefaultTransform_WrapsNonMapInput(t *testing.T) {
	tr := NewDefaultTransform()
	require.NoError(t, tr.Configure(nil))

	result := tr.Execute("raw-string", &gorkflow.ExecutionContext{})
	require.True(t, result.Success)
	out := result.Output.(map[string]any)
	assert.Equal(t, "raw-string", out["original_input"])
}

func TestWeatherFormatter_FormatsKnownShape(t *testing.T) {
	w := NewWeatherFormatter()
	require.NoError(t, w.Configure(nil))

	input := map[string]any{
		"current_condition": []any{
			map[string]any{
				"temp_C":   "21",
				"humidity": "55",
				"weatherDesc": []any{
					map[string]any{"value": "Sunny"},
				},
			},
		},
		"nearest_area": []any{
			map[string]any{
				"areaName": []any{
					map[string]any{"value": "London"},
				},
			},
		},
	}

	result := w.Execute(input, &gorkflow.ExecutionContext{})
	require.True(t, result.Success)

	out := result.Output.(map[string]any)
	line := out["log_line"].(string)
	assert.Contains(t, line, "London")
	assert.Contains(t, line, "21")
	assert.Contains(t, line, "Sunny")
	assert.Contains(t, line, "55")
}

func TestWeatherFormatter_RejectsNonObjectInput(t *testing.T) {
	w := NewWeatherFormatter()
	require.NoError(t, w.Configure(nil))

	result := w.Execute("not an object", &gorkflow.ExecutionContext{})
	require.False(t, result.Success)
	assert.Equal(t, "TRANSFORM_ERROR", result.Err.Code)
	assert.Equal(t, gorkflow.ErrorTypePermanent, result.Err.ErrorType)
}
