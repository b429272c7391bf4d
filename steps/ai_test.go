package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AryanBarman/gorkflow"
)

func TestAI_MockProviderWithStaticPrompt(t *testing.T) {
	ai := NewAI()
	require.NoError(t, ai.Configure(map[string]any{"prompt": "hello there"}))

	result := ai.Execute(nil, &gorkflow.ExecutionContext{Context: context.Background()})
	require.True(t, result.Success)

	out := result.Output.(map[string]any)
	assert.Equal(t, "MOCK_RESPONSE: hello there", out["text"])
}

func TestAI_PromptTemplateRendersFromInput(t *testing.T) {
	ai := NewAI()
	require.NoError(t, ai.Configure(map[string]any{"prompt_template": "Summarize {topic} for {audience}"}))

	result := ai.Execute(map[string]any{"topic": "Go", "audience": "beginners"}, &gorkflow.ExecutionContext{Context: context.Background()})
	require.True(t, result.Success)

	out := result.Output.(map[string]any)
	assert.Contains(t, out["text"].(string), "Summarize Go for beginners")
}

func TestAI_PromptTemplateMissingKeyFails(t *testing.T) {
	ai := NewAI()
	require.NoError(t, ai.Configure(map[string]any{"prompt_template": "Summarize {topic}"}))

	result := ai.Execute(map[string]any{"other": "x"}, &gorkflow.ExecutionContext{Context: context.Background()})
	require.False(t, result.Success)
	assert.Equal(t, "PROMPT_FORMAT_ERROR", result.Err.Code)
	assert.Equal(t, gorkflow.ErrorTypePermanent, result.Err.ErrorType)
}

func TestAI_MissingPromptFails(t *testing.T) {
	ai := NewAI()
	require.NoError(t, ai.Configure(nil))

	result := ai.Execute(nil, &gorkflow.ExecutionContext{Context: context.Background()})
	require.False(t, result.Success)
	assert.Equal(t, "PROMPT_MISSING", result.Err.Code)
}

func TestAI_GuardrailsRejectShortOutput(t *testing.T) {
	ai := NewAI()
	require.NoError(t, ai.Configure(map[string]any{"prompt": "hi", "min_text_length": float64(1000)}))

	result := ai.Execute(nil, &gorkflow.ExecutionContext{Context: context.Background()})
	require.False(t, result.Success)
	assert.Equal(t, "AI_OUTPUT_INVALID", result.Err.Code)
	assert.Equal(t, gorkflow.ErrorTypePermanent, result.Err.ErrorType)
}

func TestAI_GuardrailsRejectForbiddenPhrase(t *testing.T) {
	ai := NewAI()
	require.NoError(t, ai.Configure(map[string]any{
		"prompt":            "hi",
		"forbidden_phrases": []any{"mock_response"},
	}))

	result := ai.Execute(nil, &gorkflow.ExecutionContext{Context: context.Background()})
	require.False(t, result.Success)
	assert.Equal(t, "AI_OUTPUT_INVALID", result.Err.Code)
}

func TestAI_UnknownProviderFails(t *testing.T) {
	ai := NewAI()
	require.NoError(t, ai.Configure(map[string]any{"provider": "bogus", "prompt": "hi"}))

	result := ai.Execute(nil, &gorkflow.ExecutionContext{Context: context.Background()})
	require.False(t, result.Success)
	assert.Equal(t, "AI_CONFIG_ERROR", result.Err.Code)
}
