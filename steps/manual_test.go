package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AryanBarman/gorkflow"
)

func TestManual_PassesInputThrough(t *testing.T) {
	m := NewManual()
	require.NoError(t, m.Configure(nil))

	result := m.Execute(map[string]any{"a": 1}, &gorkflow.ExecutionContext{})
	assert.True(t, result.Success)
	assert.Equal(t, map[string]any{"a": 1}, result.Output)
}
