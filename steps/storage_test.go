package steps

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AryanBarman/gorkflow"
)

func TestStorage_NoPathSimulatesPersistence(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.Configure(nil))

	result := s.Execute(map[string]any{"log_line": "hello"}, &gorkflow.ExecutionContext{StepAttemptID: "attempt-1"})
	require.True(t, result.Success)

	out := result.Output.(map[string]any)
	assert.Equal(t, false, out["persisted"])
	assert.Equal(t, 1, out["record_count"])
}

func TestStorage_WithPathAppendsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.log")

	s := NewStorage()
	require.NoError(t, s.Configure(map[string]any{"path": path}))

	result := s.Execute(map[string]any{"log_line": "first line"}, &gorkflow.ExecutionContext{StepAttemptID: "attempt-1"})
	require.True(t, result.Success)
	out := result.Output.(map[string]any)
	assert.Equal(t, true, out["persisted"])

	result = s.Execute(map[string]any{"log_line": "second line"}, &gorkflow.ExecutionContext{StepAttemptID: "attempt-2"})
	require.True(t, result.Success)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first line\nsecond line\n", string(contents))
}

func TestStorage_NilInputYieldsZeroRecordCount(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.Configure(nil))

	result := s.Execute(nil, &gorkflow.ExecutionContext{})
	require.True(t, result.Success)
	assert.Equal(t, 0, result.Output.(map[string]any)["record_count"])
}
