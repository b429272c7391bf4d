package steps

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AryanBarman/gorkflow"
)

func TestHTTP_SuccessfulGET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	h := NewHTTP()
	require.NoError(t, h.Configure(map[string]any{"url": server.URL, "method": "get"}))

	ctx := &gorkflow.ExecutionContext{Context: context.Background()}
	result := h.Execute(nil, ctx)
	require.True(t, result.Success)

	out := result.Output.(map[string]any)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, http.StatusOK, out["_status"])
}

func TestHTTP_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("down"))
	}))
	defer server.Close()

	h := NewHTTP()
	require.NoError(t, h.Configure(map[string]any{"url": server.URL}))

	result := h.Execute(nil, &gorkflow.ExecutionContext{Context: context.Background()})
	require.False(t, result.Success)
	assert.Equal(t, gorkflow.ErrorTypeTransient, result.Err.ErrorType)
}

func TestHTTP_ClientErrorIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	h := NewHTTP()
	require.NoError(t, h.Configure(map[string]any{"url": server.URL}))

	result := h.Execute(nil, &gorkflow.ExecutionContext{Context: context.Background()})
	require.False(t, result.Success)
	assert.Equal(t, gorkflow.ErrorTypePermanent, result.Err.ErrorType)
}

func TestHTTP_MissingURLIsPermanent(t *testing.T) {
	h := NewHTTP()
	require.NoError(t, h.Configure(nil))

	result := h.Execute(nil, &gorkflow.ExecutionContext{Context: context.Background()})
	require.False(t, result.Success)
	assert.Equal(t, "HTTP_ERROR", result.Err.Code)
	assert.Equal(t, gorkflow.ErrorTypePermanent, result.Err.ErrorType)
}

func TestHTTP_BodyAndHeadersFromInput(t *testing.T) {
	var gotBody string
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Custom")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	h := NewHTTP()
	require.NoError(t, h.Configure(map[string]any{
		"url":                server.URL,
		"method":             "post",
		"body_from_input":    true,
		"headers_from_input": true,
	}))

	input := map[string]any{
		"_headers": map[string]any{"X-Custom": "yes"},
		"field":    "value",
	}
	result := h.Execute(input, &gorkflow.ExecutionContext{Context: context.Background()})
	require.True(t, result.Success)
	assert.Equal(t, "yes", gotHeader)
	assert.Contains(t, gotBody, `"field":"value"`)
	assert.NotContains(t, gotBody, "_headers")
}

func TestTransientFailureAPI_AlwaysFailsTransiently(t *testing.T) {
	f := NewTransientFailureAPI()
	require.NoError(t, f.Configure(nil))

	result := f.Execute(nil, &gorkflow.ExecutionContext{})
	require.False(t, result.Success)
	assert.Equal(t, "UNKNOWN_API_HANDLER", result.Err.Code)
	assert.Equal(t, gorkflow.ErrorTypeTransient, result.Err.ErrorType)
	assert.True(t, result.Err.Retryable)
}
