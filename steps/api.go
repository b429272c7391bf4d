package steps

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AryanBarman/gorkflow"
)

// HTTP is the API executor registered under the "http" handler: it issues a
// real HTTP request per its config. Grounded on app/steps/http_step.py.
// Uses net/http directly — no pack repo's own code calls a higher-level Go
// HTTP client (see DESIGN.md).
type HTTP struct {
	url             string
	method          string
	headers         map[string]string
	timeout         time.Duration
	headersFromInput bool
	bodyFromInput   bool
	client          *http.Client
}

func NewHTTP() gorkflow.StepExecutor {
	return &HTTP{method: "GET", timeout: 10 * time.Second, client: &http.Client{}}
}

func (s *HTTP) Configure(config map[string]any) error {
	if v, ok := config["url"].(string); ok {
		s.url = v
	}
	if v, ok := config["method"].(string); ok && v != "" {
		s.method = strings.ToUpper(v)
	}
	if v, ok := config["timeout"].(float64); ok && v > 0 {
		s.timeout = time.Duration(v) * time.Second
	}
	if hdrs, ok := config["headers"].(map[string]any); ok {
		s.headers = make(map[string]string, len(hdrs))
		for k, v := range hdrs {
			if sv, ok := v.(string); ok {
				s.headers[k] = sv
			}
		}
	}
	if v, ok := config["headers_from_input"].(bool); ok {
		s.headersFromInput = v
	}
	if v, ok := config["body_from_input"].(bool); ok {
		s.bodyFromInput = v
	}
	s.client.Timeout = s.timeout
	return nil
}

func (s *HTTP) Execute(input any, ctx *gorkflow.ExecutionContext) gorkflow.StepResult {
	started := time.Now()

	if s.url == "" {
		return s.fail(started, "HTTP_ERROR", "missing URL in step config", gorkflow.ErrorTypePermanent)
	}

	headers := map[string]string{}
	for k, v := range s.headers {
		headers[k] = v
	}
	inputMap, inputIsMap := input.(map[string]any)
	if s.headersFromInput && inputIsMap {
		if dyn, ok := inputMap["_headers"].(map[string]any); ok {
			for k, v := range dyn {
				if sv, ok := v.(string); ok {
					headers[k] = sv
				}
			}
		}
	}

	var bodyReader io.Reader
	if s.bodyFromInput {
		body := input
		if inputIsMap {
			stripped := make(map[string]any, len(inputMap))
			for k, v := range inputMap {
				if k == "_headers" {
					continue
				}
				stripped[k] = v
			}
			body = stripped
		}
		encoded, err := json.Marshal(body)
		if err != nil {
			return s.fail(started, "HTTP_ERROR", "failed to encode request body: "+err.Error(), gorkflow.ErrorTypePermanent)
		}
		bodyReader = bytes.NewReader(encoded)
		if headers["Content-Type"] == "" {
			headers["Content-Type"] = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, s.method, s.url, bodyReader)
	if err != nil {
		return s.fail(started, "HTTP_ERROR", "failed to build request: "+err.Error(), gorkflow.ErrorTypePermanent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return s.fail(started, "HTTP_ERROR", "network error (transient): "+err.Error(), gorkflow.ErrorTypeTransient)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var output map[string]any
		if err := json.Unmarshal(respBody, &output); err != nil {
			output = map[string]any{"text": string(respBody)}
		}
		output["_status"] = resp.StatusCode
		finished := time.Now()
		return gorkflow.SuccessResult(output, gorkflow.StepMetadata{StartedAt: started, FinishedAt: finished, DurationMs: finished.Sub(started).Milliseconds()})
	}

	errType := gorkflow.ErrorTypePermanent
	category := "Permanent"
	if resp.StatusCode >= 500 {
		errType = gorkflow.ErrorTypeTransient
		category = "Transient"
	}
	snippet := string(respBody)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return s.fail(started, "HTTP_ERROR", fmt.Sprintf("HTTP %d (%s): %s", resp.StatusCode, category, snippet), errType)
}

func (s *HTTP) fail(started time.Time, code, message string, errType gorkflow.ErrorType) gorkflow.StepResult {
	finished := time.Now()
	return gorkflow.FailureResult(
		gorkflow.NewStepError(code, message, errType),
		gorkflow.StepMetadata{StartedAt: started, FinishedAt: finished, DurationMs: finished.Sub(started).Milliseconds()},
	)
}

// TransientFailure is the API fallback executor for an unrecognized handler
// (spec §4.3): it always fails transiently, so a misconfigured API step is
// eligible for retry rather than permanently wedging the workflow.
type TransientFailure struct{}

func NewTransientFailureAPI() gorkflow.StepExecutor { return &TransientFailure{} }

func (s *TransientFailure) Configure(config map[string]any) error { return nil }

func (s *TransientFailure) Execute(input any, ctx *gorkflow.ExecutionContext) gorkflow.StepResult {
	started := time.Now()
	finished := time.Now()
	return gorkflow.FailureResult(
		gorkflow.NewStepError("UNKNOWN_API_HANDLER", "no API handler configured for this step", gorkflow.ErrorTypeTransient),
		gorkflow.StepMetadata{StartedAt: started, FinishedAt: finished, DurationMs: finished.Sub(started).Milliseconds()},
	)
}
