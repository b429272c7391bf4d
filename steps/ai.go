package steps

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/AryanBarman/gorkflow"
)

// AI is the AI executor: it runs a prompt against a configured provider and
// applies guardrails to the result. Grounded on app/steps/ai_step.py.
//
// Config:
//
//	provider: "mock" | "openai" (default "mock")
//	model: provider model id (default "mock-1")
//	prompt / prompt_template: static prompt or a Go template-free format
//	  string using "{field}" placeholders resolved against a map input
//	prompt_id / prompt_version: free-form identifiers carried into metadata
//	min_text_length, forbidden_phrases: output guardrails
type AI struct {
	provider        string
	model           string
	prompt          string
	promptTemplate  string
	promptID        string
	promptVersion   string
	minTextLength   int
	forbiddenPhrases []string
	timeout         time.Duration
	client          *http.Client
}

func NewAI() gorkflow.StepExecutor {
	return &AI{provider: "mock", model: "mock-1", timeout: 30 * time.Second, client: &http.Client{}}
}

func (s *AI) Configure(config map[string]any) error {
	if v, ok := config["provider"].(string); ok && v != "" {
		s.provider = v
	}
	if v, ok := config["model"].(string); ok && v != "" {
		s.model = v
	}
	if v, ok := config["prompt"].(string); ok {
		s.prompt = v
	}
	if v, ok := config["prompt_template"].(string); ok {
		s.promptTemplate = v
	}
	if v, ok := config["prompt_id"].(string); ok {
		s.promptID = v
	}
	if v, ok := config["prompt_version"].(string); ok {
		s.promptVersion = v
	}
	if v, ok := config["min_text_length"].(float64); ok {
		s.minTextLength = int(v)
	}
	if v, ok := config["forbidden_phrases"].([]any); ok {
		for _, p := range v {
			if sp, ok := p.(string); ok {
				s.forbiddenPhrases = append(s.forbiddenPhrases, sp)
			}
		}
	}
	if v, ok := config["timeout"].(float64); ok && v > 0 {
		s.timeout = time.Duration(v) * time.Second
	}
	s.client.Timeout = s.timeout
	return nil
}

func (s *AI) Execute(input any, ctx *gorkflow.ExecutionContext) gorkflow.StepResult {
	started := time.Now()

	prompt, failResult := s.buildPrompt(input, started)
	if failResult != nil {
		return *failResult
	}

	switch s.provider {
	case "mock":
		outputText := "MOCK_RESPONSE: " + prompt
		usage := map[string]any{
			"prompt_tokens":     len(strings.Fields(prompt)),
			"completion_tokens": len(strings.Fields(outputText)),
		}
		if failResult := s.evaluateOutput(outputText, started); failResult != nil {
			return *failResult
		}
		return s.success(started, outputText, usage)

	case "openai":
		return s.executeOpenAI(started, prompt)

	default:
		return s.fail(started, "AI_CONFIG_ERROR", "unknown AI provider: "+s.provider, gorkflow.ErrorTypePermanent)
	}
}

func (s *AI) buildPrompt(input any, started time.Time) (string, *gorkflow.StepResult) {
	if s.prompt != "" {
		return s.prompt, nil
	}
	if s.promptTemplate == "" {
		r := s.fail(started, "PROMPT_MISSING", "AI step requires 'prompt' or 'prompt_template'", gorkflow.ErrorTypePermanent)
		return "", &r
	}
	m, ok := input.(map[string]any)
	if !ok {
		r := s.fail(started, "PROMPT_INPUT_ERROR", "prompt_template requires a mapping input", gorkflow.ErrorTypePermanent)
		return "", &r
	}
	rendered := s.promptTemplate
	for k, v := range m {
		rendered = strings.ReplaceAll(rendered, "{"+k+"}", fmt.Sprintf("%v", v))
	}
	if strings.Contains(rendered, "{") && strings.Contains(rendered, "}") {
		r := s.fail(started, "PROMPT_FORMAT_ERROR", "prompt_template references a missing input key", gorkflow.ErrorTypePermanent)
		return "", &r
	}
	return rendered, nil
}

func (s *AI) executeOpenAI(started time.Time, prompt string) gorkflow.StepResult {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return s.fail(started, "AI_CONFIG_ERROR", "OPENAI_API_KEY is not set", gorkflow.ErrorTypePermanent)
	}

	payload := map[string]any{
		"model":    s.model,
		"messages": []map[string]string{{"role": "user", "content": prompt}},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return s.fail(started, "AI_ERROR", "failed to encode request: "+err.Error(), gorkflow.ErrorTypeTransient)
	}

	req, err := http.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat/completions", bytes.NewReader(encoded))
	if err != nil {
		return s.fail(started, "AI_ERROR", "failed to build request: "+err.Error(), gorkflow.ErrorTypeTransient)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return s.fail(started, "AI_ERROR", "AI execution error: "+err.Error(), gorkflow.ErrorTypeTransient)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		errType := gorkflow.ErrorTypePermanent
		if isTransientStatus(resp.StatusCode) {
			errType = gorkflow.ErrorTypeTransient
		}
		snippet := string(respBody)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return s.fail(started, "AI_HTTP_ERROR", fmt.Sprintf("OpenAI HTTP %d: %s", resp.StatusCode, snippet), errType)
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage map[string]any `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return s.fail(started, "AI_ERROR", "failed to decode OpenAI response: "+err.Error(), gorkflow.ErrorTypeTransient)
	}
	outputText := ""
	if len(decoded.Choices) > 0 {
		outputText = decoded.Choices[0].Message.Content
	}

	if failResult := s.evaluateOutput(outputText, started); failResult != nil {
		return *failResult
	}
	return s.success(started, outputText, decoded.Usage)
}

func isTransientStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func (s *AI) evaluateOutput(outputText string, started time.Time) *gorkflow.StepResult {
	if s.minTextLength > 0 && len(strings.TrimSpace(outputText)) < s.minTextLength {
		r := s.fail(started, "AI_OUTPUT_INVALID", fmt.Sprintf("output too short (min %d chars)", s.minTextLength), gorkflow.ErrorTypePermanent)
		return &r
	}
	lower := strings.ToLower(outputText)
	for _, phrase := range s.forbiddenPhrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			r := s.fail(started, "AI_OUTPUT_INVALID", "output contains forbidden phrase: "+phrase, gorkflow.ErrorTypePermanent)
			return &r
		}
	}
	return nil
}

func (s *AI) success(started time.Time, outputText string, usage map[string]any) gorkflow.StepResult {
	finished := time.Now()
	output := map[string]any{
		"text": outputText,
		"_ai_meta": map[string]any{
			"provider":       s.provider,
			"model":          s.model,
			"prompt_id":      s.promptID,
			"prompt_version": s.promptVersion,
			"usage":          usage,
		},
	}
	return gorkflow.SuccessResult(output, gorkflow.StepMetadata{StartedAt: started, FinishedAt: finished, DurationMs: finished.Sub(started).Milliseconds()})
}

func (s *AI) fail(started time.Time, code, message string, errType gorkflow.ErrorType) gorkflow.StepResult {
	finished := time.Now()
	return gorkflow.FailureResult(
		gorkflow.NewStepError(code, message, errType),
		gorkflow.StepMetadata{StartedAt: started, FinishedAt: finished, DurationMs: finished.Sub(started).Milliseconds()},
	)
}
