// internal/common/genai/client.go
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"familyski-workers/internal/common/metrics"
)

var (
	ErrTimeout          = errors.New("LLM_TIMEOUT")
	ErrGenerationFailed = errors.New("LLM_GENERATION_FAILED")
)

// Config holds connection settings for the text generation API.
type Config struct {
	BaseURL     string
	APIKey      string
	MaxRetries  int
	MaxTokens   int
	Temperature float64
}

// Client is the shared text generation client. All LLM traffic in the
// pipeline (assessment, sentiment, extraction, content generation) goes
// through Generate so retries and metrics live in one place.
type Client struct {
	config *Config
	client *http.Client
}

// Request describes one generation call. Operation labels the call in
// metrics and has no effect on the API request itself.
type Request struct {
	Operation   string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response is the decoded generation result.
type Response struct {
	Text       string `json:"text"`
	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used"`
}

func NewClient(config *Config) *Client {
	return &Client{
		config: config,
		client: &http.Client{
			// No client-level timeout; cancellation comes from the caller's context
		},
	}
}

// Generate sends a prompt to the generation API and returns the model's
// text. Transient failures (5xx, network errors) are retried with
// exponential backoff; a context deadline surfaces as ErrTimeout.
func (c *Client) Generate(ctx context.Context, genReq *Request) (*Response, error) {
	operation := genReq.Operation
	if operation == "" {
		operation = "generate"
	}

	maxTokens := genReq.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}
	temperature := genReq.Temperature
	if temperature == 0 {
		temperature = c.config.Temperature
	}

	requestBody := map[string]interface{}{
		"prompt":      genReq.Prompt,
		"max_tokens":  maxTokens,
		"temperature": temperature,
	}
	if genReq.System != "" {
		requestBody["system"] = genReq.System
	}

	body, _ := json.Marshal(requestBody)

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
				// Continue with retry
			case <-ctx.Done():
				metrics.LLMRequests.WithLabelValues(operation, "timeout").Inc()
				return nil, ErrTimeout
			}
		}

		// The request body is consumed on each send, so build a fresh
		// request per attempt.
		req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/api/ai/generate", bytes.NewBuffer(body))
		if err != nil {
			metrics.LLMRequests.WithLabelValues(operation, "error").Inc()
			return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}

		resp, lastErr = c.client.Do(req)
		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			// Client errors are not transient; retrying the same prompt
			// against a 4xx wastes the budget.
			status := resp.StatusCode
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", status)
			resp = nil
			if status >= 400 && status < 500 {
				break
			}
		}

		if ctx.Err() != nil {
			metrics.LLMRequests.WithLabelValues(operation, "timeout").Inc()
			return nil, ErrTimeout
		}
	}

	if lastErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			metrics.LLMRequests.WithLabelValues(operation, "timeout").Inc()
			return nil, ErrTimeout
		}
		metrics.LLMRequests.WithLabelValues(operation, "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, lastErr)
	}

	if resp == nil {
		metrics.LLMRequests.WithLabelValues(operation, "error").Inc()
		return nil, fmt.Errorf("%w: no successful response after retries", ErrGenerationFailed)
	}
	defer resp.Body.Close()

	var apiResponse Response
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		metrics.LLMRequests.WithLabelValues(operation, "error").Inc()
		return nil, fmt.Errorf("%w: decode error: %v", ErrGenerationFailed, err)
	}

	if strings.TrimSpace(apiResponse.Text) == "" {
		metrics.LLMRequests.WithLabelValues(operation, "error").Inc()
		return nil, fmt.Errorf("%w: empty response text", ErrGenerationFailed)
	}

	metrics.LLMRequests.WithLabelValues(operation, "success").Inc()
	if apiResponse.TokensUsed > 0 {
		metrics.LLMTokensUsed.WithLabelValues(operation).Add(float64(apiResponse.TokensUsed))
	}

	return &apiResponse, nil
}

// ExtractJSON strips markdown code fences from model output. Models asked
// for raw JSON still wrap it in ```json blocks often enough that every
// structured-output caller runs responses through this first.
func ExtractJSON(text string) string {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	return trimmed
}
