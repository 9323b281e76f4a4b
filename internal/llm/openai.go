package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

// openAIClient implements Client against an OpenAI-compatible chat endpoint.
type openAIClient struct {
	httpClient  *http.Client
	rateLimiter *rateLimiter
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

const systemPrompt = "You are a personal-finance transaction classifier. You MUST respond with ONLY a valid JSON array. Do not include any explanatory text, markdown formatting, or commentary before or after the JSON. Start your response directly with [ and end with ]."

// newOpenAIClient creates a client for an OpenAI-compatible chat endpoint.
func newOpenAIClient(cfg Config) (Client, error) {
	if !cfg.Configured() {
		return nil, common.ErrModelUnconfigured
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.2
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &openAIClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     timeout,
		rateLimiter: newRateLimiter(cfg.RateLimit),
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// PickLedgers sends a book-selection prompt and parses the JSON array reply.
func (c *openAIClient) PickLedgers(ctx context.Context, prompt string) ([]LedgerPick, error) {
	content, err := c.chat(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseLedgerPicks(content)
}

// PickCategories sends a category-selection prompt and parses the reply.
func (c *openAIClient) PickCategories(ctx context.Context, prompt string) ([]CategoryPick, error) {
	content, err := c.chat(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseCategoryPicks(content)
}

// SimplifyMemos sends a memo-rewrite prompt and parses the reply.
func (c *openAIClient) SimplifyMemos(ctx context.Context, prompt string) ([]MemoRewrite, error) {
	content, err := c.chat(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseMemoRewrites(content)
}

// chat performs a chat-completion round trip, retrying transient server
// errors with backoff. Classified failures (timeout, unreachable, rate
// limit) surface immediately.
func (c *openAIClient) chat(ctx context.Context, prompt string) (string, error) {
	if err := c.rateLimiter.wait(ctx); err != nil {
		return "", err
	}

	var content string
	err := common.WithRetry(ctx, func() error {
		var err error
		content, err = c.complete(ctx, prompt)
		return err
	}, service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	})
	return content, err
}

// complete is a single chat-completion attempt under the per-call timeout.
func (c *openAIClient) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	requestBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", strings.NewReader(string(jsonBody)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &common.RetryableError{Err: classifyTransportError(err), Retryable: false}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &common.RetryableError{Err: common.ErrRateLimit, Retryable: false}
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", fmt.Errorf("model API error (status %d): %s", resp.StatusCode, string(body))
	case resp.StatusCode != http.StatusOK:
		return "", &common.RetryableError{
			Err:       fmt.Errorf("model API error (status %d): %s", resp.StatusCode, string(body)),
			Retryable: false,
		}
	}

	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", &common.RetryableError{Err: fmt.Errorf("%w: %v", common.ErrModelBadResponse, err), Retryable: false}
	}
	if len(response.Choices) == 0 {
		return "", &common.RetryableError{Err: fmt.Errorf("%w: no completion choices returned", common.ErrModelBadResponse), Retryable: false}
	}

	return response.Choices[0].Message.Content, nil
}

// classifyTransportError maps network failures onto the two user-facing
// messages the pipeline distinguishes: timed out vs unreachable.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return common.NewUserError("model request timed out, check your network connection", common.ErrModelTimeout)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return common.NewUserError("model request timed out, check your network connection", common.ErrModelTimeout)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return common.NewUserError("model service unreachable", common.ErrModelUnreachable)
	}

	return fmt.Errorf("model request failed: %w", err)
}

// chatResponse is the OpenAI-compatible chat completion envelope.
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
		Index        int    `json:"index"`
	} `json:"choices"`
}
