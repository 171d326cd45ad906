package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/debate-arena/backend/internal/config"
)

const (
	// maxRateLimitRetries bounds the additional attempts made after a
	// rate-limited request. Other failures are never retried.
	maxRateLimitRetries = 3
	defaultBackoffBase  = 2 * time.Second
)

// ErrEmptyResponse reports a syntactically valid provider response that
// carried no usable completion text.
var ErrEmptyResponse = errors.New("empty response from model")

// ChatMessage is one role-tagged block of the request payload.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the outcome of one successful request.
type Completion struct {
	Text   string
	Tokens int
}

// APIError is any non-success provider response outside the rate-limit
// path. It carries the HTTP status and whatever detail the provider sent.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Detail)
}

// RateLimitError reports that every retry of a rate-limited request was
// itself rate limited.
type RateLimitError struct {
	Detail string
}

func (e *RateLimitError) Error() string {
	if e.Detail == "" {
		return "provider rate limit exceeded"
	}
	return "provider rate limit exceeded: " + e.Detail
}

// Client issues chat-completion and catalog requests against an
// OpenAI-compatible provider.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	temperature *float64
	backoffBase time.Duration

	credMu sync.RWMutex
	apiKey string
}

// NewClient builds a client from the provider configuration. The credential
// may be replaced at runtime via SetCredential; in-flight requests keep the
// key they started with.
func NewClient(cfg config.ProviderConfig) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		backoffBase: defaultBackoffBase,
	}
}

// SetCredential rebinds the client to the given API key. Every subsequent
// request carries the new credential.
func (c *Client) SetCredential(apiKey string) {
	c.credMu.Lock()
	c.apiKey = apiKey
	c.credMu.Unlock()
}

func (c *Client) credential() string {
	c.credMu.RLock()
	defer c.credMu.RUnlock()
	return c.apiKey
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends one chat-completion request for the given model. A system
// instruction, when present, becomes the leading "system" message. Requests
// rejected with 429 are retried up to maxRateLimitRetries times with
// exponential backoff starting at the client's backoff base; any other
// failure surfaces immediately.
func (c *Client) Complete(ctx context.Context, model string, system string, messages []ChatMessage) (Completion, error) {
	payload := chatRequest{
		Model:       model,
		Temperature: c.temperature,
	}
	if system != "" {
		payload.Messages = append(payload.Messages, ChatMessage{Role: "system", Content: system})
	}
	payload.Messages = append(payload.Messages, messages...)

	body, err := json.Marshal(payload)
	if err != nil {
		return Completion{}, fmt.Errorf("encoding completion request: %w", err)
	}

	for attempt := 0; ; attempt++ {
		completion, retryDetail, err := c.doComplete(ctx, body)
		if err == nil {
			return completion, nil
		}

		var rle *RateLimitError
		if !errors.As(err, &rle) {
			return Completion{}, err
		}
		if attempt >= maxRateLimitRetries {
			return Completion{}, &RateLimitError{Detail: retryDetail}
		}

		delay := c.backoffBase << attempt
		select {
		case <-ctx.Done():
			return Completion{}, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// doComplete performs a single request/response cycle.
func (c *Client) doComplete(ctx context.Context, body []byte) (Completion, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Completion{}, "", fmt.Errorf("building completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := c.credential(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Completion{}, "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, "", fmt.Errorf("reading completion response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		detail := errorDetail(raw)
		return Completion{}, detail, &RateLimitError{Detail: detail}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Completion{}, "", &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(raw)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Completion{}, "", fmt.Errorf("decoding completion response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return Completion{}, "", ErrEmptyResponse
	}

	return Completion{
		Text:   parsed.Choices[0].Message.Content,
		Tokens: parsed.Usage.TotalTokens,
	}, "", nil
}

// errorDetail extracts the provider's error message from a failure body,
// falling back to the trimmed raw body.
func errorDetail(raw []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}

	detail := strings.TrimSpace(string(raw))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	return detail
}
