package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zhouzirui/debate-arena/backend/internal/config"
)

func newTestClient(baseURL string) *Client {
	c := NewClient(config.ProviderConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})
	// Keep retry tests fast.
	c.backoffBase = time.Millisecond
	return c
}

func completionBody(content string, tokens int) string {
	raw, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
		"usage": map[string]any{"total_tokens": tokens},
	})
	return string(raw)
}

func TestCompleteSuccess(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		w.Write([]byte(completionBody("hello there", 42)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	got, err := c.Complete(context.Background(), "vendor/model-a", "be terse", []ChatMessage{
		{Role: "user", Content: "hi"},
	})
	if err != nil {
		t.Fatalf("Complete err: %v", err)
	}
	if got.Text != "hello there" || got.Tokens != 42 {
		t.Fatalf("unexpected completion: %+v", got)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotBody.Model != "vendor/model-a" {
		t.Fatalf("unexpected model: %q", gotBody.Model)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" || gotBody.Messages[0].Content != "be terse" {
		t.Fatalf("system instruction not sent as leading message: %+v", gotBody.Messages)
	}
}

func TestSetCredentialAppliesToLaterRequests(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(completionBody("ok", 1)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.Complete(context.Background(), "m", "", []ChatMessage{{Role: "user", Content: "hi"}}); err != nil {
		t.Fatalf("Complete err: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected initial auth header: %q", gotAuth)
	}

	c.SetCredential("rotated-key")
	if _, err := c.Complete(context.Background(), "m", "", []ChatMessage{{Role: "user", Content: "hi"}}); err != nil {
		t.Fatalf("Complete err after rebind: %v", err)
	}
	if gotAuth != "Bearer rotated-key" {
		t.Fatalf("rebound credential not sent, got %q", gotAuth)
	}
}

func TestCompleteRetriesRateLimitThenSucceeds(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"slow down"}}`))
			return
		}
		w.Write([]byte(completionBody("finally", 7)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	got, err := c.Complete(context.Background(), "m", "", []ChatMessage{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete err after retries: %v", err)
	}
	if got.Text != "finally" {
		t.Fatalf("unexpected completion: %+v", got)
	}
	if calls != 4 {
		t.Fatalf("expected 4 attempts (1 + 3 retries), got %d", calls)
	}
}

func TestCompleteRateLimitExhausted(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"still too fast"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Complete(context.Background(), "m", "", []ChatMessage{{Role: "user", Content: "hi"}})

	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rle.Detail != "still too fast" {
		t.Fatalf("provider detail lost: %q", rle.Detail)
	}
	if calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}
}

func TestCompleteAuthFailureNoRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Complete(context.Background(), "m", "", []ChatMessage{{Role: "user", Content: "hi"}})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Detail != "invalid api key" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if calls != 1 {
		t.Fatalf("auth failures must not be retried, got %d attempts", calls)
	}
}

func TestCompleteEmptyResponse(t *testing.T) {
	cases := map[string]string{
		"no choices":         `{"choices":[],"usage":{"total_tokens":3}}`,
		"whitespace content": completionBody("   ", 3),
	}

	for name, body := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))

		c := newTestClient(srv.URL)
		_, err := c.Complete(context.Background(), "m", "", []ChatMessage{{Role: "user", Content: "hi"}})
		if !errors.Is(err, ErrEmptyResponse) {
			t.Fatalf("%s: expected ErrEmptyResponse, got %v", name, err)
		}
		srv.Close()
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/models" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"data":[{"id":"vendor/model-a","name":"Model A","context_length":8192,"pricing":{"prompt":"0.000001","completion":"0.000002"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels err: %v", err)
	}
	if len(models) != 1 {
		t.Fatalf("expected 1 model, got %d", len(models))
	}
	m := models[0]
	if m.ID != "vendor/model-a" || m.ContextLength != 8192 || m.Pricing.Prompt != "0.000001" {
		t.Fatalf("unexpected model: %+v", m)
	}
}
