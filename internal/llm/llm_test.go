package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/quarterly-extractor/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Completer = (*GroqCompleter)(nil)
	_ Completer = (*GeminiCompleter)(nil)
	_ Completer = (*Guarded)(nil)
	_ Completer = CompleterFunc(nil)
)

func TestGroqCompleter(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "llama-3.3-70b-versatile",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"Revenue\": \"Rs. 100 cr\"}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	c := NewGroqCompleter("gsk-test", srv.URL, "llama-3.3-70b-versatile")
	out, err := c.Complete(context.Background(), Request{
		System:    "You are a financial data extraction tool.",
		User:      "Extract revenue",
		MaxTokens: 500,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"Revenue": "Rs. 100 cr"}`, out)
	assert.Equal(t, "llama-3.3-70b-versatile", got.Model)
	assert.Equal(t, 500, got.MaxTokens)
	assert.Greater(t, got.Temperature, 0.0)
	assert.Less(t, got.Temperature, 1e-6)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestGroqCompleter_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "object": "chat.completion", "choices": []}`))
	}))
	defer srv.Close()

	_, err := NewGroqCompleter("k", srv.URL, "m").Complete(context.Background(), Request{User: "hi"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGroqCompleter_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
	}))
	defer srv.Close()

	_, err := NewGroqCompleter("k", srv.URL, "m").Complete(context.Background(), Request{User: "hi"})
	assert.Error(t, err)
}

func TestGuarded_OpensBreaker(t *testing.T) {
	var calls int32
	failing := CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errors.New("upstream unavailable")
	})

	m := metrics.New()
	g := NewGuarded(failing, GuardOptions{
		Backend:          "groq",
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
		Metrics:          m,
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := g.Complete(ctx, Request{User: "x"})
		require.Error(t, err)
	}

	_, err := g.Complete(ctx, Request{User: "x"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	// One series for the two errors, one for the rejected call.
	series, err := testutil.GatherAndCount(m.Registry(), "quarterly_extractor_model_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

func TestGuarded_CancelledCallsDoNotTrip(t *testing.T) {
	cancelled := CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		return "", context.Canceled
	})
	g := NewGuarded(cancelled, GuardOptions{Backend: "gemini", FailureThreshold: 1})

	for i := 0; i < 3; i++ {
		_, err := g.Complete(context.Background(), Request{})
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestGuarded_PassesThrough(t *testing.T) {
	echo := CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		return req.User, nil
	})
	g := NewGuarded(echo, GuardOptions{Backend: "groq", RequestsPerMinute: 6000})

	out, err := g.Complete(context.Background(), Request{User: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestGuarded_RateWaitHonoursContext(t *testing.T) {
	echo := CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		return "ok", nil
	})
	// One request per minute: the first call consumes the burst.
	g := NewGuarded(echo, GuardOptions{Backend: "groq", RequestsPerMinute: 1})
	_, err := g.Complete(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.Complete(ctx, Request{})
	assert.Error(t, err)
}
