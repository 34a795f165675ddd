package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	EngineWhisper = "whisper"

	// DefaultWhisperWait bounds how long one document may take remotely.
	DefaultWhisperWait = 200 * time.Second
)

var errWhisperTimeout = errors.New("whisper: wait bound exceeded")

// WhisperClient extracts text with the hosted LLMWhisperer service: submit
// the bytes, poll the job status, then retrieve the layout-preserved text.
type WhisperClient struct {
	BaseURL      string
	APIKey       string
	Wait         time.Duration
	PollInterval time.Duration
	HTTPClient   *http.Client
}

// NewWhisperClient creates a client with the default wait bound.
func NewWhisperClient(baseURL, apiKey string, wait time.Duration) *WhisperClient {
	if wait <= 0 {
		wait = DefaultWhisperWait
	}
	return &WhisperClient{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       apiKey,
		Wait:         wait,
		PollInterval: 3 * time.Second,
		HTTPClient:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Name implements Extractor.
func (c *WhisperClient) Name() string { return EngineWhisper }

type whisperSubmitResponse struct {
	WhisperHash string `json:"whisper_hash"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

type whisperStatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type whisperRetrieveResponse struct {
	ResultText string `json:"result_text"`
}

// Extract implements Extractor.
func (c *WhisperClient) Extract(ctx context.Context, doc Document) Result {
	if c.APIKey == "" {
		return failed(EngineWhisper, ReasonUnavailable, errors.New("LLMWHISPERER_API_KEY not set"))
	}
	if len(doc.Data) == 0 {
		return failed(EngineWhisper, ReasonEmptyText, ErrNoText)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Wait)
	defer cancel()

	hash, err := c.submit(ctx, doc)
	if err != nil {
		return c.fail(err)
	}
	if err := c.awaitProcessed(ctx, hash); err != nil {
		return c.fail(err)
	}
	text, err := c.retrieve(ctx, hash)
	if err != nil {
		return c.fail(err)
	}
	return succeeded(EngineWhisper, text, nil, 0)
}

func (c *WhisperClient) fail(err error) Result {
	if errors.Is(err, errWhisperTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return failed(EngineWhisper, ReasonTimeout, err)
	}
	return failed(EngineWhisper, ReasonEngineError, err)
}

func (c *WhisperClient) submit(ctx context.Context, doc Document) (string, error) {
	q := url.Values{}
	q.Set("mode", "form")
	q.Set("output_mode", "layout_preserving")
	if doc.Name != "" {
		q.Set("file_name", doc.Name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/whisper?"+q.Encode(), bytes.NewReader(doc.Data))
	if err != nil {
		return "", fmt.Errorf("whisper.submit: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	var out whisperSubmitResponse
	if err := c.do(req, &out, http.StatusOK, http.StatusAccepted); err != nil {
		return "", fmt.Errorf("whisper.submit: %w", err)
	}
	if out.WhisperHash == "" {
		return "", fmt.Errorf("whisper.submit: no whisper_hash in response (%s)", out.Message)
	}
	return out.WhisperHash, nil
}

func (c *WhisperClient) awaitProcessed(ctx context.Context, hash string) error {
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/whisper-status?whisper_hash="+url.QueryEscape(hash), nil)
		if err != nil {
			return fmt.Errorf("whisper.status: build request: %w", err)
		}
		var st whisperStatusResponse
		if err := c.do(req, &st, http.StatusOK); err != nil {
			return fmt.Errorf("whisper.status: %w", err)
		}

		switch st.Status {
		case "processed":
			return nil
		case "error", "failed":
			return fmt.Errorf("whisper.status: job failed: %s", st.Message)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return errWhisperTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *WhisperClient) retrieve(ctx context.Context, hash string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/whisper-retrieve?whisper_hash="+url.QueryEscape(hash), nil)
	if err != nil {
		return "", fmt.Errorf("whisper.retrieve: build request: %w", err)
	}
	var out whisperRetrieveResponse
	if err := c.do(req, &out, http.StatusOK); err != nil {
		return "", fmt.Errorf("whisper.retrieve: %w", err)
	}
	return out.ResultText, nil
}

func (c *WhisperClient) do(req *http.Request, out interface{}, okStatus ...int) error {
	req.Header.Set("unstract-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	accepted := false
	for _, s := range okStatus {
		if resp.StatusCode == s {
			accepted = true
			break
		}
	}
	if !accepted {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncateBody(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncateBody(b []byte) string {
	const n = 300
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
