package groq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/heetsz/Parakh.ai/internal/reliability"
)

// ErrRateLimited marks a provider response that indicates capacity or
// quota exhaustion. Callers must not retry the same credential.
var ErrRateLimited = errors.New("groq: rate limited")

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("groq: api key not configured")

const defaultBaseURL = "https://api.groq.com"

// Client is a minimal Groq REST client covering the OpenAI-compatible
// chat, transcription and speech endpoints.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  &http.Client{Timeout: timeout},
	}
}

// Configured reports whether the client has a usable credential.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Key returns the credential backing this client. Used to distinguish
// pool entries; never logged.
func (c *Client) Key() string {
	if c == nil {
		return ""
	}
	return c.apiKey
}

func (c *Client) do(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		if reliability.IsRateLimitHTTPStatus(res.StatusCode) || reliability.IsRateLimitMessage(string(detail)) {
			return nil, fmt.Errorf("groq status %d: %s: %w", res.StatusCode, string(detail), ErrRateLimited)
		}
		return nil, fmt.Errorf("groq status %d: %s", res.StatusCode, string(detail))
	}

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return payload, nil
}
