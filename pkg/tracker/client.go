package tracker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// Client posts submissions to the ingest endpoint.
type Client struct {
	http      *http.Client
	endpoint  string
	userAgent string
}

// NewClient creates a client for endpoint (e.g. https://example.com/api/track).
// userAgent is sent on every request when non-empty.
func NewClient(endpoint, userAgent string, timeout time.Duration) *Client {
	return &Client{
		http:      &http.Client{Timeout: timeout},
		endpoint:  endpoint,
		userAgent: userAgent,
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Send delivers one submission. Any non-200 answer is an error.
func (c *Client) Send(ctx context.Context, sub Submission) error {
	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s: %w", sub.Type, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e errorBody
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("ingest rejected %s: status %d: %s", sub.Type, resp.StatusCode, e.Error)
	}
	return fmt.Errorf("ingest rejected %s: status %d", sub.Type, resp.StatusCode)
}
