package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// defaultClientTimeout caps how long a hook will wait on the server. Hooks
// run in the caller's critical path, so this stays short: the server answers
// enqueue requests in milliseconds when healthy.
const defaultClientTimeout = 5 * time.Second

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithTimeout overrides the default 5 s request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client, primarily for tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client submits speech requests to a running yomiage server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the server at baseURL
// (e.g. "http://127.0.0.1:8765").
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// speakRequest mirrors the server's ingress body.
type speakRequest struct {
	Text        string `json:"text"`
	ReturnAudio bool   `json:"return_audio"`
}

// Speak submits text for translation and speech. A 202 (queued) and a 200
// (deduplicated, already spoken) both count as success; anything else comes
// back as an error carrying the response body for diagnosis.
func (c *Client) Speak(ctx context.Context, text string) error {
	body, err := json.Marshal(speakRequest{Text: text})
	if err != nil {
		return fmt.Errorf("hook: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/translate_and_speak", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("hook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hook: call server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("hook: server returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
