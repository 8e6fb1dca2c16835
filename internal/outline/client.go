// ABOUTME: Minimal client for Outline's RPC-style REST API (POST /<resource>.<action>)
// ABOUTME: The API key is taken from the request context, never from the client itself

package outline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/2389/outline-mcp-gateway/internal/credential"
)

// DefaultAPIURL is the hosted Outline API.
const DefaultAPIURL = "https://app.getoutline.com/api"

// DefaultTimeout bounds a single outbound call.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a failing response is read into an APIError.
const maxErrorBody = 4096

// APIError is a non-2xx response from Outline.
type APIError struct {
	Status  int
	Code    string // Outline's "error" field, e.g. "not_found"
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("outline API error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("outline API error %d: %s", e.Status, e.Message)
}

// Client calls Outline on behalf of whichever credential the context carries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for baseURL. An empty baseURL means DefaultAPIURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				ForceAttemptHTTP2:   true,
			},
		},
		logger: logger.With("component", "outline"),
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope is Outline's standard response wrapper.
type envelope struct {
	Data       json.RawMessage `json:"data"`
	Pagination json.RawMessage `json:"pagination,omitempty"`
	Error      string          `json:"error,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// Call POSTs body to endpoint (e.g. "documents.info") and decodes the
// response into out, unwrapping the data field when present. out may be nil.
// Returns credential.ErrMissing when ctx carries no credential.
func (c *Client) Call(ctx context.Context, endpoint string, body any, out any) error {
	apiKey, err := credential.Require(ctx)
	if err != nil {
		return err
	}

	if body == nil {
		body = struct{}{}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", endpoint, err)
	}

	url := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
	}()

	c.logger.Debug("outline call",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"credential", credential.Fingerprint(apiKey),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	// Most endpoints wrap their payload in "data"; a few (answerQuestion)
	// return it at the top level.
	if len(env.Data) > 0 && string(env.Data) != "null" {
		raw = env.Data
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s data: %w", endpoint, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && (env.Error != "" || env.Message != "") {
		apiErr.Code = env.Error
		apiErr.Message = env.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
