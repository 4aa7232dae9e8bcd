// Package notion appends converted blocks to Notion pages.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/docblocks/internal/blocks"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	DefaultVersion = "2022-06-28"
)

// RetryBaseDelay is the first backoff after a 429 without a usable
// Retry-After header. It doubles on every further attempt.
var RetryBaseDelay = 1 * time.Second

// Options configures a Client. Zero fields take the package defaults.
type Options struct {
	Version    string
	Timeout    time.Duration
	MaxRetries int // retries after a 429; a 429 never applies the request
}

// Client talks to the Notion block children endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	version    string
	maxRetries int
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, opts Options) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		version:    opts.Version,
		maxRetries: opts.MaxRetries,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

// APIError is a non-2xx reply from Notion.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("notion: status %d: %s", e.StatusCode, e.Message)
}

// AppendBlocks appends bs, in order, after the existing children of pageID.
func (c *Client) AppendBlocks(ctx context.Context, pageID string, bs []blocks.Block) error {
	body, err := json.Marshal(appendRequest{Children: EncodeBlocks(bs)})
	if err != nil {
		return fmt.Errorf("marshal children: %w", err)
	}
	u := c.baseURL + "/blocks/" + pageID + "/children"

	for attempt := 0; ; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Notion-Version", c.version)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("append children: %w", err)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil
		}

		apiErr := readAPIError(resp)
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= c.maxRetries {
			return apiErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay(resp.Header.Get("Retry-After"), attempt)):
		}
	}
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func readAPIError(resp *http.Response) *APIError {
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(respBody, &body) == nil && body.Message != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(respBody))
	}
	return apiErr
}

func retryDelay(retryAfter string, attempt int) time.Duration {
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
}
