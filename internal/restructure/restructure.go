// Package restructure asks a language model to reorganize raw extracted
// text into the labelled sections the block converter expects.
package restructure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
	ProviderNone       = "none"
)

// ErrEmptyReply is returned when the model answers with no text.
var ErrEmptyReply = errors.New("restructure: empty reply")

// Restructurer rewrites raw document text into sectioned markdown.
type Restructurer interface {
	Restructure(ctx context.Context, raw string) (string, error)
	Model() string
}

// Settings selects and configures a provider.
type Settings struct {
	Provider string

	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string

	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string

	Timeout time.Duration
}

// New builds the configured provider. It returns nil without error when
// restructuring is disabled.
func New(s Settings) (Restructurer, error) {
	if s.Timeout <= 0 {
		s.Timeout = 120 * time.Second
	}
	switch strings.ToLower(s.Provider) {
	case "", ProviderNone:
		return nil, nil
	case ProviderOpenRouter:
		if s.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("openrouter: api key is required")
		}
		return NewOpenRouter(s.OpenRouterAPIKey, s.OpenRouterModel, s.OpenRouterBaseURL, s.Timeout), nil
	case ProviderAnthropic:
		if s.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic: api key is required")
		}
		return NewAnthropic(s.AnthropicAPIKey, s.AnthropicModel, s.AnthropicBaseURL, s.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown restructure provider %q", s.Provider)
	}
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// classify turns a provider status code into a RetryableError for rate
// limits and server faults.
func classify(provider string, status int, err error) error {
	if status == 429 || status >= 500 {
		return &RetryableError{StatusCode: status, Message: err.Error()}
	}
	return fmt.Errorf("%s: %w", provider, err)
}

// finish cleans a model reply.
func finish(reply string) (string, error) {
	text := unwrapFence(reply)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
