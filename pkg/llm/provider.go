package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/user/sessionlog/pkg/retry"
)

// Provider defines the interface for interacting with LLM backends.
// Implementations handle protocol-specific details such as request formatting,
// authentication, and response parsing.
type Provider interface {
	// Complete sends a non-streaming chat request and returns the full response.
	Complete(ctx context.Context, messages []Message) (*Response, error)
}

// Config holds common configuration for LLM providers.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	// Timeout bounds a single HTTP request; zero means no limit.
	Timeout time.Duration
	// Retry is applied around each request; nil sends once.
	Retry *retry.Policy
}

// HTTPClient returns the http.Client a provider should use for cfg.
func (c *Config) HTTPClient() *http.Client {
	return &http.Client{Timeout: c.Timeout}
}

// APIError is returned when a backend answers with a non-success status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// Temporary reports whether the status suggests the call may succeed later.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
