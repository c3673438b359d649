// Package retry runs an operation with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
)

// Policy controls how failed calls are retried with exponential backoff.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// New returns a Policy with the given attempts and initial delay, a 2x
// multiplier and a 30s cap. Attempts below 1 are treated as 1.
func New(maxAttempts int, initialDelay time.Duration) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Policy{
		MaxAttempts:  maxAttempts,
		InitialDelay: initialDelay,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
	}
}

// temporary is implemented by errors that know whether they are transient,
// such as API errors carrying an HTTP status.
type temporary interface {
	Temporary() bool
}

// ShouldRetry returns true if the error is retryable and the attempt count
// has not reached MaxAttempts.
func (p *Policy) ShouldRetry(err error, attempt int) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	return IsRetryable(err)
}

// IsRetryable classifies errors as retryable or permanent. Errors that
// implement Temporary() decide for themselves; context errors never retry;
// otherwise the message is inspected and unknown errors default to retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var t temporary
	if errors.As(err, &t) {
		return t.Temporary()
	}

	msg := strings.ToLower(err.Error())

	// Transient / retryable errors
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporary failure") {
		return true
	}

	// Permanent / non-retryable errors
	if strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "forbidden") {
		return false
	}

	return true
}

// NextDelay returns the backoff delay for the given attempt number (1-indexed).
// The delay is InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (p *Policy) NextDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Do runs fn up to MaxAttempts times, sleeping between retries. It returns
// nil on success, the last error once attempts are exhausted or the error is
// permanent, or the context error if ctx ends while waiting.
func (p *Policy) Do(ctx context.Context, fn func() error) error {
	if p == nil {
		return fn()
	}
	var lastErr error
	for attempt := 1; attempt <= max(p.MaxAttempts, 1); attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !p.ShouldRetry(err, attempt) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.NextDelay(attempt)):
		}
	}
	return lastErr
}
