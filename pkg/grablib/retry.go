package grablib

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"strings"
	"time"
)

// Default retry configuration values.
const (
	DefMaxAttempts = 3
	DefBaseDelay   = time.Second
	DefMaxDelay    = 60 * time.Second
)

// RetryPolicy retries transient failures with exponential backoff. The
// delay before attempt k (1-based) is min(2^k * BaseDelay * jitter,
// MaxDelay) with jitter drawn uniformly from [0.8, 1.2].
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns a policy with 3 attempts, 1s base delay and a
// 60s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefMaxAttempts,
		BaseDelay:   DefBaseDelay,
		MaxDelay:    DefMaxDelay,
	}
}

// Backoff computes the delay before attempt k (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	exp := time.Duration(int64(1)<<uint(attempt)) * p.BaseDelay
	jitter := 0.8 + rand.Float64()*0.4
	delay := time.Duration(float64(exp) * jitter)
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Run invokes op until it succeeds, fails terminally, exhausts the attempt
// budget, or the context is cancelled. The returned error is the last one
// observed.
func (p RetryPolicy) Run(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt >= p.MaxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff(attempt)):
		}
	}
}

// IsRetryable classifies an error as transient. Context cancellation and
// the terminal HTTP errors are never retried; timeouts, dropped
// connections and unexpected status codes are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
		return false
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection reset",
		"connection refused",
		"broken pipe",
		"timeout",
		"temporary failure",
		"network is unreachable",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
