// Package retry retries transient RPC failures with exponential backoff.
//
// Only transport adapters retry. Services surface the first error they see.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
)

// Config holds configuration for retry behavior.
type Config struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration

	// BackoffFactor multiplies the backoff after each retry. Default 2.
	BackoffFactor float64

	// Jitter adds up to one extra backoff of random delay.
	Jitter bool
}

// DefaultConfig returns the transport default: three retries from 50ms to 1s.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     time.Second,
		BackoffFactor:  2.0,
		Jitter:         true,
	}
}

func (c Config) withDefaults() Config {
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = 2.0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 50 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Second
	}
	return c
}

// IsRetryableFunc determines if an error should trigger a retry.
type IsRetryableFunc func(error) bool

// OnRetryFunc is called before each retry. attempt starts at 1.
type OnRetryFunc func(attempt int, err error, backoff time.Duration)

// Do calls fn until it succeeds, returns a non-retryable error, or the
// retries are used up.
func Do[T any](
	ctx context.Context,
	cfg Config,
	isRetryable IsRetryableFunc,
	onRetry OnRetryFunc,
	fn func() (T, error),
) (T, error) {
	cfg = cfg.withDefaults()
	backoff := cfg.InitialBackoff

	result, err := fn()
	for attempt := 1; err != nil && attempt <= cfg.MaxRetries; attempt++ {
		if !isRetryable(err) {
			return result, err
		}

		wait := backoff
		if cfg.Jitter {
			wait += time.Duration(rand.Int63n(int64(backoff)))
		}
		if onRetry != nil {
			onRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, fmt.Errorf("context cancelled while retrying: %w", ctx.Err())
		case <-timer.C:
		}

		backoff = min(time.Duration(float64(backoff)*cfg.BackoffFactor), cfg.MaxBackoff)
		result, err = fn()
	}

	if err != nil && cfg.MaxRetries > 0 && isRetryable(err) {
		var zero T
		return zero, fmt.Errorf("operation failed after %d retries: %w", cfg.MaxRetries, err)
	}
	return result, err
}

// IsTransientRPCError reports whether an RPC failure is worth retrying:
// timeouts, connection errors, rate limiting and 5xx responses. Reverts and
// malformed requests are not.
func IsTransientRPCError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		// -32005 is the de-facto "limit exceeded" code.
		return rpcErr.ErrorCode() == -32005
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "eof")
}
