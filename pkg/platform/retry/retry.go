// Package retry provides a reusable retry-with-backoff policy, independent
// of the HTTP layer that triggers it.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes how an operation is retried: total attempts, the base
// delay, and the multiplier applied before each wait. With the defaults
// (3 attempts, 1s base, factor 2) the waits between attempts are 2s and 4s.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
}

// Default matches the transfer retry contract: three attempts with
// exponential backoff.
func Default() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second, Factor: 2}
}

// Result captures how a run ended, for logging and metrics.
type Result struct {
	Attempts int
}

// Do runs op until it succeeds, attempts are exhausted, or the context is
// cancelled. The last error is wrapped with the attempt count on exhaustion.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) (Result, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	factor := p.Factor
	if factor <= 0 {
		factor = 2
	}

	delay := p.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := op(ctx); err == nil {
			return Result{Attempts: attempt}, nil
		} else {
			lastErr = err
		}

		if attempt == attempts {
			break
		}

		delay = time.Duration(float64(delay) * factor)
		select {
		case <-ctx.Done():
			return Result{Attempts: attempt}, fmt.Errorf("retry cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(delay):
		}
	}

	return Result{Attempts: attempts}, fmt.Errorf("operation failed after %d attempts: %w", attempts, lastErr)
}
