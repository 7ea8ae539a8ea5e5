// Package retry provides exponential backoff and circuit breaker
// patterns for the orchestration layer.  Nothing below the runner
// retries: wire calls report every failure to their caller.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ── Permanent errors ─────────────────────────────────────────────────

// PermanentError wraps an error to signal that retrying will not help.
// Return [Permanent](err) from the operation function to stop retrying
// immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.  The backoff loop will return
// the inner error immediately without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ── Backoff ──────────────────────────────────────────────────────────

// jitterFactor is the ±randomisation applied when Jitter is set.
const jitterFactor = 0.25

// Backoff implements exponential backoff with optional jitter.
type Backoff struct {
	// InitialDelay is the delay before the first retry (default 1s).
	InitialDelay time.Duration
	// MaxDelay caps the backoff duration (default 60s).
	MaxDelay time.Duration
	// Multiplier increases the delay each attempt (default 2.0).
	Multiplier float64
	// MaxAttempts is the total number of tries including the first.
	// Set to 0 for unlimited retries (until context cancelled).
	// Default: 10.
	MaxAttempts int
	// Jitter adds ±25% randomisation to prevent thundering herd.
	Jitter bool
	// OnRetry, if set, is told about each failed attempt that will be
	// retried and how long the loop will wait first.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultBackoff returns a reasonable default configuration.
func DefaultBackoff() *Backoff {
	return &Backoff{
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  10,
		Jitter:       true,
	}
}

// exponential builds the schedule, filling in defaults for zero fields.
func (b *Backoff) exponential() *backoff.ExponentialBackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.InitialDelay
	if eb.InitialInterval <= 0 {
		eb.InitialInterval = time.Second
	}
	eb.MaxInterval = b.MaxDelay
	if eb.MaxInterval <= 0 {
		eb.MaxInterval = 60 * time.Second
	}
	eb.Multiplier = b.Multiplier
	if eb.Multiplier <= 0 {
		eb.Multiplier = 2.0
	}
	eb.RandomizationFactor = 0
	if b.Jitter {
		eb.RandomizationFactor = jitterFactor
	}
	eb.MaxElapsedTime = 0
	eb.Reset()
	return eb
}

// Do executes fn repeatedly until it succeeds, returns a permanent
// error, or the retry budget (attempts / context) is exhausted.
//
// The attempt parameter passed to fn is 1-based.  On success fn should
// return nil.  To abort retrying, wrap the error with [Permanent].
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	var policy backoff.BackOff = b.exponential()
	if b.MaxAttempts > 0 {
		policy = backoff.WithMaxRetries(policy, uint64(b.MaxAttempts-1))
	}
	policy = backoff.WithContext(policy, ctx)

	attempt := 0
	var permanent error
	op := func() error {
		attempt++
		err := fn(attempt)
		if IsPermanent(err) {
			permanent = errors.Unwrap(err)
			return backoff.Permanent(permanent)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		if b.OnRetry != nil {
			b.OnRetry(attempt, err, wait)
		}
	}

	err := backoff.RetryNotify(op, policy, notify)
	switch {
	case err == nil:
		return nil
	case permanent != nil:
		return permanent
	case ctx.Err() != nil:
		return fmt.Errorf("retry cancelled: %w", ctx.Err())
	default:
		return fmt.Errorf("max retries (%d) exceeded: %w", b.MaxAttempts, err)
	}
}
