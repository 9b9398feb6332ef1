// Package retry runs an operation under a bounded exponential-backoff policy.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Class tells Do whether an error may be retried.
type Class int

const (
	Retryable Class = iota
	Fatal
)

// Policy configures Do. The zero value makes a single attempt.
type Policy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // backoff cap
	Jitter      time.Duration // random extra delay in [0, Jitter)

	// Classify decides whether an error is retryable. Context errors are
	// always fatal. Nil retries every other error.
	Classify func(error) Class

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// Once is the fail-fast policy: one attempt, no backoff.
var Once = Policy{MaxAttempts: 1}

// Attempts returns a policy that tries up to n times with defaults for the
// backoff parameters.
func Attempts(n int) Policy {
	return Policy{
		MaxAttempts: n,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      100 * time.Millisecond,
	}
}

// Do calls fn until it succeeds, returns a fatal error, the attempts run out
// or ctx is done. The last error from fn is returned.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	p = p.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if p.classify(err) == Fatal || attempt == p.MaxAttempts {
			return err
		}

		wait := p.backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

func (p Policy) classify(err error) Class {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Fatal
	}
	if p.Classify == nil {
		return Retryable
	}
	return p.Classify(err)
}

// backoff returns the delay after the given (1-based) failed attempt.
func (p Policy) backoff(attempt int) time.Duration {
	wait := p.MaxDelay
	if shift := attempt - 1; shift < 32 {
		if d := p.BaseDelay << shift; d > 0 && d < p.MaxDelay {
			wait = d
		}
	}
	if p.Jitter > 0 {
		wait += rand.N(p.Jitter)
	}
	return wait
}
