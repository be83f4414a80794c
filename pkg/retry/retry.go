// Package retry runs operations with exponential backoff. Only errors the
// errors package classifies as retryable (timeouts and connection failures)
// are retried; anything else is returned at once.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ajitpratap0/resbridge/pkg/errors"
)

// Policy defines retry behavior
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64
}

// Default returns three attempts starting at 200ms.
func Default() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.25,
	}
}

// None returns a policy that runs the operation once.
func None() Policy {
	return Policy{MaxAttempts: 1}
}

// WithMaxAttempts returns a copy with the attempt count replaced.
func (p Policy) WithMaxAttempts(n int) Policy {
	p.MaxAttempts = n
	return p
}

// Do runs fn until it succeeds, fails with a non-retryable error, runs out of
// attempts, or ctx ends.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !errors.IsRetryable(err) || attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, fmt.Sprintf("retry cancelled after %d attempts", attempt+1))
		case <-timer.C:
		}
	}
	return lastErr
}

// Delay returns the wait after the given zero-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(multiplier, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.Jitter > 0 {
		delta := delay * p.Jitter
		delay = delay - delta + rand.Float64()*2*delta
	}
	return time.Duration(delay)
}
