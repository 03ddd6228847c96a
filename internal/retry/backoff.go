// Package retry runs an operation again after transient failures,
// waiting an exponentially growing delay between attempts.
//
// The client uses it to re-dial a server that is not up yet; the server
// uses it to ride out temporary accept failures such as descriptor
// exhaustion.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// PermanentError marks a failure that another attempt cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so that [Backoff.Do] returns it at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was marked with [Permanent].
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ErrExhausted is wrapped by the error Do returns once MaxAttempts
// attempts have failed.
var ErrExhausted = errors.New("retries exhausted")

// Backoff describes how often and how long to retry.
type Backoff struct {
	// InitialDelay is the wait before the second attempt (default 1s).
	InitialDelay time.Duration
	// MaxDelay caps the wait between attempts (default 30s).
	MaxDelay time.Duration
	// Multiplier grows the delay after each failure (default 2).
	Multiplier float64
	// MaxAttempts counts every try including the first.  Zero retries
	// until ctx is done.
	MaxAttempts int
	// Jitter spreads each wait by up to 25% either way.
	Jitter bool

	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultBackoff suits dialing a peer that may still be starting.
func DefaultBackoff() *Backoff {
	return &Backoff{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		MaxAttempts:  5,
		Jitter:       true,
	}
}

// Attempts returns a jittered backoff that tries at most n+1 times, the
// first try plus n retries.  n <= 0 means a single try.
func Attempts(n int, initial time.Duration) *Backoff {
	if n < 0 {
		n = 0
	}
	b := DefaultBackoff()
	b.MaxAttempts = n + 1
	if initial > 0 {
		b.InitialDelay = initial
	}
	return b
}

// Do calls fn until it returns nil or a permanent error, the attempt
// budget runs out, or ctx is done.  attempt is 1-based.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	delay := b.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	multiplier := b.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}
	maxDelay := b.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
			if b.MaxAttempts == 1 {
				return err
			}
			return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
		}

		wait := delay
		if b.Jitter {
			wait = addJitter(delay)
		}
		if b.OnRetry != nil {
			b.OnRetry(attempt, err, wait)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-t.C:
		}

		delay = time.Duration(float64(delay) * multiplier)
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := (rand.Float64() * 2 * quarter) - quarter
	return time.Duration(math.Max(float64(d)+delta, float64(time.Millisecond)))
}
