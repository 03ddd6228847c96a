package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fast(attempts int) *Backoff {
	return &Backoff{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   1.5,
		MaxAttempts:  attempts,
	}
}

func TestBackoff_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := fast(10).Do(context.Background(), func(attempt int) error {
		calls++
		if attempt < 3 {
			return fmt.Errorf("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestBackoff_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := fast(10).Do(context.Background(), func(int) error {
		calls++
		return Permanent(fmt.Errorf("bad certificate"))
	})
	if err == nil || err.Error() != "bad certificate" {
		t.Fatalf("err = %v, want bad certificate", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBackoff_Exhausted(t *testing.T) {
	cause := errors.New("always fails")
	calls := 0
	err := fast(3).Do(context.Background(), func(int) error {
		calls++
		return cause
	})
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("err = %v, want ErrExhausted", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("err = %v, want it to wrap the last failure", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestBackoff_SingleAttemptReturnsCause(t *testing.T) {
	cause := errors.New("refused")
	err := fast(1).Do(context.Background(), func(int) error { return cause })
	if err != cause {
		t.Errorf("err = %v, want the bare cause", err)
	}
}

func TestBackoff_ContextCancelled(t *testing.T) {
	b := &Backoff{InitialDelay: 5 * time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := b.Do(ctx, func(int) error { return fmt.Errorf("fail") })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestBackoff_OnRetry(t *testing.T) {
	b := fast(3)
	var seen []int
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		if wait <= 0 {
			t.Errorf("attempt %d: wait = %v", attempt, wait)
		}
		seen = append(seen, attempt)
	}
	b.Do(context.Background(), func(int) error { return fmt.Errorf("x") }) //nolint:errcheck

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", seen)
	}
}

func TestAttempts(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{-1, 1},
		{0, 1},
		{3, 4},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			b := Attempts(tt.n, 10*time.Millisecond)
			if b.MaxAttempts != tt.want {
				t.Errorf("MaxAttempts = %d, want %d", b.MaxAttempts, tt.want)
			}
			if b.InitialDelay != 10*time.Millisecond {
				t.Errorf("InitialDelay = %v", b.InitialDelay)
			}
		})
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"permanent", Permanent(fmt.Errorf("x")), true},
		{"wrapped permanent", fmt.Errorf("dial: %w", Permanent(fmt.Errorf("x"))), true},
		{"plain", fmt.Errorf("x"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestJitter_Range(t *testing.T) {
	d := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		j := addJitter(d)
		if j < 74*time.Millisecond || j > 126*time.Millisecond {
			t.Fatalf("jitter %v out of range", j)
		}
	}
}
