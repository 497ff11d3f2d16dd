package circuit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 2, RecoveryTimeout: 50 * time.Millisecond})
	failing := func(context.Context) error { return errors.New("boom") }

	_ = b.Execute(context.Background(), failing, nil)
	if b.State() != StateClosed {
		t.Fatalf("state = %s after 1 failure, want closed", b.State())
	}
	_ = b.Execute(context.Background(), failing, nil)
	if b.State() != StateOpen {
		t.Fatalf("state = %s after 2 failures, want open", b.State())
	}

	err := b.Execute(context.Background(), failing, nil)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	b := New(Config{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond})
	_ = b.Execute(context.Background(), func(context.Context) error { return errors.New("x") }, nil)
	if b.State() != StateOpen {
		t.Fatalf("state = %s, want open", b.State())
	}

	time.Sleep(20 * time.Millisecond)
	err := b.Execute(context.Background(), func(context.Context) error { return nil }, nil)
	if err != nil {
		t.Fatalf("expected half-open probe to succeed, got %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %s after successful probe, want closed", b.State())
	}
}

func TestBreakerFallback(t *testing.T) {
	b := New(Config{FailureThreshold: 1, RecoveryTimeout: time.Hour})
	_ = b.Execute(context.Background(), func(context.Context) error { return errors.New("x") }, nil)

	called := false
	err := b.Execute(context.Background(), func(context.Context) error {
		t.Fatal("fn should not run while circuit is open")
		return nil
	}, func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("expected fallback to run cleanly, err=%v called=%v", err, called)
	}
}

func TestErrorBoundaryRetriesThenFallsBack(t *testing.T) {
	attempts := 0
	eb := NewErrorBoundary("test", nil)
	eb.MaxRetries = 2
	eb.RetryDelay = time.Millisecond
	eb.Fallback = func(ctx context.Context, cause error) (any, error) {
		return "fallback", nil
	}

	result, err := eb.Run(context.Background(), func(ctx context.Context) (any, error) {
		attempts++
		return nil, errors.New("always fails")
	})
	if err != nil {
		t.Fatalf("expected fallback to absorb the error, got %v", err)
	}
	if result != "fallback" {
		t.Fatalf("result = %v, want fallback", result)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3 (1 + 2 retries)", attempts)
	}
}

func TestErrorBoundarySucceedsWithoutRetry(t *testing.T) {
	eb := NewErrorBoundary("test", nil)
	result, err := eb.Run(context.Background(), func(ctx context.Context) (any, error) {
		return 42, nil
	})
	if err != nil || result != 42 {
		t.Fatalf("result=%v err=%v", result, err)
	}
}
