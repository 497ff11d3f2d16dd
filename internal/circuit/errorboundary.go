package circuit

import (
	"context"
	"log/slog"
	"time"
)

// IsolationLevel hints at how aggressively a boundary should contain a
// failure; it is informational, surfaced to OnError, and otherwise left to
// the caller to interpret.
type IsolationLevel string

const (
	IsolationNone      IsolationLevel = "none"
	IsolationComponent IsolationLevel = "component"
	IsolationProcess   IsolationLevel = "process"
)

// ErrorBoundary wraps a generic async operation with retry and fallback
// semantics identical in spirit to a workflow step's retry loop, for use
// outside the engine (e.g. guarding a planner or session-store call).
type ErrorBoundary struct {
	Name           string
	MaxRetries     int
	RetryDelay     time.Duration
	IsolationLevel IsolationLevel
	Fallback       func(ctx context.Context, cause error) (any, error)
	OnError        func(ctx context.Context, attempt int, err error)

	logger *slog.Logger
}

// NewErrorBoundary constructs a boundary with the given name and logger
// (slog.Default() if nil).
func NewErrorBoundary(name string, logger *slog.Logger) *ErrorBoundary {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorBoundary{
		Name:           name,
		MaxRetries:     0,
		RetryDelay:     time.Second,
		IsolationLevel: IsolationComponent,
		logger:         logger,
	}
}

// Run executes fn, retrying up to MaxRetries times with RetryDelay between
// attempts. If every attempt fails and Fallback is set, Fallback's result
// is returned instead of the final error.
func (b *ErrorBoundary) Run(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	var lastErr error

	for attempt := 0; attempt <= b.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if b.OnError != nil {
			b.OnError(ctx, attempt, err)
		}
		b.logger.Warn("errorboundary: attempt failed",
			"boundary", b.Name, "attempt", attempt, "isolation", b.IsolationLevel, "error", err)

		if attempt < b.MaxRetries {
			select {
			case <-time.After(b.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	if b.Fallback != nil {
		return b.Fallback(ctx, lastErr)
	}
	return nil, lastErr
}
