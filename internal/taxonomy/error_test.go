package taxonomy

import (
	"errors"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	e := New(CategoryNetwork, "connection reset")
	if e.Category != CategoryNetwork {
		t.Fatalf("category = %s", e.Category)
	}
	if !e.Retryable {
		t.Fatal("network errors should default retryable")
	}
	if e.MaxRetries == 0 {
		t.Fatal("expected nonzero default max retries")
	}
	if e.UserMessage == "" {
		t.Fatal("expected a user-facing message")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	native := errors.New("boom")
	e := Wrap(native, CategoryDOM)
	if !errors.Is(e, native) {
		t.Fatal("expected Unwrap chain to reach native error")
	}
	if e.Category != CategoryDOM {
		t.Fatalf("category = %s", e.Category)
	}
}

func TestWrapIdempotent(t *testing.T) {
	e := New(CategoryStorage, "disk full")
	wrapped := Wrap(e, CategoryNetwork)
	if wrapped != e {
		t.Fatal("wrapping an *Error should return it unchanged")
	}
}

func TestShouldRetryAndWithRetry(t *testing.T) {
	e := New(CategoryTimeout, "slow")
	e.MaxRetries = 2
	if !e.ShouldRetry() {
		t.Fatal("expected retry to be allowed initially")
	}
	next := e.WithRetry(map[string]any{"attempt": 1})
	if next.RetryCount != 1 {
		t.Fatalf("retryCount = %d", next.RetryCount)
	}
	if e.RetryCount != 0 {
		t.Fatal("WithRetry must not mutate the receiver")
	}
	next2 := next.WithRetry(nil)
	if next2.RetryCount != 2 {
		t.Fatalf("retryCount = %d", next2.RetryCount)
	}
	if next2.ShouldRetry() {
		t.Fatal("expected retries exhausted at MaxRetries")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	e := New(CategoryValidation, "bad input")
	e.WithCode("E_BAD_INPUT").WithContext(map[string]any{"field": "name"})
	e.cause = errors.New("native cause")

	data, err := e.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := FromSerialized(data)
	if err != nil {
		t.Fatalf("fromSerialized: %v", err)
	}
	if got.Message != e.Message || got.Code != e.Code || got.Category != e.Category ||
		got.Severity != e.Severity || got.RecoveryStrategy != e.RecoveryStrategy ||
		got.RetryCount != e.RetryCount || got.MaxRetries != e.MaxRetries ||
		got.Retryable != e.Retryable || got.UserMessage != e.UserMessage {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, e)
	}
	if got.Context["field"] != "name" {
		t.Fatalf("context not preserved: %+v", got.Context)
	}
	if got.Cause() == nil || got.Cause().Error() != "native cause" {
		t.Fatalf("cause not preserved: %v", got.Cause())
	}
}
