// Package taxonomy implements the structured error taxonomy shared by every
// component of the agent execution core: a closed category set, severity,
// a recovery strategy, and lossless serialization.
package taxonomy

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category is the closed set of error categories. Every Error carries
// exactly one.
type Category string

const (
	CategoryNetwork       Category = "network"
	CategoryPermission    Category = "permission"
	CategoryDOM           Category = "dom"
	CategoryAIAPI         Category = "ai_api"
	CategoryAutomation    Category = "automation"
	CategoryContentScript Category = "content_script"
	CategoryBackground    Category = "background"
	CategoryStorage       Category = "storage"
	CategoryValidation    Category = "validation"
	CategoryTimeout       Category = "timeout"
	CategoryUnknown       Category = "unknown"
)

// Severity ranks how urgently an error needs attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RecoveryStrategy is the engine's suggested reaction to an error.
type RecoveryStrategy string

const (
	RecoveryRetry            RecoveryStrategy = "retry"
	RecoveryFallback         RecoveryStrategy = "fallback"
	RecoverySkip             RecoveryStrategy = "skip"
	RecoveryAbort            RecoveryStrategy = "abort"
	RecoveryUserIntervention RecoveryStrategy = "user_intervention"
)

// userMessages maps a category to a human-facing summary (§7).
var userMessages = map[Category]string{
	CategoryNetwork:       "Network connection issue. Please check your connection and try again.",
	CategoryPermission:    "Permission denied. The action could not be completed.",
	CategoryDOM:           "The page element could not be found or interacted with.",
	CategoryAIAPI:         "AI service temporarily unavailable. Please try again shortly.",
	CategoryAutomation:    "An automation step failed to complete.",
	CategoryContentScript: "The page script encountered an error.",
	CategoryBackground:    "A background task encountered an error.",
	CategoryStorage:       "Saved data could not be read or written.",
	CategoryValidation:    "The provided input was invalid.",
	CategoryTimeout:       "The operation timed out.",
	CategoryUnknown:       "An unexpected error occurred.",
}

// defaultSeverity gives each category a reasonable default severity.
var defaultSeverity = map[Category]Severity{
	CategoryNetwork:       SeverityMedium,
	CategoryPermission:    SeverityHigh,
	CategoryDOM:           SeverityMedium,
	CategoryAIAPI:         SeverityMedium,
	CategoryAutomation:    SeverityMedium,
	CategoryContentScript: SeverityMedium,
	CategoryBackground:    SeverityLow,
	CategoryStorage:       SeverityMedium,
	CategoryValidation:    SeverityLow,
	CategoryTimeout:       SeverityMedium,
	CategoryUnknown:       SeverityHigh,
}

// defaultRecovery gives each category a reasonable default recovery strategy.
var defaultRecovery = map[Category]RecoveryStrategy{
	CategoryNetwork:       RecoveryRetry,
	CategoryPermission:    RecoveryUserIntervention,
	CategoryDOM:           RecoveryRetry,
	CategoryAIAPI:         RecoveryRetry,
	CategoryAutomation:    RecoveryRetry,
	CategoryContentScript: RecoverySkip,
	CategoryBackground:    RecoverySkip,
	CategoryStorage:       RecoveryFallback,
	CategoryValidation:    RecoveryAbort,
	CategoryTimeout:       RecoveryRetry,
	CategoryUnknown:       RecoveryAbort,
}

// Error is the structured error every component of the core deals in. It is
// a value type: serialize/fromSerialized round-trips losslessly.
type Error struct {
	Message          string           `json:"message"`
	Code             string           `json:"code,omitempty"`
	Category         Category         `json:"category"`
	Severity         Severity         `json:"severity"`
	RecoveryStrategy RecoveryStrategy `json:"recoveryStrategy"`
	Context          map[string]any   `json:"context,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
	RetryCount       int              `json:"retryCount"`
	MaxRetries       int              `json:"maxRetries"`
	Retryable        bool             `json:"retryable"`
	UserMessage      string           `json:"userMessage,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("[%s/%s] %s", e.Category, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Category, e.Message)
}

// Unwrap exposes the original native error, if any, to errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Cause returns the wrapped native error, or nil.
func (e *Error) Cause() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// New constructs an Error for category with the documented defaults for
// severity, recovery strategy, retryability, and user message.
func New(category Category, message string) *Error {
	return &Error{
		Message:          message,
		Category:         category,
		Severity:         defaultSeverity[category],
		RecoveryStrategy: defaultRecovery[category],
		Timestamp:        time.Now(),
		MaxRetries:       defaultMaxRetries(category),
		Retryable:        defaultRecovery[category] == RecoveryRetry,
		UserMessage:      userMessages[category],
	}
}

func defaultMaxRetries(category Category) int {
	switch category {
	case CategoryNetwork, CategoryTimeout, CategoryAIAPI, CategoryAutomation, CategoryDOM:
		return 3
	default:
		return 0
	}
}

// Wrap classifies a native error into the given category, preserving its
// message and making it available via Unwrap/Cause.
func Wrap(native error, category Category) *Error {
	if native == nil {
		return nil
	}
	if existing, ok := native.(*Error); ok {
		return existing
	}
	e := New(category, native.Error())
	e.cause = native
	return e
}

// WithCode sets the error code and returns the same Error for chaining.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithContext merges ctx into the error's context map.
func (e *Error) WithContext(ctx map[string]any) *Error {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	for k, v := range ctx {
		e.Context[k] = v
	}
	return e
}

// ShouldRetry reports whether another attempt is both allowed by policy and
// still within budget.
func (e *Error) ShouldRetry() bool {
	if e == nil {
		return false
	}
	return e.Retryable && e.RetryCount < e.MaxRetries
}

// WithRetry returns a new Error identical to e but with RetryCount
// incremented and ctx merged into its context; e itself is left untouched.
func (e *Error) WithRetry(ctx map[string]any) *Error {
	cp := *e
	cp.RetryCount = e.RetryCount + 1
	if ctx != nil {
		cp.Context = make(map[string]any, len(e.Context)+len(ctx))
		for k, v := range e.Context {
			cp.Context[k] = v
		}
		for k, v := range ctx {
			cp.Context[k] = v
		}
	}
	return &cp
}

// serializedError is the wire format used by Serialize/FromSerialized; it
// flattens Error's unexported cause into a plain string so the round-trip
// is lossless on every declared (exported) field.
type serializedError struct {
	Message          string           `json:"message"`
	Code             string           `json:"code,omitempty"`
	Category         Category         `json:"category"`
	Severity         Severity         `json:"severity"`
	RecoveryStrategy RecoveryStrategy `json:"recoveryStrategy"`
	Context          map[string]any   `json:"context,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
	RetryCount       int              `json:"retryCount"`
	MaxRetries       int              `json:"maxRetries"`
	Retryable        bool             `json:"retryable"`
	UserMessage      string           `json:"userMessage,omitempty"`
	Cause            string           `json:"cause,omitempty"`
}

// Serialize produces a lossless JSON representation of e.
func (e *Error) Serialize() ([]byte, error) {
	s := serializedError{
		Message:          e.Message,
		Code:             e.Code,
		Category:         e.Category,
		Severity:         e.Severity,
		RecoveryStrategy: e.RecoveryStrategy,
		Context:          e.Context,
		Timestamp:        e.Timestamp,
		RetryCount:       e.RetryCount,
		MaxRetries:       e.MaxRetries,
		Retryable:        e.Retryable,
		UserMessage:      e.UserMessage,
	}
	if e.cause != nil {
		s.Cause = e.cause.Error()
	}
	return json.Marshal(s)
}

// FromSerialized reconstructs an Error from Serialize's output.
func FromSerialized(data []byte) (*Error, error) {
	var s serializedError
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("taxonomy: decode error: %w", err)
	}
	e := &Error{
		Message:          s.Message,
		Code:             s.Code,
		Category:         s.Category,
		Severity:         s.Severity,
		RecoveryStrategy: s.RecoveryStrategy,
		Context:          s.Context,
		Timestamp:        s.Timestamp,
		RetryCount:       s.RetryCount,
		MaxRetries:       s.MaxRetries,
		Retryable:        s.Retryable,
		UserMessage:      s.UserMessage,
	}
	if s.Cause != "" {
		e.cause = errString(s.Cause)
	}
	return e, nil
}

// errString is a trivial error implementation for reconstructed causes.
type errString string

func (e errString) Error() string { return string(e) }
