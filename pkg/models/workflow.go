// Package models holds the data types shared by the workflow engine and its
// collaborators: workflow definitions, runtime execution state, tool
// contracts, key pool entries, and trace events.
package models

import "time"

// ErrorStrategy controls how the engine reacts to an unrecovered step failure.
type ErrorStrategy string

const (
	StrategyFailFast        ErrorStrategy = "fail_fast"
	StrategyContinueOnError ErrorStrategy = "continue_on_error"
	StrategyRollbackOnError ErrorStrategy = "rollback_on_error"
)

// OnErrorPolicy is the per-step reaction to a failed attempt.
type OnErrorPolicy string

const (
	OnErrorFail     OnErrorPolicy = "fail"
	OnErrorRetry    OnErrorPolicy = "retry"
	OnErrorContinue OnErrorPolicy = "continue"
	OnErrorRollback OnErrorPolicy = "rollback"
)

// WaitConditionType selects which predicate Step.WaitFor polls.
type WaitConditionType string

const (
	WaitElement      WaitConditionType = "element"
	WaitNetworkIdle  WaitConditionType = "network_idle"
	WaitNavigation   WaitConditionType = "navigation"
	WaitCustom       WaitConditionType = "custom"
)

// WaitCondition polls a predicate after a step completes, before the engine
// moves on. Timeout and Interval are milliseconds; Interval must be <= Timeout.
type WaitCondition struct {
	Type     WaitConditionType `json:"type" yaml:"type"`
	Timeout  int               `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Interval int               `json:"interval,omitempty" yaml:"interval,omitempty"`

	// Selector/State/Text are used by the "element" predicate.
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`
	State    string `json:"state,omitempty" yaml:"state,omitempty"`
	Text     string `json:"text,omitempty" yaml:"text,omitempty"`

	// URL is used by the "navigation" predicate; empty matches any navigation.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Expression is used by the "custom" predicate.
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// TimeoutDuration returns Timeout as a time.Duration, defaulting to 30s.
func (w *WaitCondition) TimeoutDuration() time.Duration {
	if w == nil || w.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(w.Timeout) * time.Millisecond
}

// IntervalDuration returns Interval as a time.Duration, defaulting to 500ms.
func (w *WaitCondition) IntervalDuration() time.Duration {
	if w == nil || w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(w.Interval) * time.Millisecond
}

// Step is a single unit of work in a Workflow's DAG.
type Step struct {
	ID         string            `json:"id" yaml:"id"`
	Tool       string            `json:"tool" yaml:"tool"`
	Args       map[string]any    `json:"args,omitempty" yaml:"args,omitempty"`
	Depends    []string          `json:"depends,omitempty" yaml:"depends,omitempty"`
	Condition  string            `json:"condition,omitempty" yaml:"condition,omitempty"`
	OnError    OnErrorPolicy     `json:"onError,omitempty" yaml:"onError,omitempty"`
	RetryCount int               `json:"retryCount,omitempty" yaml:"retryCount,omitempty"`
	RetryDelay int               `json:"retryDelay,omitempty" yaml:"retryDelay,omitempty"` // ms
	Timeout    int               `json:"timeout,omitempty" yaml:"timeout,omitempty"`       // ms
	WaitFor    *WaitCondition    `json:"waitFor,omitempty" yaml:"waitFor,omitempty"`
}

// Normalize fills in the documented defaults for a freshly-authored step.
func (s *Step) Normalize() {
	if s.OnError == "" {
		s.OnError = OnErrorFail
	}
	if s.RetryDelay <= 0 {
		s.RetryDelay = 1000
	}
	if s.Timeout <= 0 {
		s.Timeout = 30000
	}
	if s.WaitFor != nil {
		if s.WaitFor.Timeout <= 0 {
			s.WaitFor.Timeout = 30000
		}
		if s.WaitFor.Interval <= 0 {
			s.WaitFor.Interval = 500
		}
	}
}

// RetryDelayDuration returns RetryDelay as a time.Duration.
func (s *Step) RetryDelayDuration() time.Duration {
	return time.Duration(s.RetryDelay) * time.Millisecond
}

// TimeoutDuration returns Timeout as a time.Duration.
func (s *Step) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Millisecond
}

// ErrorHandling is a workflow-level policy for reacting to an unrecovered
// step failure.
type ErrorHandling struct {
	Strategy      ErrorStrategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	RollbackSteps []string      `json:"rollbackSteps,omitempty" yaml:"rollbackSteps,omitempty"`
}

// Workflow is an immutable, named DAG of steps. Once an Execution begins
// against it, its fields must not be mutated.
type Workflow struct {
	Name          string         `json:"name" yaml:"name"`
	Description   string         `json:"description,omitempty" yaml:"description,omitempty"`
	Steps         []Step         `json:"steps" yaml:"steps"`
	Variables     map[string]any `json:"variables,omitempty" yaml:"variables,omitempty"`
	ErrorHandling ErrorHandling  `json:"errorHandling,omitempty" yaml:"errorHandling,omitempty"`
}

// StepByID returns the step with the given id, or false if none exists.
func (w *Workflow) StepByID(id string) (*Step, bool) {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i], true
		}
	}
	return nil, false
}
