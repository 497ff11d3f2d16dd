package models

import (
	"sync"
	"sync/atomic"
	"time"
)

// ExecutionStatus is the lifecycle state of a running Workflow instance.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
	StatusCancelled ExecutionStatus = "cancelled"
)

// ExecutionErrorEntry records one failed attempt against the execution's
// error log; it is distinct from a terminal step failure.
type ExecutionErrorEntry struct {
	StepID       string    `json:"stepId"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	RetryAttempt int       `json:"retryAttempt"`
}

// StepResult is the outcome of running one step once to completion
// (including any internal retries within the step's own loop).
type StepResult struct {
	StepID        string        `json:"stepId"`
	Success       bool          `json:"success"`
	Result        any           `json:"result,omitempty"`
	Error         string        `json:"error,omitempty"`
	ExecutionTime time.Duration `json:"executionTime"`
	RetryAttempt  int           `json:"retryAttempt,omitempty"`
	Skipped       bool          `json:"skipped,omitempty"`
}

// Execution is the runtime state of one Workflow instance. It holds a
// non-owning reference to its Workflow: the engine never copies the
// workflow into the execution, only a pointer.
type Execution struct {
	ID       string    `json:"id"`
	Workflow *Workflow `json:"-"`

	Status      ExecutionStatus `json:"status"`
	StartTime   time.Time       `json:"startTime"`
	EndTime     *time.Time      `json:"endTime,omitempty"`
	CurrentStep string          `json:"currentStep,omitempty"`

	CompletedSteps []string `json:"completedSteps"`
	FailedSteps    []string `json:"failedSteps"`

	Variables map[string]any `json:"variables"`
	Results   map[string]any `json:"results"`

	Errors []ExecutionErrorEntry `json:"errors"`

	// cancelled is the single atomic flag every suspension point in the
	// engine must observe (§5 of the design: one flag per execution).
	cancelled atomic.Bool

	mu sync.RWMutex
}

// NewExecution creates a pending execution for wf, seeded with its initial
// variables (copied, so later mutation never reaches the immutable Workflow).
func NewExecution(id string, wf *Workflow) *Execution {
	vars := make(map[string]any, len(wf.Variables))
	for k, v := range wf.Variables {
		vars[k] = v
	}
	return &Execution{
		ID:             id,
		Workflow:       wf,
		Status:         StatusPending,
		Variables:      vars,
		Results:        map[string]any{},
		CompletedSteps: []string{},
		FailedSteps:    []string{},
		Errors:         []ExecutionErrorEntry{},
	}
}

// Start transitions a pending execution to running and stamps StartTime.
func (e *Execution) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Status = StatusRunning
	e.StartTime = time.Now()
}

// GetStatus reads Status under the execution's lock.
func (e *Execution) GetStatus() ExecutionStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.Status
}

// Cancelled reports whether Cancel has been called on this execution.
func (e *Execution) Cancelled() bool {
	return e.cancelled.Load()
}

// Cancel marks the execution cancelled. Returns whether this call performed
// the transition (idempotent: a second call returns false).
func (e *Execution) Cancel() bool {
	if !e.cancelled.CompareAndSwap(false, true) {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Status == StatusRunning || e.Status == StatusPending {
		e.Status = StatusCancelled
		now := time.Now()
		e.EndTime = &now
	}
	return true
}

// SetVariable writes variables[key] = value under the execution's lock.
func (e *Execution) SetVariable(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Variables[key] = value
}

// GetVariables returns a shallow copy of the current variable map, safe to
// read without holding the execution lock.
func (e *Execution) GetVariables() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]any, len(e.Variables))
	for k, v := range e.Variables {
		out[k] = v
	}
	return out
}

// SetResult writes results[stepID] = value under the execution's lock.
func (e *Execution) SetResult(stepID string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Results[stepID] = value
}

// AppendCompleted records a step id as completed.
func (e *Execution) AppendCompleted(stepID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CompletedSteps = append(e.CompletedSteps, stepID)
}

// AppendFailed records a step id as failed.
func (e *Execution) AppendFailed(stepID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.FailedSteps = append(e.FailedSteps, stepID)
}

// AppendError appends to the execution's error log.
func (e *Execution) AppendError(entry ExecutionErrorEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Errors = append(e.Errors, entry)
}

// SetStatus transitions the execution's status under lock.
func (e *Execution) SetStatus(s ExecutionStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Status = s
	if s == StatusCompleted || s == StatusFailed || s == StatusCancelled {
		if e.EndTime == nil {
			now := time.Now()
			e.EndTime = &now
		}
	}
}

// FailedCount returns the number of steps recorded as failed so far.
func (e *Execution) FailedCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.FailedSteps)
}

// SetCurrentStep records which step the execution is presently working on.
func (e *Execution) SetCurrentStep(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CurrentStep = id
}

// Snapshot returns a point-in-time, lock-free copy of the fields the
// session store persists.
func (e *Execution) Snapshot() Execution {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cp := Execution{
		ID:             e.ID,
		Workflow:       e.Workflow,
		Status:         e.Status,
		StartTime:      e.StartTime,
		EndTime:        e.EndTime,
		CurrentStep:    e.CurrentStep,
		CompletedSteps: append([]string(nil), e.CompletedSteps...),
		FailedSteps:    append([]string(nil), e.FailedSteps...),
		Variables:      make(map[string]any, len(e.Variables)),
		Results:        make(map[string]any, len(e.Results)),
		Errors:         append([]ExecutionErrorEntry(nil), e.Errors...),
	}
	for k, v := range e.Variables {
		cp.Variables[k] = v
	}
	for k, v := range e.Results {
		cp.Results[k] = v
	}
	return cp
}
