// Package session implements the session store (C8): snapshot/restore of
// per-tab execution state against a pluggable storage backend.
package session

import (
	"context"
	"time"

	"github.com/sidepanelai/agentcore/pkg/models"
)

// maxErrors/maxLogs/maxHistory bound the tail of each log retained in a
// snapshot (§4.8).
const (
	maxErrors  = 100
	maxLogs    = 100
	maxHistory = 20
)

// Snapshot is the persisted shape of one Execution, per the session store
// contract: identity, workflow, runtime state, and bounded tails of its
// error/log/trace history.
type Snapshot struct {
	ID             string                       `json:"id"`
	Workflow       *models.Workflow             `json:"workflow"`
	Status         models.ExecutionStatus       `json:"status"`
	Variables      map[string]any               `json:"variables"`
	Results        map[string]any               `json:"results"`
	CompletedSteps []string                     `json:"completedSteps"`
	FailedSteps    []string                     `json:"failedSteps"`
	CurrentStep    string                       `json:"currentStep,omitempty"`
	Errors         []models.ExecutionErrorEntry `json:"errors"`
	Logs           []string                     `json:"logs"`
	History        []models.TraceEvent          `json:"history"`
	SavedAt        time.Time                    `json:"savedAt"`
}

// FromExecution builds a Snapshot from exec's current state plus the
// caller-supplied logs and trace history, trimming each to its documented
// tail length.
func FromExecution(exec *models.Execution, logs []string, history []models.TraceEvent) *Snapshot {
	cp := exec.Snapshot()
	return &Snapshot{
		ID:             cp.ID,
		Workflow:       cp.Workflow,
		Status:         cp.Status,
		Variables:      cp.Variables,
		Results:        cp.Results,
		CompletedSteps: cp.CompletedSteps,
		FailedSteps:    cp.FailedSteps,
		CurrentStep:    cp.CurrentStep,
		Errors:         tailErrors(cp.Errors, maxErrors),
		Logs:           tailStrings(logs, maxLogs),
		History:        tailEvents(history, maxHistory),
		SavedAt:        time.Now(),
	}
}

func tailErrors(errs []models.ExecutionErrorEntry, n int) []models.ExecutionErrorEntry {
	if len(errs) <= n {
		return errs
	}
	return errs[len(errs)-n:]
}

func tailStrings(logs []string, n int) []string {
	if len(logs) <= n {
		return logs
	}
	return logs[len(logs)-n:]
}

func tailEvents(events []models.TraceEvent, n int) []models.TraceEvent {
	if len(events) <= n {
		return events
	}
	return events[len(events)-n:]
}

// Store persists and restores Execution snapshots under their id. Failures
// are reported as errors to the caller, who is expected to treat them as
// warnings rather than fatal conditions (§4.8).
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Restore(ctx context.Context, id string) (*Snapshot, error)
	Delete(ctx context.Context, id string) error
}

// Restore always forces status to cancelled: a restored execution never
// resumes as running automatically (§4.8).
func forceCancelled(snap *Snapshot) *Snapshot {
	if snap == nil {
		return nil
	}
	snap.Status = models.StatusCancelled
	return snap
}
