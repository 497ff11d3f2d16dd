package session

import (
	"testing"
	"time"

	"github.com/sidepanelai/agentcore/pkg/models"
)

func TestFromExecutionTrimsToDocumentedTails(t *testing.T) {
	wf := &models.Workflow{Name: "wf"}
	exec := models.NewExecution("exec-1", wf)
	exec.Start()

	for i := 0; i < maxErrors+10; i++ {
		exec.AppendError(models.ExecutionErrorEntry{StepID: "s", Message: "boom", Timestamp: time.Now()})
	}

	logs := make([]string, 0, maxLogs+10)
	for i := 0; i < maxLogs+10; i++ {
		logs = append(logs, "log line")
	}

	history := make([]models.TraceEvent, 0, maxHistory+10)
	for i := 0; i < maxHistory+10; i++ {
		history = append(history, models.TraceEvent{Sequence: uint64(i), Kind: models.TraceGeneric})
	}

	snap := FromExecution(exec, logs, history)

	if len(snap.Errors) != maxErrors {
		t.Fatalf("errors = %d, want %d", len(snap.Errors), maxErrors)
	}
	if len(snap.Logs) != maxLogs {
		t.Fatalf("logs = %d, want %d", len(snap.Logs), maxLogs)
	}
	if len(snap.History) != maxHistory {
		t.Fatalf("history = %d, want %d", len(snap.History), maxHistory)
	}
	// the tail must be kept, not the head.
	if snap.History[len(snap.History)-1].Sequence != uint64(maxHistory+9) {
		t.Fatalf("history tail = %+v", snap.History[len(snap.History)-1])
	}
}

func TestFromExecutionUnderCapacityKeepsEverything(t *testing.T) {
	wf := &models.Workflow{Name: "wf"}
	exec := models.NewExecution("exec-1", wf)
	exec.AppendError(models.ExecutionErrorEntry{StepID: "s", Message: "boom", Timestamp: time.Now()})

	snap := FromExecution(exec, []string{"one log"}, nil)
	if len(snap.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(snap.Errors))
	}
	if len(snap.Logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(snap.Logs))
	}
	if len(snap.History) != 0 {
		t.Fatalf("history = %d, want 0", len(snap.History))
	}
}
