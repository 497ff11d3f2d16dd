package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sidepanelai/agentcore/internal/observer"
	"github.com/sidepanelai/agentcore/internal/registry"
	"github.com/sidepanelai/agentcore/pkg/models"
)

func alwaysOK(observation string) models.ToolRunFunc {
	return func(ctx context.Context, input map[string]any) (models.NormalizedToolResult, error) {
		return models.NormalizedToolResult{OK: true, Observation: observation}, nil
	}
}

func sleepThenOK(d time.Duration, observation string) models.ToolRunFunc {
	return func(ctx context.Context, input map[string]any) (models.NormalizedToolResult, error) {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return models.NormalizedToolResult{}, ctx.Err()
		}
		return models.NormalizedToolResult{OK: true, Observation: observation}, nil
	}
}

func newTestEngine(t *testing.T) (*Engine, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	obs := observer.New(0)
	return New(reg, obs), reg
}

func mustRegister(t *testing.T, reg *registry.Registry, id string, run models.ToolRunFunc) {
	t.Helper()
	if err := reg.Register(&models.ToolDefinition{
		ID:          id,
		InputSchema: &models.InputSchema{Type: models.SchemaObject},
		RetryPolicy: models.RetryPolicy{MaxAttempts: 1},
		Run:         run,
	}); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
}

func TestEngineLinearHappyPath(t *testing.T) {
	e, reg := newTestEngine(t)
	mustRegister(t, reg, "t", alwaysOK("done"))

	wf := &models.Workflow{
		Name: "linear",
		Steps: []models.Step{
			{ID: "A", Tool: "t"},
			{ID: "B", Tool: "t", Depends: []string{"A"}},
			{ID: "C", Tool: "t", Depends: []string{"B"}},
		},
		ErrorHandling: models.ErrorHandling{Strategy: models.StrategyFailFast},
	}
	for i := range wf.Steps {
		wf.Steps[i].Normalize()
	}

	exec := e.Start("exec-1", wf)
	if err := e.Run(context.Background(), exec); err != nil {
		t.Fatalf("run: %v", err)
	}
	if exec.GetStatus() != models.StatusCompleted {
		t.Fatalf("status = %s", exec.GetStatus())
	}
	if len(exec.CompletedSteps) != 3 || len(exec.FailedSteps) != 0 {
		t.Fatalf("completed=%v failed=%v", exec.CompletedSteps, exec.FailedSteps)
	}
	for _, id := range []string{"A", "B", "C"} {
		if exec.Results[id] != "done" {
			t.Fatalf("results[%s] = %v", id, exec.Results[id])
		}
	}
}

func TestEngineParallelWave(t *testing.T) {
	e, reg := newTestEngine(t)
	mustRegister(t, reg, "slow", sleepThenOK(50*time.Millisecond, "done"))

	wf := &models.Workflow{
		Name: "parallel",
		Steps: []models.Step{
			{ID: "A", Tool: "slow"},
			{ID: "B", Tool: "slow"},
			{ID: "C", Tool: "slow", Depends: []string{"A", "B"}},
		},
	}
	for i := range wf.Steps {
		wf.Steps[i].Normalize()
	}

	exec := e.Start("exec-2", wf)
	start := time.Now()
	if err := e.Run(context.Background(), exec); err != nil {
		t.Fatalf("run: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed >= 150*time.Millisecond {
		t.Fatalf("elapsed = %v, want < 150ms", elapsed)
	}
	if exec.GetStatus() != models.StatusCompleted {
		t.Fatalf("status = %s", exec.GetStatus())
	}
}

func TestEngineCycleRejection(t *testing.T) {
	e, reg := newTestEngine(t)
	mustRegister(t, reg, "t", alwaysOK("done"))

	wf := &models.Workflow{
		Name: "cycle",
		Steps: []models.Step{
			{ID: "A", Tool: "t", Depends: []string{"B"}},
			{ID: "B", Tool: "t", Depends: []string{"A"}},
		},
	}
	exec := e.Start("exec-3", wf)
	err := e.Run(context.Background(), exec)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if exec.GetStatus() != models.StatusFailed {
		t.Fatalf("status = %s", exec.GetStatus())
	}
}

func TestEngineRetryThenSucceed(t *testing.T) {
	e, reg := newTestEngine(t)
	var calls atomic.Int32
	mustRegister(t, reg, "flaky", func(ctx context.Context, input map[string]any) (models.NormalizedToolResult, error) {
		n := calls.Add(1)
		if n <= 2 {
			return models.NormalizedToolResult{OK: false, Observation: "nope"}, nil
		}
		return models.NormalizedToolResult{OK: true, Observation: "v"}, nil
	})

	wf := &models.Workflow{
		Name: "retry",
		Steps: []models.Step{
			{ID: "A", Tool: "flaky", RetryCount: 2, RetryDelay: 10},
		},
	}
	wf.Steps[0].Normalize()

	exec := e.Start("exec-4", wf)
	if err := e.Run(context.Background(), exec); err != nil {
		t.Fatalf("run: %v", err)
	}
	if exec.GetStatus() != models.StatusCompleted {
		t.Fatalf("status = %s", exec.GetStatus())
	}
	if exec.Results["A"] != "v" {
		t.Fatalf("results[A] = %v", exec.Results["A"])
	}
	if len(exec.Errors) != 2 {
		t.Fatalf("errors = %v", exec.Errors)
	}
	for _, entry := range exec.Errors {
		if entry.RetryAttempt != 1 && entry.RetryAttempt != 2 {
			t.Fatalf("unexpected retryAttempt %d", entry.RetryAttempt)
		}
	}
}

func TestEngineRollback(t *testing.T) {
	e, reg := newTestEngine(t)
	mustRegister(t, reg, "ok", alwaysOK("done"))
	mustRegister(t, reg, "alwaysFail", func(ctx context.Context, input map[string]any) (models.NormalizedToolResult, error) {
		return models.NormalizedToolResult{OK: false, Observation: "boom"}, nil
	})

	var order []string
	mustRegister(t, reg, "rollbackTrack", func(ctx context.Context, input map[string]any) (models.NormalizedToolResult, error) {
		id, _ := input["id"].(string)
		order = append(order, id)
		return models.NormalizedToolResult{OK: true, Observation: "done"}, nil
	})

	wf := &models.Workflow{
		Name: "rollback",
		Steps: []models.Step{
			{ID: "A", Tool: "ok"},
			{ID: "B", Tool: "alwaysFail", Depends: []string{"A"}, OnError: models.OnErrorRollback},
			{ID: "U1", Tool: "rollbackTrack", Args: map[string]any{"id": "U1"}},
			{ID: "U2", Tool: "rollbackTrack", Args: map[string]any{"id": "U2"}},
		},
		ErrorHandling: models.ErrorHandling{
			Strategy:      models.StrategyRollbackOnError,
			RollbackSteps: []string{"U1", "U2"},
		},
	}
	for i := range wf.Steps {
		wf.Steps[i].Normalize()
	}

	exec := e.Start("exec-5", wf)
	err := e.Run(context.Background(), exec)
	if err == nil {
		t.Fatal("expected failure")
	}
	if exec.GetStatus() != models.StatusFailed {
		t.Fatalf("status = %s", exec.GetStatus())
	}
	if len(order) != 2 || order[0] != "U2" || order[1] != "U1" {
		t.Fatalf("rollback order = %v, want [U2 U1]", order)
	}
}

func TestEngineCancellation(t *testing.T) {
	e, reg := newTestEngine(t)
	mustRegister(t, reg, "slow", sleepThenOK(500*time.Millisecond, "done"))

	wf := &models.Workflow{
		Name: "cancel",
		Steps: []models.Step{
			{ID: "A", Tool: "slow", Timeout: 2000},
		},
	}
	wf.Steps[0].Normalize()

	exec := e.Start("exec-6", wf)

	go func() {
		time.Sleep(100 * time.Millisecond)
		exec.Cancel()
	}()

	start := time.Now()
	_ = e.Run(context.Background(), exec)
	elapsed := time.Since(start)

	if exec.GetStatus() != models.StatusCancelled {
		t.Fatalf("status = %s", exec.GetStatus())
	}
	// The in-flight tool call is allowed to finish (no hard kill); only the
	// next wave is skipped, so this settles once the slow tool returns.
	if elapsed > 2*time.Second {
		t.Fatalf("elapsed = %v, took too long to observe cancellation", elapsed)
	}
}
