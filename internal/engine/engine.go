// Package engine implements the workflow engine (C7): dependency
// resolution, wavefront scheduling, per-step retry/rollback, variable
// substitution, condition evaluation, wait-conditions, and cancellation.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sidepanelai/agentcore/internal/infra"
	"github.com/sidepanelai/agentcore/internal/observer"
	"github.com/sidepanelai/agentcore/internal/registry"
	"github.com/sidepanelai/agentcore/internal/taxonomy"
	"github.com/sidepanelai/agentcore/pkg/models"
)

// DefaultWaveConcurrency bounds how many steps within a single wave may run
// at once, independent of the wave's own size.
const DefaultWaveConcurrency = 8

// Engine is the C7 workflow engine. Registry, Observer and any circuit
// breakers it wraps calls with are explicit collaborators, constructed once
// and injected, rather than reached for as package-level globals.
type Engine struct {
	registry *registry.Registry
	observer *observer.Observer
	logger   *slog.Logger

	browserTool string
	sem         *infra.Semaphore

	mu         sync.Mutex
	executions map[string]*models.Execution
}

// Option configures an Engine.
type Option func(*Engine)

// WithBrowserTool overrides DefaultBrowserTool, the registry id wait-for
// predicates are asked against.
func WithBrowserTool(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.browserTool = id
		}
	}
}

// WithWaveConcurrency overrides DefaultWaveConcurrency.
func WithWaveConcurrency(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sem = infra.NewSemaphore(n)
		}
	}
}

// WithLogger overrides the engine's structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New constructs an Engine against reg and obs.
func New(reg *registry.Registry, obs *observer.Observer, opts ...Option) *Engine {
	e := &Engine{
		registry:    reg,
		observer:    obs,
		logger:      slog.Default(),
		browserTool: DefaultBrowserTool,
		sem:         infra.NewSemaphore(DefaultWaveConcurrency),
		executions:  make(map[string]*models.Execution),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start creates and registers a pending Execution for wf without running it.
func (e *Engine) Start(id string, wf *models.Workflow) *models.Execution {
	exec := models.NewExecution(id, wf)
	e.mu.Lock()
	e.executions[id] = exec
	e.mu.Unlock()
	return exec
}

// Get returns a tracked execution by id.
func (e *Engine) Get(id string) (*models.Execution, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	exec, ok := e.executions[id]
	return exec, ok
}

// Cancel transitions a running or pending execution to cancelled. Returns
// whether this call performed the transition (idempotent).
func (e *Engine) Cancel(id string) bool {
	exec, ok := e.Get(id)
	if !ok {
		return false
	}
	return exec.Cancel()
}

// ClearCompleted removes every tracked execution not currently running,
// returning the count removed.
func (e *Engine) ClearCompleted() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for id, exec := range e.executions {
		if exec.GetStatus() != models.StatusRunning {
			delete(e.executions, id)
			removed++
		}
	}
	return removed
}

// Run executes exec's workflow to completion, abort, or cancellation. It
// topologically partitions the steps into waves, running each wave's steps
// concurrently (bounded by the engine's wave semaphore), and honors the
// workflow's errorHandling strategy on a terminal step failure.
func (e *Engine) Run(ctx context.Context, exec *models.Execution) error {
	wf := exec.Workflow
	exec.Start()
	e.emit(models.TraceRunState, map[string]any{"executionId": exec.ID, "status": string(models.StatusRunning)})

	forwardSteps := forwardOnly(wf.Steps, wf.ErrorHandling.RollbackSteps)

	order, err := topoSort(forwardSteps)
	if err != nil {
		return e.abortBeforeStart(exec, err)
	}
	waves, err := partitionWaves(forwardSteps, order)
	if err != nil {
		return e.abortBeforeStart(exec, err)
	}

	var abortErr error
	rollbackNeeded := false

waves:
	for _, wave := range waves {
		if exec.Cancelled() {
			break waves
		}

		outcomes := make([]stepOutcome, len(wave))
		var wg sync.WaitGroup
		for i, id := range wave {
			step, _ := wf.StepByID(id)
			wg.Add(1)
			go func(i int, step models.Step) {
				defer wg.Done()
				e.runWaveStep(ctx, exec, step, &outcomes[i])
			}(i, *step)
		}
		wg.Wait()

		for _, out := range outcomes {
			if out.fatal {
				abortErr = fmt.Errorf("%s", out.result.Error)
				if out.rollback {
					rollbackNeeded = true
				}
			}
		}

		if abortErr != nil && (wf.ErrorHandling.Strategy == models.StrategyFailFast || rollbackNeeded) {
			break waves
		}
	}

	if exec.Cancelled() {
		// exec.Cancel() already stamped status=cancelled and endTime; the
		// engine only needed to stop scheduling new waves.
		e.emit(models.TraceRunState, map[string]any{"executionId": exec.ID, "status": string(models.StatusCancelled)})
		return nil
	}

	if abortErr != nil {
		if wf.ErrorHandling.Strategy == models.StrategyRollbackOnError {
			e.runRollback(ctx, exec, wf)
		}
		exec.SetStatus(models.StatusFailed)
		e.emit(models.TraceRunState, map[string]any{"executionId": exec.ID, "status": string(models.StatusFailed), "error": abortErr.Error()})
		return abortErr
	}

	if exec.FailedCount() > 0 {
		exec.SetStatus(models.StatusFailed)
		e.emit(models.TraceRunState, map[string]any{"executionId": exec.ID, "status": string(models.StatusFailed)})
		return fmt.Errorf("workflow completed with %d failed step(s)", exec.FailedCount())
	}

	exec.SetStatus(models.StatusCompleted)
	e.emit(models.TraceRunState, map[string]any{"executionId": exec.ID, "status": string(models.StatusCompleted)})
	return nil
}

func (e *Engine) runWaveStep(ctx context.Context, exec *models.Execution, step models.Step, out *stepOutcome) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		*out = stepOutcome{
			result: models.StepResult{StepID: step.ID, Success: false, Error: err.Error()},
			fatal:  true,
		}
		return
	}
	defer e.sem.Release(1)

	if exec.Cancelled() {
		*out = stepOutcome{result: models.StepResult{StepID: step.ID, Success: true, Skipped: true}}
		return
	}

	exec.SetCurrentStep(step.ID)
	*out = e.runStep(ctx, exec, step)
}

// forwardOnly excludes steps listed as rollbackSteps from the forward
// execution DAG: they are only ever run by runRollback, on abort.
func forwardOnly(steps []models.Step, rollbackSteps []string) []models.Step {
	if len(rollbackSteps) == 0 {
		return steps
	}
	excluded := make(map[string]bool, len(rollbackSteps))
	for _, id := range rollbackSteps {
		excluded[id] = true
	}
	out := make([]models.Step, 0, len(steps))
	for _, s := range steps {
		if !excluded[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) abortBeforeStart(exec *models.Execution, err error) error {
	exec.AppendError(models.ExecutionErrorEntry{Message: err.Error(), Timestamp: time.Now()})
	exec.SetStatus(models.StatusFailed)
	e.emit(models.TraceRunState, map[string]any{"executionId": exec.ID, "status": string(models.StatusFailed), "error": err.Error()})
	return err
}

// runRollback executes errorHandling.rollbackSteps in reverse order, each as
// an independent step invocation. Rollback failures are logged, never
// propagated.
func (e *Engine) runRollback(ctx context.Context, exec *models.Execution, wf *models.Workflow) {
	steps := wf.ErrorHandling.RollbackSteps
	for i := len(steps) - 1; i >= 0; i-- {
		id := steps[i]
		step, ok := wf.StepByID(id)
		if !ok {
			e.logger.Warn("rollback step not found", "stepId", id)
			continue
		}
		out := e.runStep(ctx, exec, *step)
		if !out.result.Success {
			e.logger.Warn("rollback step failed", "stepId", id, "error", out.result.Error)
		}
	}
}

// stepOutcome is the engine-internal result of running a step once to its
// own terminal disposition (including its own retry loop). fatal marks a
// failure that should abort the workflow; rollback additionally marks that
// the failure was tagged onError=rollback.
type stepOutcome struct {
	result   models.StepResult
	fatal    bool
	rollback bool
}

// runStep drives the per-step state machine: evaluate condition, substitute
// variables, invoke the tool under a timeout, parse and store the result,
// wait for any post-condition, and react to failure per step.onError.
func (e *Engine) runStep(ctx context.Context, exec *models.Execution, step models.Step) stepOutcome {
	start := time.Now()
	retryAttempt := 0

	for {
		if exec.Cancelled() {
			return stepOutcome{result: models.StepResult{StepID: step.ID, Success: true, Skipped: true, ExecutionTime: time.Since(start)}}
		}

		vars := exec.GetVariables()

		if step.Condition != "" {
			if !evaluateCondition(substituteString(step.Condition, vars)) {
				result := models.StepResult{
					StepID:        step.ID,
					Success:       true,
					Result:        map[string]any{"skipped": true, "reason": "condition not met"},
					Skipped:       true,
					ExecutionTime: time.Since(start),
				}
				exec.AppendCompleted(step.ID)
				return stepOutcome{result: result}
			}
		}

		args, _ := substitute(step.Args, vars).(map[string]any)

		e.emit(models.TraceToolStarted, map[string]any{"executionId": exec.ID, "stepId": step.ID, "tool": step.Tool, "attempt": retryAttempt})

		stepCtx, cancel := context.WithTimeout(ctx, step.TimeoutDuration())
		toolResult := e.registry.Run(stepCtx, step.Tool, args)
		timedOut := stepCtx.Err() == context.DeadlineExceeded
		cancel()

		var stepErr error
		switch {
		case timedOut:
			stepErr = taxonomy.New(taxonomy.CategoryTimeout, fmt.Sprintf("step %s timed out after %dms", step.ID, step.Timeout))
		case !toolResult.OK:
			msg := toolResult.Observation
			if len(toolResult.Errors) > 0 {
				msg = strings.Join(toolResult.Errors, "; ")
			}
			stepErr = taxonomy.New(taxonomy.CategoryAutomation, msg)
		}

		var parsed any
		if stepErr == nil {
			parsed = parseObservation(toolResult)
			exec.SetResult(step.ID, parsed)
			if storeAs, ok := args["storeAs"].(string); ok && storeAs != "" {
				exec.SetVariable(storeAs, parsed)
			}

			if step.WaitFor != nil {
				if err := e.waitForCondition(ctx, exec, step.WaitFor); err != nil {
					stepErr = err
				}
			}
		}

		e.emit(models.TraceToolResult, map[string]any{"executionId": exec.ID, "stepId": step.ID, "ok": stepErr == nil})

		if stepErr == nil {
			result := models.StepResult{
				StepID:        step.ID,
				Success:       true,
				Result:        parsed,
				ExecutionTime: time.Since(start),
				RetryAttempt:  retryAttempt,
			}
			exec.AppendCompleted(step.ID)
			return stepOutcome{result: result}
		}

		exec.AppendError(models.ExecutionErrorEntry{
			StepID:       step.ID,
			Message:      stepErr.Error(),
			Timestamp:    time.Now(),
			RetryAttempt: retryAttempt,
		})

		if step.OnError == models.OnErrorContinue {
			result := models.StepResult{StepID: step.ID, Success: false, Error: stepErr.Error(), ExecutionTime: time.Since(start), RetryAttempt: retryAttempt}
			exec.AppendFailed(step.ID)
			return stepOutcome{result: result}
		}

		if retryAttempt < step.RetryCount {
			retryAttempt++
			select {
			case <-time.After(step.RetryDelayDuration()):
			case <-ctx.Done():
				result := models.StepResult{StepID: step.ID, Success: false, Error: ctx.Err().Error(), ExecutionTime: time.Since(start), RetryAttempt: retryAttempt}
				exec.AppendFailed(step.ID)
				return stepOutcome{result: result, fatal: true}
			}
			continue
		}

		result := models.StepResult{StepID: step.ID, Success: false, Error: stepErr.Error(), ExecutionTime: time.Since(start), RetryAttempt: retryAttempt}
		exec.AppendFailed(step.ID)

		if step.OnError == models.OnErrorRollback {
			return stepOutcome{result: result, fatal: true, rollback: true}
		}
		return stepOutcome{result: result, fatal: true}
	}
}

// parseObservation takes the tool's observation (or, failing that, the
// first textual artifact) and attempts a JSON parse; on failure the raw
// string is kept as-is.
func parseObservation(result models.NormalizedToolResult) any {
	text := result.Observation
	if text == "" {
		for _, v := range result.Artifacts {
			if s, ok := v.(string); ok {
				text = s
				break
			}
		}
	}
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return parsed
	}
	return text
}

func (e *Engine) emit(kind models.TraceEventKind, data map[string]any) {
	if e.observer != nil {
		e.observer.Emit(kind, data)
	}
}
