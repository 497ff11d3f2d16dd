// Package registry implements the typed tool registry (C3): registration,
// input schema validation, retry policy, and the normalized result shape
// every tool invocation collapses to.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sidepanelai/agentcore/pkg/models"
)

// MaxToolNameLength bounds a tool id accepted by Run.
const MaxToolNameLength = 256

// Known artifact keys lifted out of a tool's observation map into
// NormalizedToolResult.Artifacts (§4.3 normalization rules).
var artifactKeys = []string{"tabs", "links", "report", "data", "content"}

// Registry is the C3 tool registry.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*models.ToolDefinition
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{tools: make(map[string]*models.ToolDefinition)}
}

// Register adds or replaces a tool definition by id. Idempotent: a later
// Register for the same id atomically replaces the earlier one.
func (r *Registry) Register(def *models.ToolDefinition) error {
	if def == nil || def.ID == "" {
		return fmt.Errorf("registry: tool definition must have a non-empty id")
	}
	if def.Run == nil {
		return fmt.Errorf("registry: tool %q has no run function", def.ID)
	}
	if def.RetryPolicy.MaxAttempts <= 0 {
		def.RetryPolicy.MaxAttempts = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.ID] = def
	return nil
}

// Unregister removes a tool definition by id; a no-op if unknown.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, id)
}

// Get returns the tool definition for id, if registered.
func (r *Registry) Get(id string) (*models.ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[id]
	return def, ok
}

// List returns every registered tool definition, in no particular order.
func (r *Registry) List() []*models.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.ToolDefinition, 0, len(r.tools))
	for _, def := range r.tools {
		out = append(out, def)
	}
	return out
}

// Run executes the tool with the given id, validating input against its
// schema, evaluating preconditions, and retrying according to its retry
// policy. It always returns a NormalizedToolResult: a validation failure,
// a rejected precondition, and an exhausted retry budget are all
// represented as an ok=false result rather than a Go error.
func (r *Registry) Run(ctx context.Context, id string, input map[string]any) models.NormalizedToolResult {
	start := time.Now()

	if len(id) == 0 || len(id) > MaxToolNameLength {
		return errorResult(start, "invalid tool name")
	}

	def, ok := r.Get(id)
	if !ok {
		return errorResult(start, fmt.Sprintf("unknown tool: %s", id))
	}

	if err := validateInput(def.InputSchema, map[string]any(input), id); err != nil {
		return errorResult(start, err.Error())
	}

	if def.Preconditions != nil {
		if pre := def.Preconditions(ctx, input); pre != nil && !pre.OK {
			return models.NormalizedToolResult{
				OK:          false,
				Status:      "error",
				DurationMs:  time.Since(start).Milliseconds(),
				Observation: pre.Observation,
			}
		}
	}

	maxAttempts := def.RetryPolicy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var last models.NormalizedToolResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		last = runOnce(ctx, def, input)
		if last.OK {
			break
		}
		if attempt < maxAttempts {
			backoff := time.Duration(def.RetryPolicy.BackoffMs) * time.Millisecond * time.Duration(attempt)
			if backoff > 0 {
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					last.Errors = append(last.Errors, ctx.Err().Error())
					last.DurationMs = time.Since(start).Milliseconds()
					return last
				}
			}
		}
	}
	last.DurationMs = time.Since(start).Milliseconds()
	return normalize(last)
}

// runOnce invokes a tool's body once, converting a thrown error into a
// non-ok normalized result rather than letting it propagate.
func runOnce(ctx context.Context, def *models.ToolDefinition, input map[string]any) (result models.NormalizedToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = models.NormalizedToolResult{
				OK:          false,
				Status:      "error",
				Observation: "ERROR",
				Errors:      []string{fmt.Sprintf("panic: %v", rec)},
			}
		}
	}()

	out, err := def.Run(ctx, input)
	if err != nil {
		out.OK = false
		if out.Status == "" {
			out.Status = "error"
		}
		out.Errors = append(out.Errors, err.Error())
	}
	return out
}

func errorResult(start time.Time, message string) models.NormalizedToolResult {
	return models.NormalizedToolResult{
		OK:          false,
		Status:      "error",
		DurationMs:  time.Since(start).Milliseconds(),
		Observation: "ERROR",
		Errors:      []string{message},
	}
}

// normalize applies the §4.3 normalization rules: default observation text
// and artifact lifting from well-known keys.
func normalize(result models.NormalizedToolResult) models.NormalizedToolResult {
	if result.Status == "" {
		if result.OK {
			result.Status = "success"
		} else {
			result.Status = "error"
		}
	}
	if result.Observation == "" {
		if result.OK {
			result.Observation = "OK"
		} else {
			result.Observation = "ERROR"
		}
	}

	if result.Artifacts == nil {
		result.Artifacts = map[string]any{}
	}
	liftArtifactKeys(&result)
	if _, ok := result.Artifacts["dataUrl"]; ok {
		result.Artifacts["screenshot"] = true
	}
	if len(result.Artifacts) == 0 {
		result.Artifacts = nil
	}
	return result
}

// liftArtifactKeys promotes artifactKeys found in a tool's observation into
// Artifacts. Tools written directly against ToolRunFunc (like the browser
// driver) already split their payload into Observation/Artifacts themselves,
// so this only fires for a tool that reports its full structured payload as
// a JSON object in Observation (a report generator, a scrape-to-JSON tool)
// instead of pre-splitting it; a non-JSON observation is left untouched.
func liftArtifactKeys(result *models.NormalizedToolResult) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(result.Observation), &raw); err != nil {
		return
	}
	for _, key := range artifactKeys {
		if v, ok := raw[key]; ok {
			result.Artifacts[key] = v
		}
	}
}
