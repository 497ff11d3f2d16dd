package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/sidepanelai/agentcore/pkg/models"
)

func echoTool(id string) *models.ToolDefinition {
	return &models.ToolDefinition{
		ID: id,
		InputSchema: &models.InputSchema{
			Type:     models.SchemaObject,
			Required: []string{"text"},
			Properties: map[string]*models.InputSchema{
				"text": {Type: models.SchemaString, MaxLength: 10},
			},
		},
		RetryPolicy: models.RetryPolicy{MaxAttempts: 1},
		Run: func(ctx context.Context, input map[string]any) (models.NormalizedToolResult, error) {
			return models.NormalizedToolResult{OK: true, Observation: input["text"].(string)}, nil
		},
	}
}

func TestRegisterReplacesByID(t *testing.T) {
	r := New()
	_ = r.Register(echoTool("echo"))
	calls := 0
	replacement := echoTool("echo")
	replacement.Run = func(ctx context.Context, input map[string]any) (models.NormalizedToolResult, error) {
		calls++
		return models.NormalizedToolResult{OK: true, Observation: "v2"}, nil
	}
	_ = r.Register(replacement)

	result := r.Run(context.Background(), "echo", map[string]any{"text": "hi"})
	if result.Observation != "v2" || calls != 1 {
		t.Fatalf("expected replacement to run, got %+v calls=%d", result, calls)
	}
}

func TestRunUnknownTool(t *testing.T) {
	r := New()
	result := r.Run(context.Background(), "nope", nil)
	if result.OK {
		t.Fatal("expected failure for unknown tool")
	}
	if result.Observation != "ERROR" {
		t.Fatalf("observation = %q", result.Observation)
	}
}

func TestRunValidationFailure(t *testing.T) {
	r := New()
	_ = r.Register(echoTool("echo"))
	result := r.Run(context.Background(), "echo", map[string]any{})
	if result.OK {
		t.Fatal("expected validation failure for missing required field")
	}
}

func TestRunMaxLengthViolation(t *testing.T) {
	r := New()
	_ = r.Register(echoTool("echo"))
	result := r.Run(context.Background(), "echo", map[string]any{"text": "way too long for the schema"})
	if result.OK {
		t.Fatal("expected maxLength violation to fail")
	}
}

func TestRunRetriesUntilSuccess(t *testing.T) {
	r := New()
	attempts := 0
	def := &models.ToolDefinition{
		ID:          "flaky",
		InputSchema: &models.InputSchema{Type: models.SchemaObject},
		RetryPolicy: models.RetryPolicy{MaxAttempts: 3, BackoffMs: 1},
		Run: func(ctx context.Context, input map[string]any) (models.NormalizedToolResult, error) {
			attempts++
			if attempts < 3 {
				return models.NormalizedToolResult{}, errors.New("transient")
			}
			return models.NormalizedToolResult{OK: true}, nil
		},
	}
	_ = r.Register(def)
	result := r.Run(context.Background(), "flaky", nil)
	if !result.OK || attempts != 3 {
		t.Fatalf("result=%+v attempts=%d", result, attempts)
	}
}

func TestRunPreconditionShortCircuits(t *testing.T) {
	r := New()
	called := false
	def := &models.ToolDefinition{
		ID:          "guarded",
		InputSchema: &models.InputSchema{Type: models.SchemaObject},
		RetryPolicy: models.RetryPolicy{MaxAttempts: 1},
		Preconditions: func(ctx context.Context, input map[string]any) *models.PreconditionResult {
			return &models.PreconditionResult{OK: false, Observation: "not ready"}
		},
		Run: func(ctx context.Context, input map[string]any) (models.NormalizedToolResult, error) {
			called = true
			return models.NormalizedToolResult{OK: true}, nil
		},
	}
	_ = r.Register(def)
	result := r.Run(context.Background(), "guarded", nil)
	if called {
		t.Fatal("run body should not execute when preconditions fail")
	}
	if result.OK || result.Observation != "not ready" {
		t.Fatalf("result = %+v", result)
	}
}

func TestRunLiftsArtifactKeysFromJSONObservation(t *testing.T) {
	r := New()
	def := &models.ToolDefinition{
		ID:          "reporter",
		InputSchema: &models.InputSchema{Type: models.SchemaObject},
		RetryPolicy: models.RetryPolicy{MaxAttempts: 1},
		Run: func(ctx context.Context, input map[string]any) (models.NormalizedToolResult, error) {
			return models.NormalizedToolResult{
				OK:          true,
				Observation: `{"summary":"done","report":{"pages":3},"tabs":["a","b"]}`,
			}, nil
		},
	}
	_ = r.Register(def)
	result := r.Run(context.Background(), "reporter", nil)
	if result.Artifacts["report"] == nil || result.Artifacts["tabs"] == nil {
		t.Fatalf("expected report and tabs lifted into artifacts, got %+v", result.Artifacts)
	}
}

func TestRunPlainTextObservationLeavesArtifactsEmpty(t *testing.T) {
	r := New()
	_ = r.Register(echoTool("echo"))
	result := r.Run(context.Background(), "echo", map[string]any{"text": "hi there"})
	if result.Artifacts != nil {
		t.Fatalf("expected no artifacts for plain-text observation, got %+v", result.Artifacts)
	}
}

func TestRunPanicIsNormalized(t *testing.T) {
	r := New()
	def := &models.ToolDefinition{
		ID:          "panicky",
		InputSchema: &models.InputSchema{Type: models.SchemaObject},
		RetryPolicy: models.RetryPolicy{MaxAttempts: 1},
		Run: func(ctx context.Context, input map[string]any) (models.NormalizedToolResult, error) {
			panic("boom")
		},
	}
	_ = r.Register(def)
	result := r.Run(context.Background(), "panicky", nil)
	if result.OK {
		t.Fatal("expected panic to be normalized as a failure")
	}
}
