// Package planner implements the planner (C6): it turns a goal plus page
// context into a validated Workflow by prompting the model caller and
// parsing its (possibly prose-wrapped) JSON response.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sidepanelai/agentcore/internal/modelcaller"
	"github.com/sidepanelai/agentcore/internal/registry"
	"github.com/sidepanelai/agentcore/internal/taxonomy"
	"github.com/sidepanelai/agentcore/pkg/models"
)

// DefaultMaxSteps bounds the number of steps a plan may contain.
const DefaultMaxSteps = 6

// PageContext is the opaque context handed to the planner: a sample of the
// live page plus the tool catalog it may plan against.
type PageContext struct {
	URL                 string
	Title               string
	InteractiveElements []string
	ContentPreview      string
}

// Planner is the C6 planner.
type Planner struct {
	caller   *modelcaller.Caller
	registry *registry.Registry
	model    string
	maxSteps int
}

// Option configures a Planner.
type Option func(*Planner)

// WithModel overrides the model name passed to the model caller.
func WithModel(model string) Option {
	return func(p *Planner) { p.model = model }
}

// WithMaxSteps overrides DefaultMaxSteps.
func WithMaxSteps(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.maxSteps = n
		}
	}
}

// New constructs a Planner.
func New(caller *modelcaller.Caller, reg *registry.Registry, opts ...Option) *Planner {
	p := &Planner{caller: caller, registry: reg, maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// planResponse is the strict JSON shape the model is required to emit.
type planResponse struct {
	Thought string     `json:"thought"`
	Steps   []planStep `json:"steps"`
}

type planStep struct {
	Tool      string         `json:"tool"`
	Params    map[string]any `json:"params"`
	Rationale string         `json:"rationale"`
}

// Plan produces a validated Workflow for goal, using pageCtx to ground the
// prompt. Returns a validation *taxonomy.Error if no extraction strategy
// yields a usable plan.
func (p *Planner) Plan(ctx context.Context, goal string, pageCtx PageContext) (*models.Workflow, error) {
	prompt := p.buildPrompt(goal, pageCtx)

	result := p.caller.Call(ctx, prompt, p.model)
	if !result.OK {
		err := taxonomy.New(taxonomy.CategoryAIAPI, "planner: model call failed")
		if result.Cause != nil {
			err = taxonomy.Wrap(result.Cause, taxonomy.CategoryAIAPI)
		}
		return nil, err
	}

	parsed, ok := p.extractPlan(result.Text)
	if !ok {
		return nil, taxonomy.New(taxonomy.CategoryValidation, "planner: no extraction strategy produced a valid plan")
	}

	wf, err := p.toWorkflow(goal, parsed)
	if err != nil {
		return nil, taxonomy.Wrap(err, taxonomy.CategoryValidation)
	}
	return wf, nil
}

func (p *Planner) buildPrompt(goal string, pageCtx PageContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\n", goal)
	fmt.Fprintf(&b, "Page: %s (%s)\n", pageCtx.Title, pageCtx.URL)
	if len(pageCtx.InteractiveElements) > 0 {
		fmt.Fprintf(&b, "Interactive elements: %s\n", strings.Join(pageCtx.InteractiveElements, ", "))
	}
	if pageCtx.ContentPreview != "" {
		fmt.Fprintf(&b, "Content preview: %s\n", pageCtx.ContentPreview)
	}
	b.WriteString("\nAvailable tools:\n")
	for _, def := range p.registry.List() {
		fmt.Fprintf(&b, "- %s: %s\n", def.ID, def.Description)
	}
	fmt.Fprintf(&b, "\nRespond with strict JSON only: {\"thought\":string,\"steps\":[{\"tool\":string,\"params\":object,\"rationale\":string}]}\n")
	fmt.Fprintf(&b, "Use between 1 and %d steps, each referencing one of the tools listed above.\n", p.maxSteps)
	return b.String()
}

// extractPlan tries each extraction strategy in order, accepting the first
// one that yields valid JSON with a non-empty steps array.
func (p *Planner) extractPlan(text string) (planResponse, bool) {
	for _, strat := range strategies {
		candidate, ok := strat(text)
		if !ok {
			continue
		}
		var parsed planResponse
		if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
			continue
		}
		if len(parsed.Steps) == 0 || len(parsed.Steps) > p.maxSteps {
			continue
		}
		return parsed, true
	}
	return planResponse{}, false
}

func (p *Planner) toWorkflow(goal string, parsed planResponse) (*models.Workflow, error) {
	steps := make([]models.Step, 0, len(parsed.Steps))
	for i, ps := range parsed.Steps {
		if _, ok := p.registry.Get(ps.Tool); !ok {
			return nil, fmt.Errorf("planner: unknown tool %q at step %d", ps.Tool, i)
		}
		step := models.Step{
			ID:   "step_" + strconv.Itoa(i),
			Tool: ps.Tool,
			Args: ps.Params,
		}
		if i > 0 {
			step.Depends = []string{"step_" + strconv.Itoa(i-1)}
		}
		step.Normalize()
		steps = append(steps, step)
	}

	return &models.Workflow{
		Name:        goal,
		Description: parsed.Thought,
		Steps:       steps,
		ErrorHandling: models.ErrorHandling{
			Strategy: models.StrategyFailFast,
		},
	}, nil
}
