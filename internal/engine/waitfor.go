package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sidepanelai/agentcore/pkg/models"
)

// DefaultBrowserTool is the registry id the engine asks for wait-for
// predicates (element state, network idle, navigation, custom expression
// evaluation), all of which are capabilities of the page driver tool rather
// than distinct registered tools.
const DefaultBrowserTool = "browser"

// waitForCondition polls cond via the browser tool until its predicate
// succeeds or cond.Timeout elapses. Polling errors are swallowed and
// retried; only a timeout is returned as an error.
func (e *Engine) waitForCondition(ctx context.Context, exec *models.Execution, cond *models.WaitCondition) error {
	deadline := time.Now().Add(cond.TimeoutDuration())
	interval := cond.IntervalDuration()

	for {
		if exec.Cancelled() {
			return nil
		}
		if e.checkWaitCondition(ctx, cond) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("Condition timeout: %s after %dms", cond.Type, cond.TimeoutDuration().Milliseconds())
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Engine) checkWaitCondition(ctx context.Context, cond *models.WaitCondition) bool {
	switch cond.Type {
	case models.WaitElement:
		res := e.registry.Run(ctx, e.browserTool, map[string]any{
			"action":   "checkElement",
			"selector": cond.Selector,
			"state":    cond.State,
			"text":     cond.Text,
		})
		return res.OK && truthyArtifact(res, "conditionMet")

	case models.WaitNetworkIdle:
		// The predicate is entirely owned by the browser driver's request
		// tracking; the engine only asks and treats the answer opaquely.
		res := e.registry.Run(ctx, e.browserTool, map[string]any{"action": "networkIdle"})
		return res.OK && truthyArtifact(res, "conditionMet")

	case models.WaitNavigation:
		res := e.registry.Run(ctx, e.browserTool, map[string]any{"action": "getActiveTab"})
		if !res.OK {
			return false
		}
		if cond.URL == "" {
			return true
		}
		url, _ := res.Artifacts["url"].(string)
		return strings.Contains(url, cond.URL)

	case models.WaitCustom:
		res := e.registry.Run(ctx, e.browserTool, map[string]any{
			"action":     "evalExpression",
			"expression": cond.Expression,
		})
		return res.OK && truthyArtifact(res, "conditionMet")

	default:
		return false
	}
}

func truthyArtifact(res models.NormalizedToolResult, key string) bool {
	if res.Artifacts == nil {
		return false
	}
	b, _ := res.Artifacts[key].(bool)
	return b
}
