// Package modelcaller implements the model caller (C5): it wraps the
// Gemini generate-text endpoint through the official google.golang.org/genai
// SDK, classifies errors into the documented taxonomy, and drives key
// rotation through the key pool.
package modelcaller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"google.golang.org/genai"

	"github.com/sidepanelai/agentcore/internal/keypool"
)

// DefaultModel is used when the caller is not given an explicit model name.
const DefaultModel = "gemini-2.5-flash"

// DefaultBaseURL is the generate-text endpoint's host, overridable for
// testing or an alternate deployment (e.g. Vertex AI).
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultTimeout bounds every call this caller makes.
const DefaultTimeout = 60 * time.Second

// ErrorType is the closed set of ways a call can fail (§4.5).
type ErrorType string

const (
	ErrorAuthentication ErrorType = "authentication_error"
	ErrorQuotaExceeded  ErrorType = "quota_exceeded"
	ErrorModelError     ErrorType = "model_error"
)

// Result is the outcome of a Call.
type Result struct {
	OK        bool
	Text      string
	ErrorType ErrorType
	Cause     error
}

var (
	authPattern     = regexp.MustCompile(`(?i)unauthenticated|permission_denied|permission denied|invalid api key|\b401\b|\b403\b`)
	quotaPattern    = regexp.MustCompile(`(?i)resource_exhausted|rate limit|quota|too many requests|billing|\b429\b`)
	notFoundPattern = regexp.MustCompile(`(?i)not_found|is not found|\b404\b`)
)

// ModelsAPI is the narrow surface of *genai.Models this package depends on.
// Tests (in this package and in internal/planner) satisfy it with a fake
// instead of standing up a real genai.Client, the same way the session
// store tests fake sqlmock/S3 rather than hitting live services.
type ModelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ClientFactory builds the ModelsAPI used for a single attempt, scoped to
// one key's secret. Rotation constructs a fresh client per attempt because
// genai.Client binds its API key at construction time.
type ClientFactory func(ctx context.Context, secret, baseURL string) (ModelsAPI, error)

func defaultClientFactory(ctx context.Context, secret, baseURL string) (ModelsAPI, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      secret,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

// Caller is the C5 model caller.
type Caller struct {
	pool      *keypool.Pool
	newClient ClientFactory
	baseURL   string
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Caller via functional options.
type Option func(*Caller)

// WithClientFactory overrides how Caller builds the genai models client for
// each attempt, for tests that fake ModelsAPI instead of calling the live
// Gemini API.
func WithClientFactory(factory ClientFactory) Option {
	return func(c *Caller) { c.newClient = factory }
}

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(url string) Option {
	return func(c *Caller) { c.baseURL = url }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Caller) { c.timeout = d }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Caller) { c.logger = logger }
}

// New constructs a Caller backed by pool.
func New(pool *keypool.Pool, opts ...Option) *Caller {
	c := &Caller{
		pool:      pool,
		newClient: defaultClientFactory,
		baseURL:   DefaultBaseURL,
		timeout:   DefaultTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call invokes the generate-text endpoint for prompt. On authentication or
// quota errors it reports the failing key to the pool and retries with the
// next key, up to the number of currently active keys; any other error
// type is returned after the first attempt.
func (c *Caller) Call(ctx context.Context, prompt string, model string) Result {
	if model == "" {
		model = DefaultModel
	}

	maxAttempts := c.pool.ActiveCount()
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var last Result
	for attempt := 0; attempt < maxAttempts; attempt++ {
		key, err := c.pool.GetCurrent()
		if err != nil {
			return Result{OK: false, ErrorType: ErrorAuthentication, Cause: err}
		}

		result := c.callOnce(ctx, key.Secret, model, prompt)
		if result.OK {
			_ = c.pool.ReportSuccess(key.ID)
			return result
		}

		last = result
		switch result.ErrorType {
		case ErrorAuthentication:
			_ = c.pool.ReportFailure(key.ID, keypool.ErrorAuthentication)
			continue
		case ErrorQuotaExceeded:
			_ = c.pool.ReportFailure(key.ID, keypool.ErrorQuotaExceeded)
			continue
		default:
			return result
		}
	}
	return last
}

func (c *Caller) callOnce(ctx context.Context, secret, model, prompt string) Result {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client, err := c.newClient(callCtx, secret, c.baseURL)
	if err != nil {
		return Result{OK: false, ErrorType: classifyErr(err), Cause: fmt.Errorf("model caller: build client: %w", err)}
	}

	contents := []*genai.Content{
		{Role: genai.RoleUser, Parts: []*genai.Part{{Text: prompt}}},
	}

	resp, err := client.GenerateContent(callCtx, model, contents, nil)
	if err != nil {
		return Result{OK: false, ErrorType: classifyErr(err), Cause: fmt.Errorf("model caller: %w", err)}
	}

	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p != nil && p.Text != "" {
				return Result{OK: true, Text: p.Text}
			}
		}
	}
	return Result{OK: false, ErrorType: ErrorModelError, Cause: fmt.Errorf("model caller: empty response")}
}

// classifyErr maps an error returned by the genai client to an ErrorType.
// genai.APIError carries the REST status code for a non-2xx response; any
// other error (transport failure, context deadline) falls back to text
// matching against its message, the same patterns classify used against the
// hand-rolled response body before the genai SDK was wired in.
func classifyErr(err error) ErrorType {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return classify(apiErr.Code, apiErr.Message)
	}
	return classify(0, err.Error())
}

// classify maps an HTTP status and/or response text to an ErrorType per
// the documented table in §4.5.
func classify(status int, message string) ErrorType {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrorAuthentication
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return ErrorQuotaExceeded
	case http.StatusNotFound:
		return ErrorModelError
	}
	switch {
	case authPattern.MatchString(message):
		return ErrorAuthentication
	case quotaPattern.MatchString(message):
		return ErrorQuotaExceeded
	case notFoundPattern.MatchString(message):
		return ErrorModelError
	default:
		return ErrorModelError
	}
}
