package modelcaller

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/genai"

	"github.com/sidepanelai/agentcore/internal/keypool"
)

// fakeModels satisfies ModelsAPI without any network call, the way the
// session store tests fake their backing services instead of hitting them.
type fakeModels struct {
	text string
	err  error
}

func (f fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}}},
		},
	}, nil
}

// sequencedFactory returns one ModelsAPI per call, in order, so a test can
// script different behavior per rotation attempt.
func sequencedFactory(clients ...ModelsAPI) ClientFactory {
	i := 0
	return func(ctx context.Context, secret, baseURL string) (ModelsAPI, error) {
		if i >= len(clients) {
			return clients[len(clients)-1], nil
		}
		c := clients[i]
		i++
		return c, nil
	}
}

func TestCallSuccessReportsSuccess(t *testing.T) {
	pool := keypool.New(nil)
	entry, _ := pool.Add("sk-test", "test")

	caller := New(pool)
	caller.newClient = sequencedFactory(fakeModels{text: "hello"})

	result := caller.Call(context.Background(), "hi", "")
	if !result.OK || result.Text != "hello" {
		t.Fatalf("result = %+v", result)
	}
	list := pool.List()
	if list[0].ID != entry.ID || list[0].ConsecutiveFailures != 0 {
		t.Fatalf("expected success recorded: %+v", list[0])
	}
}

func TestCallAuthErrorRotatesKeys(t *testing.T) {
	pool := keypool.New(nil)
	first, _ := pool.Add("sk-a", "a")
	_, _ = pool.Add("sk-b", "b")

	caller := New(pool)
	caller.newClient = sequencedFactory(
		fakeModels{err: &genai.APIError{Code: http.StatusUnauthorized, Message: "invalid api key"}},
		fakeModels{text: "ok"},
	)

	result := caller.Call(context.Background(), "hi", "")
	if !result.OK {
		t.Fatalf("expected rotation to succeed with second key, got %+v", result)
	}

	list := pool.List()
	for _, e := range list {
		if e.ID == first.ID && e.Status != "disabled" {
			t.Fatalf("expected first key disabled after auth failure: %+v", e)
		}
	}
}

func TestCallClientFactoryErrorClassifiesAndStops(t *testing.T) {
	pool := keypool.New(nil)
	_, _ = pool.Add("sk-a", "a")

	caller := New(pool)
	caller.newClient = func(ctx context.Context, secret, baseURL string) (ModelsAPI, error) {
		return nil, fmt.Errorf("transport: dial failed")
	}

	result := caller.Call(context.Background(), "hi", "")
	if result.OK || result.ErrorType != ErrorModelError {
		t.Fatalf("expected model_error on client build failure, got %+v", result)
	}
}

func TestClassifyStatusCodes(t *testing.T) {
	cases := map[int]ErrorType{
		http.StatusUnauthorized:       ErrorAuthentication,
		http.StatusForbidden:          ErrorAuthentication,
		http.StatusTooManyRequests:    ErrorQuotaExceeded,
		http.StatusPaymentRequired:    ErrorQuotaExceeded,
		http.StatusNotFound:           ErrorModelError,
		http.StatusInternalServerError: ErrorModelError,
	}
	for status, want := range cases {
		if got := classify(status, ""); got != want {
			t.Errorf("classify(%d) = %s, want %s", status, got, want)
		}
	}
}

func TestClassifyTextMatching(t *testing.T) {
	if classify(0, "rate limit exceeded") != ErrorQuotaExceeded {
		t.Fatal("expected quota classification from text")
	}
	if classify(0, "permission denied") != ErrorAuthentication {
		t.Fatal("expected auth classification from text")
	}
}

func TestClassifyErrGenaiAPIError(t *testing.T) {
	err := &genai.APIError{Code: http.StatusTooManyRequests, Message: "RESOURCE_EXHAUSTED"}
	if got := classifyErr(err); got != ErrorQuotaExceeded {
		t.Fatalf("classifyErr(%v) = %s, want quota_exceeded", err, got)
	}
}
