package keypool

import (
	"errors"
	"testing"

	"github.com/sidepanelai/agentcore/pkg/models"
)

func TestAddRejectsDuplicateAndOverflow(t *testing.T) {
	p := New(nil)
	if _, err := p.Add("secret-a", "a"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := p.Add("secret-a", "a2"); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	for i := 1; i < MaxKeys; i++ {
		if _, err := p.Add(string(rune('b'+i)), "n"); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if _, err := p.Add("overflow", "x"); !errors.Is(err, ErrPoolFull) {
		t.Fatalf("expected pool full error, got %v", err)
	}
}

func TestReportFailureRotatesAfterThreshold(t *testing.T) {
	p := New(nil)
	a, _ := p.Add("key-a", "a")
	_, _ = p.Add("key-b", "b")

	for i := 0; i < MaxConsecutiveFailures; i++ {
		if err := p.ReportFailure(a.ID, ErrorOther); err != nil {
			t.Fatalf("reportFailure: %v", err)
		}
	}

	cur, err := p.GetCurrent()
	if err != nil {
		t.Fatalf("getCurrent: %v", err)
	}
	if cur.ID == a.ID {
		t.Fatalf("expected rotation away from key %s after %d failures", a.ID, MaxConsecutiveFailures)
	}
}

func TestReportFailureAuthenticationDisables(t *testing.T) {
	p := New(nil)
	a, _ := p.Add("key-a", "a")
	_ = p.ReportFailure(a.ID, ErrorAuthentication)

	list := p.List()
	if list[0].Status != models.KeyDisabled {
		t.Fatalf("status = %s, want disabled", list[0].Status)
	}
}

func TestReportFailureQuotaCoolsDown(t *testing.T) {
	p := New(nil)
	a, _ := p.Add("key-a", "a")
	_ = p.ReportFailure(a.ID, ErrorQuotaExceeded)

	if _, err := p.GetCurrent(); !errors.Is(err, ErrNoActiveKey) {
		t.Fatalf("expected no active key during cooldown, got %v, err=%v", a, err)
	}
}

func TestGetCurrentEmptyPool(t *testing.T) {
	p := New(nil)
	if _, err := p.GetCurrent(); !errors.Is(err, ErrNoActiveKey) {
		t.Fatalf("expected ErrNoActiveKey, got %v", err)
	}
}

func TestReportSuccessClearsFailures(t *testing.T) {
	p := New(nil)
	a, _ := p.Add("key-a", "a")
	_ = p.ReportFailure(a.ID, ErrorOther)
	_ = p.ReportSuccess(a.ID)

	list := p.List()
	if list[0].ConsecutiveFailures != 0 {
		t.Fatalf("consecutiveFailures = %d, want 0", list[0].ConsecutiveFailures)
	}
}

func TestMaskedNeverLeaksSecret(t *testing.T) {
	e := models.KeyEntry{Secret: "sk-abcdefghijklmnop"}
	masked := e.Masked()
	if masked == e.Secret {
		t.Fatal("masked secret must differ from raw secret")
	}
	if len(masked) >= len(e.Secret) {
		t.Fatal("masked secret should be shorter than the original")
	}
}
