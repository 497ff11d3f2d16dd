// Package keypool implements the API key pool (C4): an ordered list of
// credentials with rotation, cooldown, and failure-driven disabling.
package keypool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sidepanelai/agentcore/pkg/models"
)

// Configuration constants, fixed by contract.
const (
	MaxKeys                = 10
	RetryDelayMs           = 1000
	KeyCooldownMs          = 300000
	MaxConsecutiveFailures = 3
	HealthCheckIntervalMs  = 60000
)

// RetryDelay/KeyCooldown as time.Duration conveniences.
const (
	RetryDelay  = RetryDelayMs * time.Millisecond
	KeyCooldown = KeyCooldownMs * time.Millisecond
)

// ErrorKind is the classification reportFailure acts on.
type ErrorKind string

const (
	ErrorAuthentication ErrorKind = "authentication_error"
	ErrorQuotaExceeded  ErrorKind = "quota_exceeded"
	ErrorOther          ErrorKind = "other"
)

var (
	// ErrPoolFull is returned by Add once MaxKeys entries are registered.
	ErrPoolFull = errors.New("keypool: pool is full")
	// ErrDuplicateKey is returned by Add for a secret already present.
	ErrDuplicateKey = errors.New("keypool: duplicate key")
	// ErrNoActiveKey is returned by GetCurrent when no entry is usable.
	ErrNoActiveKey = errors.New("keypool: no active key available")
	// ErrKeyNotFound is returned for an unknown id.
	ErrKeyNotFound = errors.New("keypool: key not found")
)

// Pool is the C4 key pool. All mutation is serialized under mu; reads
// return copies so callers never observe a half-updated entry.
type Pool struct {
	mu           sync.Mutex
	entries      []*models.KeyEntry
	currentIndex int
	logger       *slog.Logger
}

// New creates an empty pool.
func New(logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{logger: logger}
}

// Add registers a new credential. Rejects duplicates (by secret) and
// capacity overflow past MaxKeys.
func (p *Pool) Add(secret, name string) (models.KeyEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.entries) >= MaxKeys {
		return models.KeyEntry{}, ErrPoolFull
	}
	for _, e := range p.entries {
		if e.Secret == secret {
			return models.KeyEntry{}, ErrDuplicateKey
		}
	}

	entry := &models.KeyEntry{
		ID:     uuid.NewString(),
		Secret: secret,
		Name:   name,
		Status: models.KeyActive,
	}
	p.entries = append(p.entries, entry)
	return *entry, nil
}

// GetCurrent returns the first entry at or after currentIndex (wrapping
// around once) whose status is active and whose cooldown has elapsed.
func (p *Pool) GetCurrent() (models.KeyEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.entries)
	if n == 0 {
		return models.KeyEntry{}, ErrNoActiveKey
	}

	now := time.Now()
	for i := 0; i < n; i++ {
		idx := (p.currentIndex + i) % n
		e := p.entries[idx]
		if e.Status == models.KeyActive && (e.CooldownUntil.IsZero() || !e.CooldownUntil.After(now)) {
			return *e, nil
		}
	}
	return models.KeyEntry{}, ErrNoActiveKey
}

// ActiveCount returns how many entries are currently usable by GetCurrent.
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	n := 0
	for _, e := range p.entries {
		if e.Status == models.KeyActive && (e.CooldownUntil.IsZero() || !e.CooldownUntil.After(now)) {
			n++
		}
	}
	return n
}

func (p *Pool) find(id string) (*models.KeyEntry, int, error) {
	for i, e := range p.entries {
		if e.ID == id {
			return e, i, nil
		}
	}
	return nil, -1, ErrKeyNotFound
}

// ReportSuccess clears consecutive failures and stamps LastUsed.
func (p *Pool) ReportSuccess(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, _, err := p.find(id)
	if err != nil {
		return err
	}
	e.ConsecutiveFailures = 0
	e.LastUsed = time.Now()
	return nil
}

// ReportFailure applies the documented failure policy and always advances
// currentIndex so the next GetCurrent call prefers a different key.
func (p *Pool) ReportFailure(id string, kind ErrorKind) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, idx, err := p.find(id)
	if err != nil {
		return err
	}

	switch kind {
	case ErrorAuthentication:
		e.Status = models.KeyDisabled
		p.logger.Warn("keypool: disabling key after authentication failure", "key", e.Masked())
	case ErrorQuotaExceeded:
		e.CooldownUntil = time.Now().Add(KeyCooldown)
		p.logger.Info("keypool: cooling down key after quota error", "key", e.Masked(), "until", e.CooldownUntil)
	default:
		e.ConsecutiveFailures++
		if e.ConsecutiveFailures >= MaxConsecutiveFailures {
			e.Status = models.KeyCooldown
			e.CooldownUntil = time.Now().Add(KeyCooldown)
			p.logger.Warn("keypool: cooling down key after repeated failures", "key", e.Masked())
		}
	}

	if len(p.entries) > 0 {
		p.currentIndex = (idx + 1) % len(p.entries)
	}
	return nil
}

// Reset clears every entry back to active with zeroed counters.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		e.Status = models.KeyActive
		e.ConsecutiveFailures = 0
		e.CooldownUntil = time.Time{}
	}
	p.currentIndex = 0
}

// List returns copies of every entry, in pool order.
func (p *Pool) List() []models.KeyEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.KeyEntry, len(p.entries))
	for i, e := range p.entries {
		out[i] = *e
	}
	return out
}

// Validator performs a minimal call against a credential to confirm it is
// still usable; it returns a non-nil error to indicate rejection.
type Validator func(secret string) error

// Validate attempts a minimal call with each key via validate, updating
// status accordingly, and returns the per-key errors encountered (nil
// entries for keys that validated successfully).
func (p *Pool) Validate(validate Validator) []error {
	p.mu.Lock()
	entries := make([]*models.KeyEntry, len(p.entries))
	copy(entries, p.entries)
	p.mu.Unlock()

	errs := make([]error, len(entries))
	for i, e := range entries {
		if err := validate(e.Secret); err != nil {
			errs[i] = fmt.Errorf("key %s: %w", e.Masked(), err)
			p.ReportFailure(e.ID, ErrorOther)
			continue
		}
		p.ReportSuccess(e.ID)
	}
	return errs
}
