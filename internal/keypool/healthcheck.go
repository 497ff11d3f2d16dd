package keypool

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// HealthChecker periodically runs Pool.Validate on a schedule, logging
// validation failures without ever treating them as fatal.
type HealthChecker struct {
	pool     *Pool
	validate Validator
	logger   *slog.Logger
	cron     *cron.Cron
	entryID  cron.EntryID
}

// NewHealthChecker wires a cron job that validates the pool's keys every
// HealthCheckIntervalMs.
func NewHealthChecker(pool *Pool, validate Validator, logger *slog.Logger) *HealthChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthChecker{
		pool:     pool,
		validate: validate,
		logger:   logger,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Start schedules the periodic validation and begins running it in the
// background. Call Stop to halt it.
func (h *HealthChecker) Start() error {
	spec := fmt.Sprintf("@every %s", (HealthCheckIntervalMs * time.Millisecond).String())
	id, err := h.cron.AddFunc(spec, h.runOnce)
	if err != nil {
		return fmt.Errorf("keypool: schedule health check: %w", err)
	}
	h.entryID = id
	h.cron.Start()
	return nil
}

// Stop halts the scheduler; in-flight validation is allowed to finish.
func (h *HealthChecker) Stop() {
	h.cron.Stop()
}

func (h *HealthChecker) runOnce() {
	errs := h.pool.Validate(h.validate)
	for _, err := range errs {
		if err != nil {
			h.logger.Warn("keypool: health check validation failed", "error", err)
		}
	}
}
