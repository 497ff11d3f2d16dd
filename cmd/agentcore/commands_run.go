package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/sidepanelai/agentcore/internal/circuit"
	"github.com/sidepanelai/agentcore/internal/config"
	"github.com/sidepanelai/agentcore/internal/engine"
	"github.com/sidepanelai/agentcore/internal/health"
	"github.com/sidepanelai/agentcore/internal/keypool"
	"github.com/sidepanelai/agentcore/internal/modelcaller"
	"github.com/sidepanelai/agentcore/internal/observability"
	"github.com/sidepanelai/agentcore/internal/observer"
	"github.com/sidepanelai/agentcore/internal/planner"
	"github.com/sidepanelai/agentcore/internal/registry"
	"github.com/sidepanelai/agentcore/internal/session"
	"github.com/sidepanelai/agentcore/internal/taxonomy"
	"github.com/sidepanelai/agentcore/internal/tools/browser"
	"github.com/sidepanelai/agentcore/pkg/models"
)

func buildRunCmd() *cobra.Command {
	var goal string
	var headless bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Plan a workflow for a goal and execute it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if goal == "" {
				return fmt.Errorf("--goal is required")
			}
			return runGoal(cmd.Context(), goal, headless)
		},
	}
	cmd.Flags().StringVar(&goal, "goal", "", "natural-language goal for the planner")
	cmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	return cmd
}

// deps bundles every wired collaborator so the run command and the health
// surface can share one construction path.
type deps struct {
	cfg      *config.Config
	logger   *observability.Logger
	tracer   *observability.Tracer
	metrics  *observability.Metrics
	reg      *registry.Registry
	keys     *keypool.Pool
	caller   *modelcaller.Caller
	planner  *planner.Planner
	obs      *observer.Observer
	engine   *engine.Engine
	store    session.Store
	breakers *circuit.Registry
	pool     *browser.Pool
}

func wire(ctx context.Context, headless bool) (*deps, func(), error) {
	cfg, err := loadConfigOrDefault()
	if err != nil {
		return nil, nil, err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})
	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName: "agentcore",
		Endpoint:    cfg.Observability.TraceEndpoint,
	})
	metrics := observability.NewMetrics()

	reg := registry.New()

	pool, err := browser.NewPool(browser.PoolConfig{
		Headless:       headless,
		MaxInstances:   cfg.Browser.MaxInstances,
		Timeout:        cfg.BrowserTimeout(),
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		RemoteURL:      cfg.Browser.RemoteURL,
		UserAgents:     cfg.Browser.UserAgents,
	})
	if err != nil {
		shutdownTracer(ctx)
		return nil, nil, fmt.Errorf("wire: browser pool: %w", err)
	}
	driver := browser.NewDriver(pool)
	if err := reg.Register(browser.ToolDefinition(driver)); err != nil {
		_ = pool.Close()
		shutdownTracer(ctx)
		return nil, nil, fmt.Errorf("wire: register browser tool: %w", err)
	}

	keys := keypool.New(nil)
	if err := cfg.SeedKeyPool(keys); err != nil {
		_ = pool.Close()
		shutdownTracer(ctx)
		return nil, nil, err
	}

	caller := modelcaller.New(keys, modelcaller.WithBaseURL(cfg.Model.BaseURL))
	plan := planner.New(caller, reg, planner.WithModel(cfg.Model.Name))

	healthChecker := keypool.NewHealthChecker(keys, validateKeySecret, nil)
	if err := healthChecker.Start(); err != nil {
		logger.Warn(ctx, "key pool health checker not started", "error", err)
	}

	obs := observer.New(observer.DefaultCapacity)
	eng := engine.New(reg, obs)

	store, err := buildSessionStore(ctx, cfg)
	if err != nil {
		_ = pool.Close()
		shutdownTracer(ctx)
		return nil, nil, err
	}

	breakers := circuit.NewRegistry(circuit.Config{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		RecoveryTimeout:  time.Duration(cfg.CircuitBreaker.RecoveryTimeoutMs) * time.Millisecond,
	})

	cleanup := func() {
		healthChecker.Stop()
		_ = pool.Close()
		_ = shutdownTracer(ctx)
	}

	return &deps{
		cfg: cfg, logger: logger, tracer: tracer, metrics: metrics,
		reg: reg, keys: keys, caller: caller, planner: plan, obs: obs,
		engine: eng, store: store, breakers: breakers, pool: pool,
	}, cleanup, nil
}

// validateKeySecret rejects an obviously malformed key without making a
// network call; the model caller's own classify() is what actually detects
// an unauthorized secret once it's used against the live endpoint.
func validateKeySecret(secret string) error {
	if len(secret) < 8 {
		return fmt.Errorf("key pool: secret is too short to be valid")
	}
	return nil
}

func loadConfigOrDefault() (*config.Config, error) {
	path := resolveConfigPath()
	if _, err := os.Stat(path); err != nil {
		return config.Default(), nil
	}
	return config.Load(path)
}

func buildSessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case "sqlite":
		return session.NewSQLiteStore(cfg.Session.SQLitePath, session.DefaultSQLiteConfig())
	case "s3":
		return session.NewS3Store(ctx, cfg.Session.S3Bucket, cfg.Session.S3Prefix)
	default:
		return session.NewMemoryStore(), nil
	}
}

func runGoal(ctx context.Context, goal string, headless bool) error {
	d, cleanup, err := wire(ctx, headless)
	if err != nil {
		return err
	}
	defer cleanup()

	if sched := d.cfg.Session.ClearCompletedCron; sched != "" {
		startCompletedSweep(d.engine, d.logger, sched)
	}
	if addr := d.cfg.Observability.MetricsAddr; addr != "" {
		startOperabilityServer(addr, d)
	}

	ctx, span := d.tracer.TraceWorkflowRun(ctx, "cli", goal)
	defer span.End()

	wf, err := d.planner.Plan(ctx, goal, planner.PageContext{})
	if err != nil {
		d.metrics.RecordWorkflowRun("plan_failed", 0)
		return fmt.Errorf("run: plan: %w", err)
	}

	execID := fmt.Sprintf("exec-%d", time.Now().UnixNano())
	exec := d.engine.Start(execID, wf)

	start := time.Now()
	runErr := d.engine.Run(ctx, exec)
	d.metrics.RecordWorkflowRun(string(exec.GetStatus()), time.Since(start).Seconds())

	snap := session.FromExecution(exec, nil, d.obs.ListRecent(observer.DefaultListLimit))
	if err := d.store.Save(ctx, snap); err != nil {
		d.logger.Warn(ctx, "session save failed", "execution_id", execID, "error", err)
	}

	out, _ := json.MarshalIndent(struct {
		ExecutionID string                   `json:"executionId"`
		Status      models.ExecutionStatus   `json:"status"`
		Completed   []string                 `json:"completedSteps"`
		Failed      []string                 `json:"failedSteps"`
		Errors      []models.ExecutionErrorEntry `json:"errors"`
	}{
		ExecutionID: execID,
		Status:      exec.GetStatus(),
		Completed:   exec.CompletedSteps,
		Failed:      exec.FailedSteps,
		Errors:      exec.Errors,
	}, "", "  ")
	fmt.Println(string(out))

	if runErr != nil {
		var taxErr *taxonomy.Error
		if errors.As(runErr, &taxErr) {
			return fmt.Errorf("run: %s: %w", taxErr.Category, runErr)
		}
		return fmt.Errorf("run: %w", runErr)
	}
	return nil
}

// startOperabilityServer binds /healthz and /metrics on addr. It is best
// effort: a bind failure is logged, not fatal, since neither endpoint is
// required for run to complete.
func startOperabilityServer(addr string, d *deps) {
	mux := http.NewServeMux()
	mux.Handle("/healthz", health.Handler(d.reg, d.keys, d.breakers, d.pool))
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.logger.Warn(context.Background(), "operability server stopped", "addr", addr, "error", err)
		}
	}()
}

// startCompletedSweep schedules the session store's completed-execution
// cleanup (engine.ClearCompleted) on a cron expression, matching the
// teacher's own use of cron/v3 for periodic maintenance jobs.
func startCompletedSweep(eng *engine.Engine, logger *observability.Logger, expr string) *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc(expr, func() {
		n := eng.ClearCompleted()
		logger.Info(context.Background(), "cleared completed executions", "count", n)
	})
	if err != nil {
		logger.Warn(context.Background(), "invalid clearCompleted cron expression", "expr", expr, "error", err)
		return nil
	}
	c.Start()
	return c
}
