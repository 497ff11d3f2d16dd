package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a centralized interface for the Prometheus counters, gauges,
// and histograms the agent execution core emits: workflow and step
// outcomes, tool executions, model requests, key pool rotation, and the
// session store.
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordStepExecution("navigate_to_page", "success", time.Since(start).Seconds())
type Metrics struct {
	// WorkflowRunCounter counts workflow runs by terminal status.
	// Labels: status (completed|failed|cancelled)
	WorkflowRunCounter *prometheus.CounterVec

	// WorkflowRunDuration measures a workflow run's wall-clock time.
	// Labels: status
	WorkflowRunDuration *prometheus.HistogramVec

	// StepExecutionCounter counts step executions by tool and outcome.
	// Labels: tool, status (success|error|skipped)
	StepExecutionCounter *prometheus.CounterVec

	// StepExecutionDuration measures step execution time in seconds.
	// Labels: tool
	StepExecutionDuration *prometheus.HistogramVec

	// StepRetries counts retry attempts consumed by a step.
	// Labels: tool
	StepRetries *prometheus.CounterVec

	// ActiveExecutions is a gauge tracking currently running workflow
	// executions.
	ActiveExecutions prometheus.Gauge

	// WaveConcurrency observes how many steps ran concurrently in a wave.
	WaveConcurrency prometheus.Histogram

	// ToolRegistryCounter counts registry invocations by tool and status.
	// Labels: tool, status (success|error)
	ToolRegistryCounter *prometheus.CounterVec

	// ModelRequestDuration measures model call latency in seconds.
	// Labels: model
	ModelRequestDuration *prometheus.HistogramVec

	// ModelRequestCounter counts model requests by status.
	// Labels: model, status (success|error)
	ModelRequestCounter *prometheus.CounterVec

	// ModelTokensUsed tracks token consumption by type.
	// Labels: model, type (prompt|completion)
	ModelTokensUsed *prometheus.CounterVec

	// KeyPoolRotations counts key rotations by reason.
	// Labels: reason (exhausted|cooldown|error)
	KeyPoolRotations *prometheus.CounterVec

	// KeyPoolAvailableKeys is a gauge of keys currently not in cooldown.
	KeyPoolAvailableKeys prometheus.Gauge

	// CircuitBreakerState is a gauge per breaker: 0=closed, 1=half-open,
	// 2=open.
	// Labels: name
	CircuitBreakerState *prometheus.GaugeVec

	// CircuitBreakerTrips counts transitions into the open state.
	// Labels: name
	CircuitBreakerTrips *prometheus.CounterVec

	// SessionStoreOperations counts session store calls by operation and
	// status.
	// Labels: operation (save|restore|delete), status (success|error)
	SessionStoreOperations *prometheus.CounterVec

	// ObserverDroppedEvents counts events dropped because the ring buffer
	// or a subscriber's channel was full.
	ObserverDroppedEvents prometheus.Counter
}

// NewMetrics creates and registers every metric with Prometheus's default
// registry. Call once at process startup.
func NewMetrics() *Metrics {
	return &Metrics{
		WorkflowRunCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_workflow_runs_total",
				Help: "Total number of workflow runs by terminal status",
			},
			[]string{"status"},
		),

		WorkflowRunDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_workflow_run_duration_seconds",
				Help:    "Wall-clock duration of a workflow run",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),

		StepExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_step_executions_total",
				Help: "Total number of step executions by tool and outcome",
			},
			[]string{"tool", "status"},
		),

		StepExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_step_execution_duration_seconds",
				Help:    "Duration of one step's tool invocation",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),

		StepRetries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_step_retries_total",
				Help: "Total number of step retry attempts consumed",
			},
			[]string{"tool"},
		),

		ActiveExecutions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentcore_active_executions",
				Help: "Current number of running workflow executions",
			},
		),

		WaveConcurrency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentcore_wave_concurrency",
				Help:    "Number of steps running concurrently within a wave",
				Buckets: []float64{1, 2, 4, 8, 16, 32},
			},
		),

		ToolRegistryCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_tool_registry_invocations_total",
				Help: "Total number of registry tool invocations by tool and status",
			},
			[]string{"tool", "status"},
		),

		ModelRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_model_request_duration_seconds",
				Help:    "Duration of model API calls in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model"},
		),

		ModelRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_model_requests_total",
				Help: "Total number of model requests by model and status",
			},
			[]string{"model", "status"},
		),

		ModelTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_model_tokens_total",
				Help: "Total number of tokens used by model and type",
			},
			[]string{"model", "type"},
		),

		KeyPoolRotations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_key_pool_rotations_total",
				Help: "Total number of API key rotations by reason",
			},
			[]string{"reason"},
		),

		KeyPoolAvailableKeys: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentcore_key_pool_available_keys",
				Help: "Current number of API keys not in cooldown",
			},
		),

		CircuitBreakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agentcore_circuit_breaker_state",
				Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),

		CircuitBreakerTrips: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_circuit_breaker_trips_total",
				Help: "Total number of times a circuit breaker opened",
			},
			[]string{"name"},
		),

		SessionStoreOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_session_store_operations_total",
				Help: "Total number of session store operations by operation and status",
			},
			[]string{"operation", "status"},
		),

		ObserverDroppedEvents: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "agentcore_observer_dropped_events_total",
				Help: "Total number of trace events dropped due to a full buffer or subscriber channel",
			},
		),
	}
}

// RecordWorkflowRun records a workflow run's terminal status and duration.
func (m *Metrics) RecordWorkflowRun(status string, durationSeconds float64) {
	m.WorkflowRunCounter.WithLabelValues(status).Inc()
	m.WorkflowRunDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordStepExecution records one step's tool invocation outcome.
func (m *Metrics) RecordStepExecution(tool, status string, durationSeconds float64) {
	m.StepExecutionCounter.WithLabelValues(tool, status).Inc()
	m.StepExecutionDuration.WithLabelValues(tool).Observe(durationSeconds)
}

// RecordStepRetry increments the retry counter for a tool.
func (m *Metrics) RecordStepRetry(tool string) {
	m.StepRetries.WithLabelValues(tool).Inc()
}

// ExecutionStarted increments the active executions gauge.
func (m *Metrics) ExecutionStarted() {
	m.ActiveExecutions.Inc()
}

// ExecutionEnded decrements the active executions gauge.
func (m *Metrics) ExecutionEnded() {
	m.ActiveExecutions.Dec()
}

// RecordWaveConcurrency observes the size of a scheduled wave.
func (m *Metrics) RecordWaveConcurrency(size int) {
	m.WaveConcurrency.Observe(float64(size))
}

// RecordToolInvocation records a single registry.Run call's outcome.
func (m *Metrics) RecordToolInvocation(tool, status string) {
	m.ToolRegistryCounter.WithLabelValues(tool, status).Inc()
}

// RecordModelRequest records metrics for a model API call.
func (m *Metrics) RecordModelRequest(model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.ModelRequestCounter.WithLabelValues(model, status).Inc()
	m.ModelRequestDuration.WithLabelValues(model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.ModelTokensUsed.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.ModelTokensUsed.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// RecordKeyRotation records a key pool rotation and the number of keys
// remaining out of cooldown.
func (m *Metrics) RecordKeyRotation(reason string, availableKeys int) {
	m.KeyPoolRotations.WithLabelValues(reason).Inc()
	m.KeyPoolAvailableKeys.Set(float64(availableKeys))
}

// SetCircuitBreakerState records a breaker's current state: 0=closed,
// 1=half-open, 2=open.
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	if state == 2 {
		m.CircuitBreakerTrips.WithLabelValues(name).Inc()
	}
}

// RecordSessionStoreOp records a session store Save/Restore/Delete call.
func (m *Metrics) RecordSessionStoreOp(operation, status string) {
	m.SessionStoreOperations.WithLabelValues(operation, status).Inc()
}

// RecordObserverDrop increments the dropped-event counter.
func (m *Metrics) RecordObserverDrop() {
	m.ObserverDroppedEvents.Inc()
}
