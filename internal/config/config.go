// Package config loads the agent execution core's configuration: model
// defaults, key pool entries, per-step defaults, the workflow template
// catalog location, circuit breaker thresholds, and the observability
// block. Values come from a config file (YAML or JSON5) merged with
// environment variable overrides, and can be watched for hot-reload.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sidepanelai/agentcore/internal/keypool"
)

// Config is the top-level configuration for an agentcore process.
type Config struct {
	Model         ModelConfig         `yaml:"model"`
	KeyPool       KeyPoolConfig       `yaml:"keyPool"`
	StepDefaults  StepDefaultsConfig  `yaml:"stepDefaults"`
	Templates     TemplatesConfig     `yaml:"templates"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
	Session       SessionStoreConfig  `yaml:"session"`
	Observability ObservabilityConfig `yaml:"observability"`
	Browser       BrowserConfig       `yaml:"browser"`
}

// ModelConfig configures the model caller (C5).
type ModelConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"baseUrl"`
	// TimeoutMs overrides modelcaller.DefaultTimeout when positive.
	TimeoutMs int `yaml:"timeoutMs"`
}

// KeyPoolEntry is one credential to seed the key pool (C4) with at boot.
type KeyPoolEntry struct {
	Name   string `yaml:"name"`
	Secret string `yaml:"secret"`
}

// KeyPoolConfig seeds the key pool. Entries beyond keypool.MaxKeys are
// rejected by Pool.Add, not silently truncated here.
type KeyPoolConfig struct {
	Entries []KeyPoolEntry `yaml:"entries"`
}

// StepDefaultsConfig mirrors the per-step fields a workflow author may omit;
// the planner (C6) applies these when generating a plan, and Step.Normalize
// applies its own hardcoded defaults for anything a loaded workflow omits.
type StepDefaultsConfig struct {
	TimeoutMs    int `yaml:"timeoutMs"`
	RetryCount   int `yaml:"retryCount"`
	RetryDelayMs int `yaml:"retryDelayMs"`
}

// TemplatesConfig points at the workflow template catalog: a directory of
// YAML/JSON5 workflow definitions `templates list`/`templates run` read from.
type TemplatesConfig struct {
	Dir string `yaml:"dir"`
}

// CircuitBreakerConfig configures the default breaker every circuit.Registry
// entry inherits unless a caller constructs its own circuit.Config.
type CircuitBreakerConfig struct {
	FailureThreshold  int `yaml:"failureThreshold"`
	RecoveryTimeoutMs int `yaml:"recoveryTimeoutMs"`
}

// SessionStoreConfig selects and configures the session store (C8) backend.
type SessionStoreConfig struct {
	// Backend is one of "memory", "sqlite", "s3".
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlitePath"`
	S3Bucket   string `yaml:"s3Bucket"`
	S3Prefix   string `yaml:"s3Prefix"`
	// ClearCompletedCron is a cron/v3 expression scheduling the store's
	// periodic completed-execution sweep; empty disables scheduling.
	ClearCompletedCron string `yaml:"clearCompletedCron"`
}

// BrowserConfig sizes and configures the page driver's browser pool (C6's
// "browser" tool). Headless is left out deliberately: the CLI's --headless
// flag is the one place that decision is made, so it isn't duplicated here.
type BrowserConfig struct {
	MaxInstances   int      `yaml:"maxInstances"`
	TimeoutMs      int      `yaml:"timeoutMs"`
	ViewportWidth  int      `yaml:"viewportWidth"`
	ViewportHeight int      `yaml:"viewportHeight"`
	RemoteURL      string   `yaml:"remoteUrl"`
	UserAgents     []string `yaml:"userAgents"`
}

// ObservabilityConfig configures logging, tracing and metrics.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"logLevel"`
	LogFormat   string `yaml:"logFormat"`
	TraceEndpoint string `yaml:"traceEndpoint"`
	MetricsAddr string `yaml:"metricsAddr"`
}

// Default returns a Config populated with this module's documented
// defaults, the same values the components themselves fall back to when
// constructed with no options.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Name:      "gemini-2.5-flash",
			BaseURL:   "https://generativelanguage.googleapis.com/v1beta",
			TimeoutMs: 60000,
		},
		StepDefaults: StepDefaultsConfig{
			TimeoutMs:    30000,
			RetryCount:   0,
			RetryDelayMs: 1000,
		},
		Templates: TemplatesConfig{
			Dir: "./templates",
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold:  5,
			RecoveryTimeoutMs: 30000,
		},
		Session: SessionStoreConfig{
			Backend: "memory",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
		Browser: BrowserConfig{
			MaxInstances:   5,
			TimeoutMs:      30000,
			ViewportWidth:  1920,
			ViewportHeight: 1080,
		},
	}
}

// Load reads path (if non-empty) via LoadRaw, decodes it onto Default(),
// then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := LoadRaw(path)
		if err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
		if err := decodeInto(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets a small set of environment variables override file
// configuration, matching the teacher's env-over-file precedence.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENTCORE_MODEL_NAME"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("AGENTCORE_MODEL_BASE_URL"); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := os.Getenv("AGENTCORE_SESSION_BACKEND"); v != "" {
		cfg.Session.Backend = v
	}
	if v := os.Getenv("AGENTCORE_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("AGENTCORE_METRICS_ADDR"); v != "" {
		cfg.Observability.MetricsAddr = v
	}
	if v := os.Getenv("AGENTCORE_KEY_SECRET"); v != "" {
		name := os.Getenv("AGENTCORE_KEY_NAME")
		if name == "" {
			name = "env"
		}
		cfg.KeyPool.Entries = append(cfg.KeyPool.Entries, KeyPoolEntry{Name: name, Secret: v})
	}
	if v := os.Getenv("AGENTCORE_CIRCUIT_FAILURE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CircuitBreaker.FailureThreshold = n
		}
	}
}

// ModelTimeout returns Model.TimeoutMs as a time.Duration.
func (c *Config) ModelTimeout() time.Duration {
	if c.Model.TimeoutMs <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Model.TimeoutMs) * time.Millisecond
}

// BrowserTimeout returns Browser.TimeoutMs as a time.Duration.
func (c *Config) BrowserTimeout() time.Duration {
	if c.Browser.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Browser.TimeoutMs) * time.Millisecond
}

// SeedKeyPool adds every configured KeyPoolEntry to pool, stopping at the
// first error (ordinarily ErrPoolFull once keypool.MaxKeys is exceeded).
func (c *Config) SeedKeyPool(pool *keypool.Pool) error {
	for _, entry := range c.KeyPool.Entries {
		if _, err := pool.Add(entry.Secret, entry.Name); err != nil {
			return fmt.Errorf("config: seed key pool entry %q: %w", entry.Name, err)
		}
	}
	return nil
}
