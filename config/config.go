// Package config loads verdict.yaml configuration files.
// A configuration tunes the fusion policy, the indicator vocabularies, the
// LLM-backed analyzers, the queue worker and logging without code changes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/verdict"
)

// File names Load looks for when given a directory.
var FileNames = []string{"verdict.yaml", "verdict.yml"}

// Config represents a verdict.yaml configuration file. Every section is
// optional; missing sections and fields take defaults.
type Config struct {
	Policy     *PolicyConfig     `yaml:"policy,omitempty"`
	Vocabulary *VocabularyConfig `yaml:"vocabulary,omitempty"`
	Analyzers  *AnalyzersConfig  `yaml:"analyzers,omitempty"`
	Worker     *WorkerConfig     `yaml:"worker,omitempty"`
	Logging    *LoggingConfig    `yaml:"logging,omitempty"`
}

// AnalyzersConfig configures the LLM-backed analyzers.
type AnalyzersConfig struct {
	// Mode is "per_role" (one completion per view) or "unified" (one
	// completion covering all three views).
	// Default: per_role
	Mode string `yaml:"mode,omitempty"`

	// BaseURL of the Ollama server.
	// Default: http://localhost:11434
	BaseURL string `yaml:"base_url,omitempty"`

	// Model name passed to the server.
	// Default: llama3
	Model string `yaml:"model,omitempty"`

	// Timeout bounds each analyzer call.
	// Format: Go duration string (e.g., "180s", "2m")
	// Default: 180s
	Timeout string `yaml:"timeout,omitempty"`
}

// Analyzer modes.
const (
	ModePerRole = "per_role"
	ModeUnified = "unified"
)

// GetMode returns the analyzer mode or the default value.
func (a *AnalyzersConfig) GetMode() string {
	if a == nil || a.Mode == "" {
		return ModePerRole
	}
	return a.Mode
}

// GetBaseURL returns the server URL or the default value.
func (a *AnalyzersConfig) GetBaseURL() string {
	if a == nil || a.BaseURL == "" {
		return "http://localhost:11434"
	}
	return a.BaseURL
}

// GetModel returns the model name or the default value.
func (a *AnalyzersConfig) GetModel() string {
	if a == nil || a.Model == "" {
		return "llama3"
	}
	return a.Model
}

// GetTimeout parses the timeout string and returns a duration.
// Returns the default value if not set or invalid.
func (a *AnalyzersConfig) GetTimeout() time.Duration {
	return parseDuration(a, func(a *AnalyzersConfig) string { return a.Timeout }, 180*time.Second)
}

// WorkerConfig defines configuration for queue-based execution.
type WorkerConfig struct {
	// RedisURL locates the queue broker.
	// Default: redis://localhost:6379
	RedisURL string `yaml:"redis_url,omitempty"`

	// Queue is the logical queue name (resulting in "verdict:<queue>:queue").
	// Default: default
	Queue string `yaml:"queue,omitempty"`

	// Concurrency is the number of concurrent worker goroutines. Analysis is
	// dominated by LLM latency, so a handful is usually enough.
	// Default: 4
	Concurrency int `yaml:"concurrency,omitempty"`

	// ShutdownTimeout is the time to wait for in-flight jobs on shutdown.
	// Default: 30s
	ShutdownTimeout string `yaml:"shutdown_timeout,omitempty"`

	// HeartbeatInterval is the interval between health heartbeats.
	// Default: 10s
	HeartbeatInterval string `yaml:"heartbeat_interval,omitempty"`

	// HealthPort is the gRPC health server port. 0 picks a free port.
	// Default: 50051
	HealthPort *int `yaml:"health_port,omitempty"`
}

// GetRedisURL returns the broker URL or the default value.
func (w *WorkerConfig) GetRedisURL() string {
	if w == nil || w.RedisURL == "" {
		return "redis://localhost:6379"
	}
	return w.RedisURL
}

// GetQueue returns the queue name or the default value.
func (w *WorkerConfig) GetQueue() string {
	if w == nil || w.Queue == "" {
		return "default"
	}
	return w.Queue
}

// GetConcurrency returns the configured concurrency or the default value.
func (w *WorkerConfig) GetConcurrency() int {
	if w == nil || w.Concurrency <= 0 {
		return 4
	}
	return w.Concurrency
}

// GetShutdownTimeout parses the shutdown timeout string and returns a duration.
// Returns the default value if not set or invalid.
func (w *WorkerConfig) GetShutdownTimeout() time.Duration {
	return parseDuration(w, func(w *WorkerConfig) string { return w.ShutdownTimeout }, 30*time.Second)
}

// GetHeartbeatInterval parses the heartbeat interval string and returns a duration.
// Returns the default value if not set or invalid.
func (w *WorkerConfig) GetHeartbeatInterval() time.Duration {
	return parseDuration(w, func(w *WorkerConfig) string { return w.HeartbeatInterval }, 10*time.Second)
}

// GetHealthPort returns the health server port or the default value.
func (w *WorkerConfig) GetHealthPort() int {
	if w == nil || w.HealthPort == nil {
		return 50051
	}
	return *w.HealthPort
}

// Default returns a configuration with every section present and empty, so
// every getter yields its default.
func Default() *Config {
	return &Config{
		Policy:     &PolicyConfig{},
		Vocabulary: &VocabularyConfig{},
		Analyzers:  &AnalyzersConfig{},
		Worker:     &WorkerConfig{},
		Logging:    &LoggingConfig{},
	}
}

// Load reads, parses and validates a configuration file from the given path.
// If the path is a directory, it looks for verdict.yaml or verdict.yml in it.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		configPath = ""
		for _, name := range FileNames {
			candidate := filepath.Join(path, name)
			if _, err := os.Stat(candidate); err == nil {
				configPath = candidate
				break
			}
		}
		if configPath == "" {
			return nil, fmt.Errorf("no verdict.yaml or verdict.yml found in %s", path)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// Parse decodes and validates YAML configuration. Unknown keys are rejected.
// Empty input yields the default configuration.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, verdict.NewConfigurationError("config.Parse",
			fmt.Errorf("%w: %w", verdict.ErrInvalidConfig, err))
	}
	cfg.fill()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Engine(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Normalizer(); err != nil {
		errs = append(errs, err)
	}

	switch c.Analyzers.GetMode() {
	case ModePerRole, ModeUnified:
	default:
		errs = append(errs, fmt.Errorf("analyzers.mode must be %q or %q, got %q",
			ModePerRole, ModeUnified, c.Analyzers.Mode))
	}
	if c.Analyzers != nil {
		errs = append(errs, checkDuration("analyzers.timeout", c.Analyzers.Timeout))
	}

	if c.Worker != nil {
		if c.Worker.Concurrency < 0 {
			errs = append(errs, fmt.Errorf("worker.concurrency must not be negative, got %d", c.Worker.Concurrency))
		}
		if port := c.Worker.GetHealthPort(); port < 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("worker.health_port out of range: %d", port))
		}
		errs = append(errs,
			checkDuration("worker.shutdown_timeout", c.Worker.ShutdownTimeout),
			checkDuration("worker.heartbeat_interval", c.Worker.HeartbeatInterval))
	}

	if _, err := c.Logging.level(); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.GetFormat() {
	case FormatJSON, FormatText:
	default:
		errs = append(errs, fmt.Errorf("logging.format must be %q or %q, got %q",
			FormatJSON, FormatText, c.Logging.Format))
	}

	if err := errors.Join(errs...); err != nil {
		if errors.Is(err, verdict.ErrInvalidConfig) {
			return verdict.NewConfigurationError("config.Validate", err)
		}
		return verdict.NewConfigurationError("config.Validate",
			fmt.Errorf("%w: %w", verdict.ErrInvalidConfig, err))
	}
	return nil
}

// fill replaces sections left out of the file (or set to null) with empty ones.
func (c *Config) fill() {
	d := Default()
	if c.Policy == nil {
		c.Policy = d.Policy
	}
	if c.Vocabulary == nil {
		c.Vocabulary = d.Vocabulary
	}
	if c.Analyzers == nil {
		c.Analyzers = d.Analyzers
	}
	if c.Worker == nil {
		c.Worker = d.Worker
	}
	if c.Logging == nil {
		c.Logging = d.Logging
	}
}

func checkDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return nil
}

func parseDuration[T any](section *T, get func(*T) string, def time.Duration) time.Duration {
	if section == nil {
		return def
	}
	s := get(section)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
