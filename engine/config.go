package engine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ledgerflow/ledgerflow/resilience"
)

// LedgerConfig selects the durable sink for recorded events.
type LedgerConfig struct {
	// Sink is one of "memory", "file", or "sqlite".
	Sink string `yaml:"sink"`
	// Path is the sink destination for file and sqlite sinks.
	Path string `yaml:"path,omitempty"`
}

// DefaultLedgerConfig returns an in-memory ledger configuration.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{Sink: "memory"}
}

// Merge applies non-zero values from source into c.
func (c *LedgerConfig) Merge(source *LedgerConfig) {
	if source.Sink != "" {
		c.Sink = source.Sink
	}
	if source.Path != "" {
		c.Path = source.Path
	}
}

// PolicyConfig is the file representation of a resilience.Policy. Durations
// are strings in time.ParseDuration syntax.
type PolicyConfig struct {
	TTL           string  `yaml:"ttl,omitempty"`
	QPS           float64 `yaml:"qps,omitempty"`
	Burst         int     `yaml:"burst,omitempty"`
	MaxAttempts   int     `yaml:"max_attempts,omitempty"`
	InitialDelay  string  `yaml:"initial_delay,omitempty"`
	BackoffFactor float64 `yaml:"backoff_factor,omitempty"`
}

// Policy converts the file representation into a resilience.Policy, merging
// its non-zero values over the engine defaults.
func (c *PolicyConfig) Policy() (resilience.Policy, error) {
	policy := resilience.DefaultPolicy()

	override := resilience.Policy{
		QPS:           c.QPS,
		Burst:         c.Burst,
		MaxAttempts:   c.MaxAttempts,
		BackoffFactor: c.BackoffFactor,
	}
	if c.TTL != "" {
		ttl, err := time.ParseDuration(c.TTL)
		if err != nil {
			return policy, fmt.Errorf("invalid ttl: %w", err)
		}
		override.TTL = ttl
	}
	if c.InitialDelay != "" {
		delay, err := time.ParseDuration(c.InitialDelay)
		if err != nil {
			return policy, fmt.Errorf("invalid initial_delay: %w", err)
		}
		override.InitialDelay = delay
	}

	policy.Merge(override)
	return policy, nil
}

// Merge applies non-zero values from source into c.
func (c *PolicyConfig) Merge(source *PolicyConfig) {
	if source.TTL != "" {
		c.TTL = source.TTL
	}
	if source.QPS > 0 {
		c.QPS = source.QPS
	}
	if source.Burst > 0 {
		c.Burst = source.Burst
	}
	if source.MaxAttempts > 0 {
		c.MaxAttempts = source.MaxAttempts
	}
	if source.InitialDelay != "" {
		c.InitialDelay = source.InitialDelay
	}
	if source.BackoffFactor > 0 {
		c.BackoffFactor = source.BackoffFactor
	}
}

// Config holds initialization parameters for all engine subsystems.
type Config struct {
	Ledger   LedgerConfig `yaml:"ledger"`
	Policy   PolicyConfig `yaml:"policy"`
	Observer string       `yaml:"observer,omitempty"`
	CacheCap int          `yaml:"cache_cap,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Ledger:   DefaultLedgerConfig(),
		Observer: "slog",
		CacheCap: resilience.DefaultCacheCap,
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Ledger.Merge(&source.Ledger)
	c.Policy.Merge(&source.Policy)

	if source.Observer != "" {
		c.Observer = source.Observer
	}
	if source.CacheCap > 0 {
		c.CacheCap = source.CacheCap
	}
}

// LoadConfig reads a YAML config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
