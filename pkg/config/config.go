package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the coordination engine.
const (
	DefaultSessionTimeout     = 600 * time.Second
	DefaultSweepInterval      = 30 * time.Second
	DefaultMaxEvents          = 10000
	DefaultWebhookTimeout     = 10 * time.Second
	DefaultWebhookMaxAttempts = 3
)

// Config holds the runtime configuration for the event bus.
type Config struct {
	// DBPath is the location of the bbolt database file.
	DBPath string `yaml:"db_path"`

	// SessionTimeout is how long a session may go without a heartbeat
	// before the sweeper removes it.
	SessionTimeout time.Duration `yaml:"session_timeout"`

	// SweepInterval is how often the stale-session sweep runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// MaxEvents bounds the event log; the lowest-id events are trimmed.
	MaxEvents int `yaml:"max_events"`

	// WebhookTimeout is the per-request timeout for outbound deliveries.
	WebhookTimeout time.Duration `yaml:"webhook_timeout"`

	// WebhookMaxAttempts is the total delivery attempts per webhook,
	// including the initial one.
	WebhookMaxAttempts int `yaml:"webhook_max_attempts"`

	// MetricsAddr, when non-empty, enables the prometheus /metrics
	// listener on that address.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration with all documented defaults applied.
func Default() *Config {
	return &Config{
		DBPath:             defaultDBPath(),
		SessionTimeout:     DefaultSessionTimeout,
		SweepInterval:      DefaultSweepInterval,
		MaxEvents:          DefaultMaxEvents,
		WebhookTimeout:     DefaultWebhookTimeout,
		WebhookMaxAttempts: DefaultWebhookMaxAttempts,
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "events.db"
	}
	return filepath.Join(home, ".agent-event-bus", "events.db")
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		var file fileConfig
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		file.apply(cfg)
	}

	cfg.applyEnv()
	return cfg, nil
}

// FromEnv builds the configuration from defaults and environment variables.
func FromEnv() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// fileConfig mirrors Config with durations expressed in seconds, matching the
// environment variable units.
type fileConfig struct {
	DBPath             string `yaml:"db_path"`
	SessionTimeout     *int   `yaml:"session_timeout"`
	SweepInterval      *int   `yaml:"sweep_interval"`
	MaxEvents          *int   `yaml:"max_events"`
	WebhookTimeout     *int   `yaml:"webhook_timeout"`
	WebhookMaxAttempts *int   `yaml:"webhook_max_attempts"`
	MetricsAddr        string `yaml:"metrics_addr"`
}

func (f *fileConfig) apply(cfg *Config) {
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	if f.SessionTimeout != nil {
		cfg.SessionTimeout = time.Duration(*f.SessionTimeout) * time.Second
	}
	if f.SweepInterval != nil {
		cfg.SweepInterval = time.Duration(*f.SweepInterval) * time.Second
	}
	if f.MaxEvents != nil {
		cfg.MaxEvents = *f.MaxEvents
	}
	if f.WebhookTimeout != nil {
		cfg.WebhookTimeout = time.Duration(*f.WebhookTimeout) * time.Second
	}
	if f.WebhookMaxAttempts != nil {
		cfg.WebhookMaxAttempts = *f.WebhookMaxAttempts
	}
	if f.MetricsAddr != "" {
		cfg.MetricsAddr = f.MetricsAddr
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("EVENT_BUS_DB"); v != "" {
		c.DBPath = v
	}
	if v, ok := envSeconds("SESSION_TIMEOUT"); ok {
		c.SessionTimeout = v
	}
	if v, ok := envSeconds("SWEEP_INTERVAL"); ok {
		c.SweepInterval = v
	}
	if v, ok := envInt("MAX_EVENTS"); ok {
		c.MaxEvents = v
	}
	if v, ok := envSeconds("WEBHOOK_TIMEOUT"); ok {
		c.WebhookTimeout = v
	}
	if v, ok := envInt("WEBHOOK_MAX_ATTEMPTS"); ok {
		c.WebhookMaxAttempts = v
	}
	if v := os.Getenv("EVENT_BUS_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func envSeconds(key string) (time.Duration, bool) {
	n, ok := envInt(key)
	if !ok {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}
