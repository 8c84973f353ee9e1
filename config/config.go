/*
Package config loads and validates the service configuration.

PURPOSE:
  One YAML file describes the whole deployment: HTTP listener, storage
  backend (sqlite for single-node, postgres for multi-node), penalty
  policy, sweep schedule, and the optional alert webhook.

VALIDATION:
  Load() rejects configurations that would misbehave at runtime
  (unknown store driver, hours outside 0-23, non-positive sweep
  interval) rather than letting the scheduler discover them.
*/
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML configuration file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Policy    PolicyConfig    `yaml:"policy"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// StoreConfig selects and configures the storage backend.
type StoreConfig struct {
	// Driver is one of "memory", "sqlite", "postgres".
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// DSN returns the pgx connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Name, p.SSLMode)
}

// PolicyConfig carries the penalization policy knobs.
type PolicyConfig struct {
	// PenaltyFloorHours is what CurrentHours is forced to while a
	// penalization is active.
	PenaltyFloorHours int `yaml:"penalty_floor_hours"`
	// ExpiringDays is the horizon for the expiring-soon report.
	ExpiringDays int `yaml:"expiring_days"`
}

// SchedulerConfig drives the sweep scheduler. Hours are local to the
// scheduler's clock (UTC in production).
type SchedulerConfig struct {
	CheckInterval    time.Duration `yaml:"-"`
	CheckIntervalRaw string        `yaml:"check_interval"`

	// The raw hour fields are pointers so an explicit 0 (midnight) is
	// distinguishable from "not set"; the plain fields hold the
	// normalized values the rest of the code reads.

	// ReportHour is when the daily fleet report goes out.
	ReportHour    int  `yaml:"-"`
	ReportHourRaw *int `yaml:"report_hour"`
	// PenalizationHour is when the activation and expiry sweeps run.
	PenalizationHour    int  `yaml:"-"`
	PenalizationHourRaw *int `yaml:"penalization_hour"`
	// CleanupHour is when approved-leave employees are removed.
	CleanupHour    int  `yaml:"-"`
	CleanupHourRaw *int `yaml:"cleanup_hour"`
}

// AlertsConfig configures the best-effort webhook channel. An empty URL
// disables alerts.
type AlertsConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

type LoggingConfig struct {
	// Level is a zerolog level name; empty means "info".
	Level string `yaml:"level"`
	// Pretty switches to the human console writer.
	Pretty bool `yaml:"pretty"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given: an
// in-memory store listening on :8080, sweeps at 09:00.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Policy.ExpiringDays == 0 {
		c.Policy.ExpiringDays = 7
	}
	if c.Scheduler.CheckInterval == 0 {
		c.Scheduler.CheckInterval = time.Minute
	}
	c.Scheduler.ReportHour = hourOr(c.Scheduler.ReportHourRaw, 9)
	c.Scheduler.PenalizationHour = hourOr(c.Scheduler.PenalizationHourRaw, 9)
	c.Scheduler.CleanupHour = hourOr(c.Scheduler.CleanupHourRaw, 9)
	if c.Alerts.Timeout == 0 {
		c.Alerts.Timeout = 10 * time.Second
	}
}

func (c *Config) validateAndNormalize() error {
	interval, err := parseDurationAllowEmpty(c.Scheduler.CheckIntervalRaw)
	if err != nil {
		return fmt.Errorf("config: scheduler.check_interval: %w", err)
	}
	c.Scheduler.CheckInterval = interval

	timeout, err := parseDurationAllowEmpty(c.Alerts.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("config: alerts.timeout: %w", err)
	}
	c.Alerts.Timeout = timeout

	c.applyDefaults()

	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("config: store.sqlite.path must be set for the sqlite driver")
		}
	case "postgres":
		pg := &c.Store.Postgres
		if pg.Host == "" || pg.Port == 0 || pg.User == "" || pg.Name == "" {
			return fmt.Errorf("config: store.postgres host, port, user, and name must be set")
		}
		if pg.SSLMode == "" {
			pg.SSLMode = "disable"
		}
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}

	if c.Policy.PenaltyFloorHours < 0 {
		return fmt.Errorf("config: policy.penalty_floor_hours must not be negative")
	}
	if c.Policy.ExpiringDays < 1 {
		return fmt.Errorf("config: policy.expiring_days must be at least 1")
	}
	if c.Scheduler.CheckInterval <= 0 {
		return fmt.Errorf("config: scheduler.check_interval must be positive")
	}
	for name, hour := range map[string]int{
		"report_hour":       c.Scheduler.ReportHour,
		"penalization_hour": c.Scheduler.PenalizationHour,
		"cleanup_hour":      c.Scheduler.CleanupHour,
	} {
		if hour < 0 || hour > 23 {
			return fmt.Errorf("config: scheduler.%s must be between 0 and 23", name)
		}
	}

	return nil
}

// hourOr resolves a raw hour field: nil means the default, an explicit
// value (0 included) is kept as configured.
func hourOr(raw *int, def int) int {
	if raw == nil {
		return def
	}
	return *raw
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}
