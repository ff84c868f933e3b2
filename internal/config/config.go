package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the console server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Identity IdentityConfig
	Runner   RunnerConfig
	Executor ExecutorConfig
	Internal InternalConfig
	Sweep    SweepConfig
}

type ServerConfig struct {
	Port int
	Env  string

	// DemoUserEmail marks a read-only demo account; mutating lifecycle
	// actions from it are rejected. Empty disables the check.
	DemoUserEmail string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// IdentityConfig points at the external identity provider used to verify
// interactive session tokens.
type IdentityConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RunnerConfig points at the external task-runner service.
type RunnerConfig struct {
	BaseURL string
	APIKey  string
	TaskID  string
	Timeout time.Duration
}

// ExecutorConfig points at the execution backend that performs the actual
// API security test.
type ExecutorConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// InternalConfig holds the pre-shared secret required on internal callback
// routes (progress updates, task-runner callbacks).
type InternalConfig struct {
	APIKey string
}

type SweepConfig struct {
	// Schedule is a cron expression for the stale-queue sweep.
	Schedule string
	// StaleAfter is how long a job may sit in "queued" before the sweep
	// fails it.
	StaleAfter time.Duration
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value
// is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:          envInt("CONSOLE_PORT", 8080),
			Env:           envString("CONSOLE_ENV", "development"),
			DemoUserEmail: os.Getenv("DEMO_USER_EMAIL"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Identity: IdentityConfig{
			BaseURL: os.Getenv("IDENTITY_BASE_URL"),
			APIKey:  os.Getenv("IDENTITY_API_KEY"),
			Timeout: envDuration("IDENTITY_TIMEOUT", 10*time.Second),
		},
		Runner: RunnerConfig{
			BaseURL: os.Getenv("RUNNER_BASE_URL"),
			APIKey:  os.Getenv("RUNNER_API_KEY"),
			TaskID:  envString("RUNNER_TASK_ID", "api-test-runner"),
			Timeout: envDuration("RUNNER_TIMEOUT", 30*time.Second),
		},
		Executor: ExecutorConfig{
			BaseURL: os.Getenv("EXECUTOR_BASE_URL"),
			APIKey:  os.Getenv("EXECUTOR_API_KEY"),
			Timeout: envDuration("EXECUTOR_TIMEOUT", 15*time.Minute),
		},
		Internal: InternalConfig{
			APIKey: os.Getenv("INTERNAL_API_KEY"),
		},
		Sweep: SweepConfig{
			Schedule:   envString("SWEEP_SCHEDULE", "@hourly"),
			StaleAfter: envDuration("SWEEP_STALE_AFTER", time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Identity.BaseURL == "" {
		return fmt.Errorf("IDENTITY_BASE_URL is required")
	}
	if err := validateBaseURL("IDENTITY_BASE_URL", c.Identity.BaseURL); err != nil {
		return err
	}

	if c.Runner.BaseURL == "" {
		return fmt.Errorf("RUNNER_BASE_URL is required")
	}
	if err := validateBaseURL("RUNNER_BASE_URL", c.Runner.BaseURL); err != nil {
		return err
	}
	if c.Runner.APIKey == "" {
		return fmt.Errorf("RUNNER_API_KEY is required")
	}

	if c.Executor.BaseURL == "" {
		return fmt.Errorf("EXECUTOR_BASE_URL is required")
	}
	if err := validateBaseURL("EXECUTOR_BASE_URL", c.Executor.BaseURL); err != nil {
		return err
	}
	if c.Executor.APIKey == "" {
		return fmt.Errorf("EXECUTOR_API_KEY is required")
	}

	if c.Internal.APIKey == "" {
		return fmt.Errorf("INTERNAL_API_KEY is required")
	}

	if c.Sweep.StaleAfter < time.Minute {
		return fmt.Errorf("SWEEP_STALE_AFTER must be at least 1m, got %s", c.Sweep.StaleAfter)
	}

	return nil
}

func validateBaseURL(name, value string) error {
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		return fmt.Errorf("%s must start with http:// or https://, got %q", name, value)
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
