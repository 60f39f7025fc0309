package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Logging     LoggingConfig    `toml:"logging"`
	Automation  AutomationConfig `toml:"automation"`
	Polling     PollingConfig    `toml:"polling"`
	WebSocket   WebSocketConfig  `toml:"websocket"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// AutomationConfig configures the client for the automation backend that
// executes the actual browser form-fill work.
type AutomationConfig struct {
	BaseURL   string `toml:"base_url"`
	Timeout   string `toml:"timeout"`    // e.g. "30s"
	RateLimit int    `toml:"rate_limit"` // requests per second
}

// PollingConfig holds the status-poll cadence and stuck-job thresholds.
// These are business policy, not protocol guarantees; all are duration
// strings so tests and deployments can tune them.
type PollingConfig struct {
	FetchInterval       string `toml:"fetch_interval"`       // recurring fetch cadence (default "2s")
	SilentChannel       string `toml:"silent_channel"`       // zero raw-status change window (default "10s")
	StuckCheckAt        string `toml:"stuck_check_at"`       // tier-one timer (default "15s")
	StuckThreshold      string `toml:"stuck_threshold"`      // message age counted as stuck at tier one (default "15s")
	EscalationCheckAt   string `toml:"escalation_check_at"`  // tier-two timer (default "30s")
	EscalationThreshold string `toml:"escalation_threshold"` // message age counted as stuck at tier two (default "20s")
	HardCeiling         string `toml:"hard_ceiling"`         // unconditional completion deadline (default "60s")
}

// WebSocketConfig configures the UI status push.
type WebSocketConfig struct {
	UpdateThrottle string `toml:"update_throttle"` // min interval between pushed updates per connection, e.g. "250ms"
}

// SchedulerConfig configures the background sweep service.
type SchedulerConfig struct {
	Enabled       bool   `toml:"enabled"`
	SweepSchedule string `toml:"sweep_schedule"`  // cron expression (default "*/1 * * * *")
	HistoryMaxAge string `toml:"history_max_age"` // prune finished entries older than this (default "1h")
}

// DefaultConfig returns the baseline configuration before any file or
// environment override is applied.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8190,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Automation: AutomationConfig{
			BaseURL:   "http://localhost:8085",
			Timeout:   "30s",
			RateLimit: 10,
		},
		Polling: PollingConfig{
			FetchInterval:       "2s",
			SilentChannel:       "10s",
			StuckCheckAt:        "15s",
			StuckThreshold:      "15s",
			EscalationCheckAt:   "30s",
			EscalationThreshold: "20s",
			HardCeiling:         "60s",
		},
		WebSocket: WebSocketConfig{
			UpdateThrottle: "250ms",
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			SweepSchedule: "*/1 * * * *",
			HistoryMaxAge: "1h",
		},
	}
}

// LoadFromFiles loads configuration in priority order: defaults, then
// each file in sequence (later files override earlier ones), then
// environment variables. Missing files are an error; callers decide
// whether to pass discovered paths.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies VIGIL_* environment variables on top of the
// file configuration.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("VIGIL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("VIGIL_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("VIGIL_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("VIGIL_AUTOMATION_URL"); v != "" {
		config.Automation.BaseURL = v
	}
}

// ApplyFlagOverrides applies command-line flag values (highest priority).
// Zero values mean the flag was not set.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Automation.BaseURL == "" {
		return fmt.Errorf("automation.base_url is required")
	}
	return nil
}

// ParseDurationOr parses a duration string, falling back to def when the
// value is empty or malformed.
func ParseDurationOr(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}
