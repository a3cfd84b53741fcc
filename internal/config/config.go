package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config tunes the subscription lifecycle and background jobs. Connection
// settings (database, redis, minio) come from the environment in main.
type Config struct {
	Lifecycle LifecycleConfig `toml:"lifecycle"`
	Jobs      JobsConfig      `toml:"jobs"`
}

// LifecycleConfig holds the default lifecycle windows, used when a plan does
// not define its own.
type LifecycleConfig struct {
	TrialDays             int `toml:"trial_days"`
	GracePeriodDays       int `toml:"grace_period_days"`
	ReadonlyPeriodDays    int `toml:"readonly_period_days"`
	BillingPeriodDays     int `toml:"billing_period_days"`
	UsageCacheTTLMinutes  int `toml:"usage_cache_ttl_minutes"`
	StatusCacheTTLSeconds int `toml:"status_cache_ttl_seconds"`
}

// JobsConfig holds scheduling intervals and batch concurrency.
type JobsConfig struct {
	TransitionIntervalMinutes int `toml:"transition_interval_minutes"`
	ReminderIntervalHours     int `toml:"reminder_interval_hours"`
	RecalcIntervalHours       int `toml:"recalc_interval_hours"`
	RecalcConcurrency         int `toml:"recalc_concurrency"`
	WarningCooldownHours      int `toml:"warning_cooldown_hours"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Lifecycle: LifecycleConfig{
			TrialDays:             7,
			GracePeriodDays:       14,
			ReadonlyPeriodDays:    60,
			BillingPeriodDays:     365,
			UsageCacheTTLMinutes:  5,
			StatusCacheTTLSeconds: 60,
		},
		Jobs: JobsConfig{
			TransitionIntervalMinutes: 15,
			ReminderIntervalHours:     24,
			RecalcIntervalHours:       24,
			RecalcConcurrency:         5,
			WarningCooldownHours:      168,
		},
	}
}

// Load reads a TOML configuration file, filling unset values from Default.
func Load(filename string) (*Config, error) {
	config := Default()
	if _, err := toml.DecodeFile(filename, config); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	return config, nil
}
