package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// legacyConfig mirrors the config.json written for the git-merge-helper skill.
// Delays and timeouts are in seconds there.
type legacyConfig struct {
	MaxRetries          *int     `yaml:"max_retries"`
	RetryDelay          *int     `yaml:"retry_delay"`
	NetworkTimeout      *int     `yaml:"network_timeout"`
	MaxWeekLogs         *int     `yaml:"max_week_logs"`
	MaxMonthLogs        *int     `yaml:"max_month_logs"`
	MonthDays           *int     `yaml:"month_days"`
	ProtectedBranches   []string `yaml:"protected_branches"`
	MaxConflictFileSize *int64   `yaml:"max_conflict_file_size"`
}

// decodeLegacy maps the legacy keys onto cfg. max_retries counted retries
// after the first attempt, so it becomes RetryCount = max_retries + 1.
func decodeLegacy(data []byte, cfg *Config) error {
	var legacy legacyConfig
	if err := yaml.Unmarshal(data, &legacy); err != nil {
		return err
	}

	delay := DefaultRetryDelay
	if legacy.RetryDelay != nil {
		delay = time.Duration(*legacy.RetryDelay) * time.Second
	}
	if legacy.MaxRetries != nil {
		cfg.RetryCount = *legacy.MaxRetries + 1
	}
	if legacy.MaxRetries != nil || legacy.RetryDelay != nil {
		cfg.RetryDelaySchedule = LinearSchedule(delay, cfg.RetryCount)
	}
	if legacy.NetworkTimeout != nil {
		cfg.NetworkTimeout = Duration(time.Duration(*legacy.NetworkTimeout) * time.Second)
	}
	if legacy.MaxWeekLogs != nil {
		cfg.LogRetention.WeekMax = *legacy.MaxWeekLogs
	}
	if legacy.MaxMonthLogs != nil {
		cfg.LogRetention.MonthMax = *legacy.MaxMonthLogs
	}
	if legacy.MonthDays != nil {
		cfg.LogRetention.MaxAge = Duration(time.Duration(*legacy.MonthDays) * 24 * time.Hour)
	}
	if len(legacy.ProtectedBranches) > 0 {
		cfg.ProtectedBranches = legacy.ProtectedBranches
	}
	if legacy.MaxConflictFileSize != nil {
		cfg.MaxFileSize = *legacy.MaxConflictFileSize
	}
	return nil
}
