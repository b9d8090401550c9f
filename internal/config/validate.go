package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError contains details about what failed validation.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config.%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// validateConfig checks all config values for validity.
// Returns nil if valid, or joined errors for all validation failures.
func validateConfig(cfg *Config) error {
	var errs []error

	if cfg.RetryCount < 1 {
		errs = append(errs, &ValidationError{
			Field:   "retry_count",
			Value:   cfg.RetryCount,
			Message: "must be at least 1",
		})
	}

	for i, d := range cfg.RetryDelaySchedule {
		if d < 0 {
			errs = append(errs, &ValidationError{
				Field:   fmt.Sprintf("retry_delay_schedule[%d]", i),
				Value:   d,
				Message: "must not be negative",
			})
		}
		if i > 0 && d < cfg.RetryDelaySchedule[i-1] {
			errs = append(errs, &ValidationError{
				Field:   fmt.Sprintf("retry_delay_schedule[%d]", i),
				Value:   d,
				Message: "delays must be non-decreasing",
			})
		}
	}

	if cfg.NetworkTimeout <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "network_timeout",
			Value:   cfg.NetworkTimeout,
			Message: "must be positive",
		})
	}

	for _, b := range cfg.ProtectedBranches {
		if strings.TrimSpace(b) == "" {
			errs = append(errs, &ValidationError{
				Field:   "protected_branches",
				Value:   cfg.ProtectedBranches,
				Message: "must not contain empty names",
			})
			break
		}
	}

	if cfg.LogRetention.WeekMax < 0 || cfg.LogRetention.MonthMax < 0 {
		errs = append(errs, &ValidationError{
			Field:   "log_retention",
			Value:   cfg.LogRetention,
			Message: "counts must be non-negative",
		})
	}

	if cfg.LogRetention.MaxAge <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "log_retention.max_age",
			Value:   cfg.LogRetention.MaxAge,
			Message: "must be positive",
		})
	}

	if cfg.MaxFileSize <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "max_file_size",
			Value:   cfg.MaxFileSize,
			Message: "must be positive",
		})
	}

	if strings.TrimSpace(cfg.DefaultTarget) == "" {
		errs = append(errs, &ValidationError{
			Field:   "default_target",
			Value:   cfg.DefaultTarget,
			Message: "must not be empty",
		})
	}

	return errors.Join(errs...)
}
