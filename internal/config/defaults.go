package config

import "time"

const (
	DefaultRetryCount     = 3
	DefaultRetryDelay     = 2 * time.Second
	DefaultNetworkTimeout = 30 * time.Second
	DefaultMaxFileSize    = 10 * 1024 * 1024
	DefaultTarget         = "main"
	DefaultWeekMax        = 10
	DefaultMonthMax       = 5
	DefaultMaxAge         = 30 * 24 * time.Hour
)

// DefaultProtectedBranches are the targets that never receive automated merges
var DefaultProtectedBranches = []string{"pre", "prod", "production", "master-prod", "pre-prod"}

// DefaultIgnorePaths are working tree paths that do not count as local changes
var DefaultIgnorePaths = []string{".DS_Store", "Thumbs.db", ".claude/", ".idea/", ".vscode/"}

// LinearSchedule returns the delays between attempts for a linear backoff:
// base, 2*base, ... for attempts-1 waits.
func LinearSchedule(base time.Duration, attempts int) []Duration {
	if attempts < 2 {
		return []Duration{}
	}
	schedule := make([]Duration, 0, attempts-1)
	for i := 1; i < attempts; i++ {
		schedule = append(schedule, Duration(base*time.Duration(i)))
	}
	return schedule
}

// DefaultConfig returns a Config with all default values applied.
func DefaultConfig() Config {
	return Config{
		RetryCount:         DefaultRetryCount,
		RetryDelaySchedule: LinearSchedule(DefaultRetryDelay, DefaultRetryCount),
		NetworkTimeout:     Duration(DefaultNetworkTimeout),
		ProtectedBranches:  append([]string(nil), DefaultProtectedBranches...),
		LogRetention: LogRetention{
			WeekMax:  DefaultWeekMax,
			MonthMax: DefaultMonthMax,
			MaxAge:   Duration(DefaultMaxAge),
		},
		MaxFileSize:   DefaultMaxFileSize,
		IgnorePaths:   append([]string(nil), DefaultIgnorePaths...),
		DefaultTarget: DefaultTarget,
	}
}
