package tui

import (
	"os"
	"path/filepath"
)

// DebugLogName is the rotating debug log kept next to the run records
const DebugLogName = "debug.log"

// GetLogFilePath returns the path to the debug log.
// If MERGEGUARD_LOG_FILE is set, uses that path.
// Otherwise, uses <stateDir>/debug.log, or "" when stateDir is empty.
func GetLogFilePath(stateDir string) string {
	if customPath := os.Getenv("MERGEGUARD_LOG_FILE"); customPath != "" {
		return customPath
	}
	if stateDir == "" {
		return ""
	}
	return filepath.Join(stateDir, DebugLogName)
}
