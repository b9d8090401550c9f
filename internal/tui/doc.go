// Package tui provides the terminal output of mergeguard.
//
// It handles:
//   - Console and debug-file logging (Splog)
//   - The batch summary printed after a merge run (style)
package tui
