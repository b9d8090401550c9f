// Package config manages mergeguard configuration.
//
// It handles:
//   - Repository configuration files (YAML, JSON or TOML)
//   - The legacy git-merge-helper config.json layout
//   - Environment variable overrides
//   - Validation of the effective settings
//
// A Config is built once at startup and passed by value to every component.
package config
