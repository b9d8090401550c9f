package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Candidate file names, searched in order at the repository root
var configFileNames = []string{
	".mergeguard.yaml",
	".mergeguard.yml",
	".mergeguard.json",
	".mergeguard.toml",
}

// LegacyConfigPath is where the git-merge-helper skill kept its settings
var LegacyConfigPath = filepath.Join(".claude", "skills", "git-merge-helper", "config.json")

// LogRetention bounds how many run records are kept.
// Records from the last 7 days are capped at WeekMax, records between 7 and
// 30 days old at MonthMax, and anything older than MaxAge is removed.
type LogRetention struct {
	WeekMax  int      `yaml:"week_max" toml:"week_max"`
	MonthMax int      `yaml:"month_max" toml:"month_max"`
	MaxAge   Duration `yaml:"max_age" toml:"max_age"`
}

// Config holds all mergeguard settings.
// It is treated as immutable after Load: components copy what they keep.
type Config struct {
	// RetryCount is the maximum number of attempts for a remote operation
	RetryCount int `yaml:"retry_count" toml:"retry_count"`

	// RetryDelaySchedule lists the waits between attempts. When shorter than
	// RetryCount-1 the last entry repeats.
	RetryDelaySchedule []Duration `yaml:"retry_delay_schedule" toml:"retry_delay_schedule"`

	// NetworkTimeout bounds a single remote attempt
	NetworkTimeout Duration `yaml:"network_timeout" toml:"network_timeout"`

	ProtectedBranches []string     `yaml:"protected_branches" toml:"protected_branches"`
	LogRetention      LogRetention `yaml:"log_retention" toml:"log_retention"`

	// MaxFileSize is the size in bytes above which precheck and conflict
	// analysis ask for a manual review
	MaxFileSize int64 `yaml:"max_file_size" toml:"max_file_size"`

	IgnorePaths   []string `yaml:"ignore_paths" toml:"ignore_paths"`
	DefaultTarget string   `yaml:"default_target" toml:"default_target"`

	// Remote overrides remote auto-detection
	Remote string `yaml:"remote,omitempty" toml:"remote,omitempty"`

	// GitHubProtection adds the hosting provider's protected branches to ProtectedBranches
	GitHubProtection bool `yaml:"github_protection" toml:"github_protection"`
}

// Load builds the effective configuration for the repository at repoRoot.
// explicitPath, when set, must exist. Otherwise the repository root is
// searched for a mergeguard file, then for the legacy config.json.
// It returns the config and the path of the file that was read ("" for defaults).
func Load(repoRoot, explicitPath string) (Config, string, error) {
	cfg := DefaultConfig()

	path, err := findConfigFile(repoRoot, explicitPath)
	if err != nil {
		return Config{}, "", err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, "", fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := decode(path, data, &cfg); err != nil {
			return Config{}, "", fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, "", err
	}

	if err := validateConfig(&cfg); err != nil {
		return Config{}, "", err
	}

	return cfg, path, nil
}

func findConfigFile(repoRoot, explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicitPath, err)
		}
		return explicitPath, nil
	}

	for _, name := range configFileNames {
		candidate := filepath.Join(repoRoot, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	legacy := filepath.Join(repoRoot, LegacyConfigPath)
	if _, err := os.Stat(legacy); err == nil {
		return legacy, nil
	}

	return "", nil
}

func decode(path string, data []byte, cfg *Config) error {
	if filepath.Base(path) == filepath.Base(LegacyConfigPath) && strings.Contains(filepath.ToSlash(path), "git-merge-helper") {
		return decodeLegacy(data, cfg)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Unmarshal(data, cfg)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Marshal renders the config as YAML
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// WithProtectedBranches returns a copy of the config whose protected set also
// contains extra. Existing entries are not duplicated.
func (c Config) WithProtectedBranches(extra []string) Config {
	out := c
	out.ProtectedBranches = append([]string(nil), c.ProtectedBranches...)
	for _, name := range extra {
		if !contains(out.ProtectedBranches, name) {
			out.ProtectedBranches = append(out.ProtectedBranches, name)
		}
	}
	return out
}

// contains checks if a string slice contains a value
func contains(slice []string, value string) bool {
	for _, v := range slice {
		if v == value {
			return true
		}
	}
	return false
}
