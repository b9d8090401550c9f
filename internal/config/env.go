package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// envOverrides maps environment variables to config field setters.
var envOverrides = []struct {
	envVar string
	apply  func(*Config, string) error
}{
	{
		envVar: "MERGEGUARD_RETRY_COUNT",
		apply: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return &ValidationError{Field: "retry_count", Value: v, Message: "MERGEGUARD_RETRY_COUNT must be an integer"}
			}
			c.RetryCount = n
			return nil
		},
	},
	{
		envVar: "MERGEGUARD_DEFAULT_TARGET",
		apply: func(c *Config, v string) error {
			c.DefaultTarget = v
			return nil
		},
	},
	{
		envVar: "MERGEGUARD_REMOTE",
		apply: func(c *Config, v string) error {
			c.Remote = v
			return nil
		},
	},
	{
		envVar: "MERGEGUARD_PROTECTED_BRANCHES",
		apply: func(c *Config, v string) error {
			var branches []string
			for _, b := range strings.Split(v, ",") {
				if b = strings.TrimSpace(b); b != "" {
					branches = append(branches, b)
				}
			}
			c.ProtectedBranches = branches
			return nil
		},
	},
	{
		envVar: "MERGEGUARD_GITHUB_PROTECTION",
		apply: func(c *Config, v string) error {
			enabled, err := strconv.ParseBool(v)
			if err != nil {
				return &ValidationError{Field: "github_protection", Value: v, Message: "MERGEGUARD_GITHUB_PROTECTION must be a boolean"}
			}
			c.GitHubProtection = enabled
			return nil
		},
	},
}

// applyEnvOverrides modifies config in place with environment variable values.
func applyEnvOverrides(cfg *Config) error {
	var errs []error
	for _, override := range envOverrides {
		if val := os.Getenv(override.envVar); val != "" {
			if err := override.apply(cfg, val); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
