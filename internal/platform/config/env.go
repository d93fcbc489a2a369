package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is shared by every small-eod environment variable.
const EnvPrefix = "EOD_"

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseEnvPrefixed loads configuration whose env tags omit EnvPrefix.
func ParseEnvPrefixed(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
