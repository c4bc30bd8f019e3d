// Package config loads memory-hog's ambient settings. The poll interval and
// target fraction are constants and deliberately not part of it.
package config

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MEMHOG_STATUS_PORT.
const EnvPrefix = "MEMHOG"

// Config holds the application configuration
type Config struct {
	// StatusPort serves /health, /ready, /metrics and /api/v1; 0 disables it.
	StatusPort int `mapstructure:"status_port"`
	// LogLevel is a zerolog level name.
	LogLevel string `mapstructure:"log_level"`
}

// SetDefaults registers defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("status_port", 8082)
	v.SetDefault("log_level", "info")
}

// Load reads configuration from v, after defaults and MEMHOG_* environment
// variables are applied. Flags bound to v take precedence over both.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every field is usable.
func (c *Config) Validate() error {
	if c.StatusPort < 0 || c.StatusPort > 65535 {
		return fmt.Errorf("status_port %d out of range [0, 65535]", c.StatusPort)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return nil
}
