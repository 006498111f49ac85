package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix namespaces the application's environment variables, e.g.
// LEXIGRAPH_SERVER_PORT overrides server.port.
const envPrefix = "LEXIGRAPH"

// Load configuration from environment variables and optionally a
// config file. Environment variables take precedence over values from
// config files. Returns a populated Config struct or an error if
// loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; the environment can carry
		// everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the defaults every deployment starts from.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	// Registered empty so AutomaticEnv can populate them; validation
	// rejects them if they stay empty.
	v.SetDefault("database.url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime", time.Hour)

	v.SetDefault("queue.backend", "postgres")
	v.SetDefault("queue.claim_wait", 5*time.Second)
	v.SetDefault("queue.visibility_timeout", 5*time.Minute)
	v.SetDefault("queue.buffer_size", 1024)

	v.SetDefault("worker.count", 4)
	v.SetDefault("worker.sweep_interval", time.Hour)
	v.SetDefault("worker.task_retention", 7*24*time.Hour)
}
