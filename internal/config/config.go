// Package config defines the application configuration and its loader.
package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetime time.Duration `mapstructure:"token_lifetime" validate:"gt=0"`
}

// QueueConfig selects and tunes the task delivery log.
type QueueConfig struct {
	// Backend is "postgres" for the durable log or "memory" for
	// single-process deployments.
	Backend string `mapstructure:"backend" validate:"required,oneof=postgres memory"`

	// ClaimWait bounds how long a worker's claim call blocks waiting
	// for an entry.
	ClaimWait time.Duration `mapstructure:"claim_wait" validate:"gt=0"`

	// VisibilityTimeout is how long a claimed entry stays invisible
	// before it is considered abandoned and redelivered.
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout" validate:"gt=0"`

	// BufferSize caps the in-memory backend's pending entries.
	BufferSize int `mapstructure:"buffer_size" validate:"gt=0"`
}

// WorkerConfig tunes the worker pool and retention sweeper.
type WorkerConfig struct {
	Count          int           `mapstructure:"count" validate:"gt=0"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
	TaskRetention  time.Duration `mapstructure:"task_retention" validate:"gt=0"`
}
