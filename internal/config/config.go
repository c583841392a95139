package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server ServerConfig `mapstructure:"server" validate:"required"`
	Store  StoreConfig  `mapstructure:"store" validate:"required"`
	Remote RemoteConfig `mapstructure:"remote" validate:"required"`
	Task   TaskConfig   `mapstructure:"task" validate:"required"`
}

// ServerConfig contains the settings of the local invocation daemon.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// StoreConfig locates the durable key-value file shared by every
// process that touches credentials or the pending queue.
type StoreConfig struct {
	// Path is the bolt database file. The parent directory is created
	// on first open.
	Path string `mapstructure:"path" validate:"required"`

	// LockTimeout bounds how long an open waits for another process to
	// release the file lock before failing.
	LockTimeout time.Duration `mapstructure:"lock_timeout" validate:"required,gt=0"`
}

// RemoteConfig contains the settings of the outbound submission client.
type RemoteConfig struct {
	// RequestTimeout caps one HTTP attempt end to end.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required,gt=0"`
}

// TaskConfig contains the retry and queue policy.
type TaskConfig struct {
	MaxRetries  int           `mapstructure:"max_retries" validate:"required,gt=0"`
	BackoffBase time.Duration `mapstructure:"backoff_base" validate:"required,gt=0"`
	RestartWait time.Duration `mapstructure:"restart_wait" validate:"required,gt=0"`

	// PendingTTL is how long exhausted queue entries are retained before
	// pruning. Zero keeps them forever.
	PendingTTL time.Duration `mapstructure:"pending_ttl" validate:"gte=0"`
}
