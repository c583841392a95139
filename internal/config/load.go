package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config
// file. Environment variables take precedence over values from config
// files. Returns a populated Config struct or an error if
// loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional mova.yaml next to the binary or in the user config dir;
	// a missing file is fine, a malformed one is not.
	v.SetConfigName("mova")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/mova")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// MOVA_SERVER_PORT, MOVA_STORE_PATH, ...
	v.SetEnvPrefix("MOVA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("store.path", defaultStorePath())
	v.SetDefault("store.lock_timeout", "5s")
	v.SetDefault("remote.request_timeout", "15s")
	v.SetDefault("task.max_retries", 3)
	v.SetDefault("task.backoff_base", "2s")
	v.SetDefault("task.restart_wait", "10s")
	v.SetDefault("task.pending_ttl", "720h")
}
