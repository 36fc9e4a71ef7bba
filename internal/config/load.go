package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional config
// file. Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
//
// Resolution order:
//  1. Built-in defaults for everything that has a sensible default.
//  2. An optional config.yaml in the working directory or /etc/dispatch.
//  3. Environment variables prefixed with DISPATCH_ (nested keys joined
//     with underscores, e.g. DISPATCH_DATABASE_URL).
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/dispatch")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; everything can come from env vars.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("DISPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers default values for all settings that have one.
// database.url and cache.url deliberately have no default: the service must
// not start without knowing where its store and cache live.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("cache.op_timeout_ms", 500)
	v.SetDefault("cache.default_ttl_seconds", 300)
	v.SetDefault("cache.breaker_failures", 5)
	v.SetDefault("cache.breaker_recovery_seconds", 60)

	v.SetDefault("allocation.max_tasks_per_worker", 50)
	v.SetDefault("allocation.max_radius_km", 10.0)
	v.SetDefault("allocation.cell_size_degrees", 0.01)
	v.SetDefault("allocation.default_batch_size", 100)
}

// validate runs struct-tag validation over the loaded config and converts
// validator errors into a readable aggregate message.
func validate(cfg *Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return fmt.Errorf("invalid configuration: %w", err)
}
