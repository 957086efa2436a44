// pkg/config/load.go
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by LoadConfig,
// e.g. TYPEPREFS_STORE_BACKEND.
const EnvPrefix = "TYPEPREFS"

// LoadConfig loads configuration from defaults, an optional file and
// environment variables (highest precedence).
// If configPath is empty, "typeprefs.yaml" is searched in "." and
// "$HOME/.typeprefs"; a missing default file is not an error.
func LoadConfig(configPath string) (Config, error) {
	v := viper.New()
	cfg := NewDefaultConfig()

	// Every key gets a default so AutomaticEnv can see it during Unmarshal.
	v.SetDefault("store.backend", cfg.Store.Backend)
	v.SetDefault("store.dsn", cfg.Store.DSN)
	v.SetDefault("store.table", cfg.Store.Table)
	v.SetDefault("store.database", cfg.Store.Database)
	v.SetDefault("store.timeout", cfg.Store.Timeout)
	v.SetDefault("store.pool.maxIdleConns", cfg.Store.Pool.MaxIdleConns)
	v.SetDefault("store.pool.maxOpenConns", cfg.Store.Pool.MaxOpenConns)
	v.SetDefault("store.pool.connMaxLifetime", cfg.Store.Pool.ConnMaxLifetime)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("typeprefs")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.typeprefs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" {
			return cfg, fmt.Errorf("error reading specified config file '%s': %w", configPath, err)
		}
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("error decoding configuration: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cfg against its validate tags and flattens every failure
// into a single error.
func Validate(cfg Config) error {
	validate := validator.New()
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		msgs = append(msgs, fmt.Sprintf("Field '%s' failed validation on '%s'", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
