// pkg/config/config.go
package config

import "time"

// PoolConfig holds connection pool settings for SQL backends.
type PoolConfig struct {
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"` // e.g. "1h", "30m"
}

// StoreConfig selects and configures the backend that keeps preference values.
type StoreConfig struct {
	Backend  string        `mapstructure:"backend"  validate:"required"`                        // memory, sqlite, postgres, mysql, sqlserver, mongodb, redis
	DSN      string        `mapstructure:"dsn"      validate:"required_unless=Backend memory"` // backend specific connection string
	Table    string        `mapstructure:"table"    validate:"required"`                        // SQL table, Mongo collection or Redis hash
	Database string        `mapstructure:"database"`                                            // Mongo database name
	Timeout  time.Duration `mapstructure:"timeout"`                                             // bound for connect/ping on open
	Pool     PoolConfig    `mapstructure:"pool"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// Config aggregates every setting.
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// NewDefaultConfig returns a configuration filled with defaults.
// Backend and DSN still have to be provided by the user.
func NewDefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Table:    "preferences",
			Database: "typeprefs",
			Timeout:  5 * time.Second,
			Pool: PoolConfig{
				MaxIdleConns:    2,
				MaxOpenConns:    10,
				ConnMaxLifetime: time.Hour,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
