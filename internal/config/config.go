package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration for the backtest engine.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig holds the Postgres connection settings for the historical
// price repository.
type DatabaseConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	Database    string        `mapstructure:"database"`
	MaxConns    int           `mapstructure:"max_conns"`
	MinConns    int           `mapstructure:"min_conns"`
	MaxConnLife time.Duration `mapstructure:"max_conn_life"`
}

// BacktestConfig holds the defaults a run falls back to when a flag or a
// submitted run config omits them.
type BacktestConfig struct {
	InitialCapital  float64 `mapstructure:"initial_capital"`
	CommissionFlat  float64 `mapstructure:"commission_flat"`
	OutputDir       string  `mapstructure:"output_dir"`
	MaxParallelRuns int     `mapstructure:"max_parallel_runs"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // "json" or "console"
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from configPath and allows BACKTEST_-prefixed
// environment variables to override it.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvPrefix("BACKTEST")
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if v.IsSet("DB_HOST") {
		config.Database.Host = v.GetString("DB_HOST")
	}
	if v.IsSet("DB_PORT") {
		config.Database.Port = v.GetInt("DB_PORT")
	}
	if v.IsSet("DB_USER") {
		config.Database.User = v.GetString("DB_USER")
	}
	if v.IsSet("DB_PASSWORD") {
		config.Database.Password = v.GetString("DB_PASSWORD")
	}
	if v.IsSet("DB_NAME") {
		config.Database.Database = v.GetString("DB_NAME")
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "backtest")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "backtest")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_life", 5*time.Minute)

	v.SetDefault("backtest.initial_capital", 100000.0)
	v.SetDefault("backtest.commission_flat", 5.0)
	v.SetDefault("backtest.output_dir", "./backtest_results")
	v.SetDefault("backtest.max_parallel_runs", 4)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.time_format", time.RFC3339)
}

// ConnectionString returns a PostgreSQL connection string for pgx.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}
