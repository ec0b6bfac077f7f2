// Package config provides configuration types and loading for feedsim.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "FEEDSIM"

// Config is the root configuration struct, loaded from FEEDSIM_* environment
// variables.
type Config struct {
	DB    DBConfig
	Log   LogConfig
	Admit AdmitConfig
}

// DBConfig groups Postgres connection settings.
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"feedsim"`
	Password string `envconfig:"DB_PASSWORD" default:"feedsim"`
	Name     string `envconfig:"DB_NAME" default:"feedsim"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// DSN builds a libpq connection string from the configured fields.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// LogConfig groups logging settings.
type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// AdmitConfig groups the action-admission rate limiter's settings.
type AdmitConfig struct {
	RatePerSec float64 `envconfig:"ADMIT_RATE" default:"500"`
	Burst      int     `envconfig:"ADMIT_BURST" default:"50"`
}

// Load reads Config from FEEDSIM_* environment variables, applying the
// defaults above where a variable is unset.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
