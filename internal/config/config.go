package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned (wrapped) by Validate for out-of-range settings.
var ErrInvalid = errors.New("invalid config")

// DatabaseConfig holds PostgreSQL connection parameters.
// Stats persistence is optional: Enabled=false keeps the server DB-free.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	// Snapshots older than the newest KeepSnapshots are pruned.
	KeepSnapshots int `yaml:"keep_snapshots"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultDatabase returns disabled database config with local defaults.
func DefaultDatabase() DatabaseConfig {
	return DatabaseConfig{
		Enabled:       false,
		Host:          "127.0.0.1",
		Port:          5432,
		User:          "tickregion",
		Password:      "tickregion",
		DBName:        "tickregion",
		SSLMode:       "disable",
		KeepSnapshots: 1000,
	}
}

// loadYAML reads path into cfg. Missing file keeps cfg untouched.
func loadYAML(path string, cfg any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}
