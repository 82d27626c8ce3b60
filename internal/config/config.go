// Package config provides application configuration loaded from environment
// variables, optionally overlaid by a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Batch    BatchConfig    `yaml:"batch"`
	// UniqueKeys lists attribute keys whose values must be unique among the
	// live entities of one schema.
	UniqueKeys []string `yaml:"unique_keys"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Env        string `yaml:"env"`
	LogLevel   string `yaml:"log_level"`
	Migrations bool   `yaml:"migrations"`
	OperatorID string `yaml:"operator_id"`
	// OperatorName is used when seeding the operator account.
	OperatorName string `yaml:"operator_name"`
}

// DatabaseConfig selects the datastore. DSN wins over the discrete
// PostgreSQL settings when set.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// StorageConfig holds output locations.
type StorageConfig struct {
	OutputDir string `yaml:"output_dir"`
	// Reveal opens the output directory with the desktop file manager after
	// a batch with at least one success.
	Reveal bool `yaml:"reveal"`
}

// BatchConfig tunes the batch orchestrator.
type BatchConfig struct {
	Workers         int `yaml:"workers"`
	DispatchDelayMS int `yaml:"dispatch_delay_ms"`
}

// DispatchDelay returns the pause taken before each job starts.
func (b BatchConfig) DispatchDelay() time.Duration {
	return time.Duration(b.DispatchDelayMS) * time.Millisecond
}

// PostgresDSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// DefaultUniqueKeys are the identifier attributes checked for duplicates.
var DefaultUniqueKeys = []string{"pan", "gstin", "tan", "cin", "registration_number"}

// Load reads configuration from environment variables.
// It uses sensible defaults for local use.
func Load() *Config {
	return &Config{
		App: AppConfig{
			Env:          getEnv("APP_ENV", "development"),
			LogLevel:     getEnv("LOG_LEVEL", ""),
			Migrations:   getEnvBool("MIGRATIONS", true),
			OperatorID:   getEnv("OPERATOR_ID", "operator"),
			OperatorName: getEnv("OPERATOR_NAME", "Operator"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "sqlite"),
			DSN:      getEnv("DATABASE_DSN", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "docbatch"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "docbatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Storage: StorageConfig{
			OutputDir: getEnv("OUTPUT_DIR", "output"),
			Reveal:    getEnvBool("REVEAL_OUTPUT", false),
		},
		Batch: BatchConfig{
			Workers:         getEnvInt("BATCH_WORKERS", 5),
			DispatchDelayMS: getEnvInt("BATCH_DISPATCH_DELAY_MS", 0),
		},
		UniqueKeys: getEnvList("UNIQUE_ATTRIBUTE_KEYS", DefaultUniqueKeys),
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

// getEnvList splits a comma separated variable, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
