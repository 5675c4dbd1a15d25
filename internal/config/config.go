// Package config loads command settings from defaults, an optional YAML file
// and BGS_* environment variables, in that order.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"bgsim/internal/logging"
	"bgsim/internal/report"
	"bgsim/internal/storage"
)

const EnvPrefix = "BGS_"

type Config struct {
	LogLevel     string `json:"log_level" yaml:"log_level" env:"LOG_LEVEL"`
	Format       string `json:"format" yaml:"format" env:"FORMAT"`
	Store        string `json:"store" yaml:"store" env:"STORE"`
	DBPath       string `json:"db_path,omitempty" yaml:"db_path,omitempty" env:"DB_PATH"`
	ArtifactsDir string `json:"artifacts_dir,omitempty" yaml:"artifacts_dir,omitempty" env:"ARTIFACTS_DIR"`

	// Workers bounds concurrent seeds in a batch; 0 means one per CPU.
	Workers   int             `json:"workers" yaml:"workers" env:"WORKERS"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry" envPrefix:"OTEL_"`
}

type TelemetryConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" env:"ENABLED"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" env:"ENDPOINT"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Format:   report.FormatRepr,
		Store:    storage.DefaultStoreKind(),
		DBPath:   "bgsim.db",
		Telemetry: TelemetryConfig{
			Enabled: true,
		},
	}
}

// Load applies an optional YAML file and then the environment to the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields whose BGS_* variable is set.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if !logging.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace)", c.LogLevel)
	}
	if !report.ValidFormat(c.Format) {
		return fmt.Errorf("invalid format: %s (valid: repr, json, csv)", c.Format)
	}
	switch c.Store {
	case "", storage.KindMemory:
	case storage.KindSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("db_path is required for the sqlite store")
		}
	default:
		return fmt.Errorf("invalid store: %s (valid: memory, sqlite)", c.Store)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	return nil
}
