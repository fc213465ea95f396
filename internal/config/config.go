package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full terminal configuration
type Config struct {
	Service ServiceConfig `yaml:"service"`
	API     APIConfig     `yaml:"api"`
	Scanner ScannerConfig `yaml:"scanner"`
	Diag    DiagConfig    `yaml:"diag"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServiceConfig identifies this deployment
type ServiceConfig struct {
	Name        string `yaml:"name" validate:"required"`
	Environment string `yaml:"environment" validate:"required,oneof=development staging production"`
	Version     string `yaml:"version"`
}

// APIConfig points at the picking backend
type APIConfig struct {
	BaseURL        string `yaml:"base_url" validate:"required,url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"min=1,max=300"`
}

// Timeout returns the request timeout as a duration
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ScannerConfig tunes scan input handling
type ScannerConfig struct {
	DebounceMS     int `yaml:"debounce_ms" validate:"min=0,max=5000"`
	WedgeTimeoutMS int `yaml:"wedge_timeout_ms" validate:"min=0,max=5000"`
}

// Debounce returns the duplicate-scan window
func (c ScannerConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// WedgeTimeout returns the keyboard-wedge inter-key reset gap
func (c ScannerConfig) WedgeTimeout() time.Duration {
	return time.Duration(c.WedgeTimeoutMS) * time.Millisecond
}

// DiagConfig controls the local diagnostics HTTP server
type DiagConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"required_if=Enabled true"`
}

// LoggingConfig controls structured log output
type LoggingConfig struct {
	Level     string `yaml:"level" validate:"oneof=debug info warn error"`
	AddSource bool   `yaml:"add_source"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "picker-terminal",
			Environment: "development",
			Version:     "dev",
		},
		API: APIConfig{
			BaseURL:        "http://localhost:8080/api",
			TimeoutSeconds: 30,
		},
		Scanner: ScannerConfig{
			DebounceMS:     500,
			WedgeTimeoutMS: 500,
		},
		Diag: DiagConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment overrides, then validates it. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv layers environment variables over the loaded values
func (c *Config) applyEnv() {
	setString(&c.Service.Environment, "ENVIRONMENT")
	setString(&c.Service.Version, "SERVICE_VERSION")
	setString(&c.API.BaseURL, "API_BASE_URL")
	setInt(&c.API.TimeoutSeconds, "API_TIMEOUT_SECONDS")
	setInt(&c.Scanner.DebounceMS, "SCAN_DEBOUNCE_MS")
	setString(&c.Diag.Addr, "DIAG_ADDR")
	setString(&c.Logging.Level, "LOG_LEVEL")
}

func setString(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

func setInt(target *int, key string) {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			*target = n
		}
	}
}
