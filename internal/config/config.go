// Package config loads daemon settings from defaults, a YAML file, .env
// files and DFM_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. DFM_API_PORT.
// Keys come from field names; there is no unprefixed fallback.
const EnvPrefix = "DFM"

// Config is the full daemon configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Monitor MonitorConfig `yaml:"monitor"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Smart   SmartConfig   `yaml:"smart"`
}

type APIConfig struct {
	Host            string        `yaml:"host" split_words:"true"`
	Port            int           `yaml:"port" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

type MonitorConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval" split_words:"true"`
	SenseTimeout    time.Duration `yaml:"sense_timeout" split_words:"true"`
	IdleThreshold   time.Duration `yaml:"idle_threshold" split_words:"true"`
	KeystrokeWindow time.Duration `yaml:"keystroke_window" split_words:"true"`
	ActiveThreshold time.Duration `yaml:"active_threshold" split_words:"true"`
	RateThreshold   float64       `yaml:"rate_threshold" split_words:"true"`
	KeyBuffer       int           `yaml:"key_buffer" split_words:"true"`
	KeyboardCapture bool          `yaml:"keyboard_capture" split_words:"true"`
	KeyboardDevices []string      `yaml:"keyboard_devices,omitempty" split_words:"true"`
}

type StorageConfig struct {
	// DataDir holds the database, key, pid file and logs. Empty means ~/.deepfocus.
	DataDir string `yaml:"data_dir" split_words:"true"`
	// Key is an optional hex encoded database key; otherwise a key file is used.
	Key string `yaml:"key" split_words:"true"`
}

type LogConfig struct {
	Level      string `yaml:"level" split_words:"true"`
	File       string `yaml:"file" split_words:"true"`
	MaxSizeMB  int    `yaml:"max_size_mb" split_words:"true"`
	MaxBackups int    `yaml:"max_backups" split_words:"true"`
	Console    bool   `yaml:"console" split_words:"true"`
}

type SmartConfig struct {
	Enabled bool `yaml:"enabled" split_words:"true"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Host:            "127.0.0.1",
			Port:            5000,
			ShutdownTimeout: 5 * time.Second,
		},
		Monitor: MonitorConfig{
			PollInterval:    5 * time.Second,
			SenseTimeout:    2 * time.Second,
			IdleThreshold:   5 * time.Minute,
			KeystrokeWindow: 60 * time.Second,
			ActiveThreshold: 30 * time.Second,
			RateThreshold:   10,
			KeyBuffer:       256,
			KeyboardCapture: true,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
	}
}

// DefaultPath returns ~/.deepfocus/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".deepfocus", "config.yaml")
}

// Load reads configuration from path. An empty path falls back to
// ./config.yaml, then DefaultPath; a missing default file is not an error.
func Load(path string) (*Config, error) {
	// .env files are optional.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	if path == "" {
		for _, candidate := range []string{"config.yaml", DefaultPath()} {
			if candidate == "" {
				continue
			}
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process env vars: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the daemon cannot run with.
func (c *Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("invalid api port %d", c.API.Port)
	}
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor poll_interval must be positive")
	}
	if c.Monitor.KeystrokeWindow <= 0 {
		return fmt.Errorf("monitor keystroke_window must be positive")
	}
	return nil
}

// YAML encodes c in the config file format.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

// Write saves c as YAML at path, creating parent directories.
func (c *Config) Write(path string) error {
	data, err := c.YAML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
