// Package config loads Navigator session configuration from YAML with
// defaults and environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Config holds tunable parameters for a Navigator session.
type Config struct {
	Audio struct {
		SampleRate uint32 `yaml:"sample_rate"`
	} `yaml:"audio"`

	Quality struct {
		SampleInterval time.Duration `yaml:"sample_interval"`
	} `yaml:"quality"`

	Ducking struct {
		ThresholdDB float64 `yaml:"threshold_db"`
		ReduceDB    float64 `yaml:"reduce_db"`
		AttackMs    float64 `yaml:"attack_ms"`
		ReleaseMs   float64 `yaml:"release_ms"`
	} `yaml:"ducking"`

	Record struct {
		PumpInterval time.Duration `yaml:"pump_interval"`
		FrameSize    int           `yaml:"frame_size"`
	} `yaml:"record"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	if c.Quality.SampleInterval <= 0 {
		return fmt.Errorf("quality.sample_interval must be > 0")
	}

	if c.Ducking.ThresholdDB >= 0 {
		return fmt.Errorf("ducking.threshold_db must be < 0")
	}
	if c.Ducking.ReduceDB >= 0 {
		return fmt.Errorf("ducking.reduce_db must be < 0")
	}
	if c.Ducking.AttackMs <= 0 {
		return fmt.Errorf("ducking.attack_ms must be > 0")
	}
	if c.Ducking.ReleaseMs <= 0 {
		return fmt.Errorf("ducking.release_ms must be > 0")
	}

	if c.Record.PumpInterval <= 0 {
		return fmt.Errorf("record.pump_interval must be > 0")
	}
	if c.Record.FrameSize <= 0 {
		return fmt.Errorf("record.frame_size must be > 0")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}

	return nil
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides. A missing file yields defaults.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Audio.SampleRate = 48000

	cfg.Quality.SampleInterval = 2 * time.Second

	cfg.Ducking.ThresholdDB = -50.0
	cfg.Ducking.ReduceDB = -9.0
	cfg.Ducking.AttackMs = 50.0
	cfg.Ducking.ReleaseMs = 300.0

	cfg.Record.PumpInterval = 20 * time.Millisecond
	cfg.Record.FrameSize = 2048

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	return cfg
}

// ApplyLogging configures the process-wide logrus logger from the
// logging section.
func (c *Config) ApplyLogging() error {
	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Logging.Level, err)
	}
	logrus.SetLevel(level)

	switch c.Logging.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{})
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("NAVIGATOR_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("NAVIGATOR_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
}
