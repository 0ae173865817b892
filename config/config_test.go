package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"zero quality interval", func(c *Config) { c.Quality.SampleInterval = 0 }},
		{"positive ducking threshold", func(c *Config) { c.Ducking.ThresholdDB = 3 }},
		{"positive reduce", func(c *Config) { c.Ducking.ReduceDB = 1 }},
		{"zero attack", func(c *Config) { c.Ducking.AttackMs = 0 }},
		{"zero release", func(c *Config) { c.Ducking.ReleaseMs = 0 }},
		{"zero pump interval", func(c *Config) { c.Record.PumpInterval = 0 }},
		{"zero frame size", func(c *Config) { c.Record.FrameSize = 0 }},
		{"empty log level", func(c *Config) { c.Logging.Level = "" }},
		{"bogus log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate accepted an invalid config", tt.name)
		}
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("sample rate = %d, want default 48000", cfg.Audio.SampleRate)
	}
}

func TestLoadAppliesFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "navigator.yaml")
	body := `
audio:
  sample_rate: 44100
quality:
  sample_interval: 5s
ducking:
  threshold_db: -40
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config fixture failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("sample rate = %d, want 44100", cfg.Audio.SampleRate)
	}
	if cfg.Quality.SampleInterval != 5*time.Second {
		t.Errorf("quality interval = %v, want 5s", cfg.Quality.SampleInterval)
	}
	if cfg.Ducking.ThresholdDB != -40 {
		t.Errorf("threshold = %v, want -40", cfg.Ducking.ThresholdDB)
	}
	// Unset fields keep their defaults.
	if cfg.Ducking.ReleaseMs != 300 {
		t.Errorf("release = %v, want default 300", cfg.Ducking.ReleaseMs)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "navigator.yaml")
	if err := os.WriteFile(path, []byte("audio:\n  sample_rate: 0\n"), 0o644); err != nil {
		t.Fatalf("writing config fixture failed: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load should reject a config that fails validation")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NAVIGATOR_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level = %q, want env override warn", cfg.Logging.Level)
	}
}
