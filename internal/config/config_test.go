// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsAreValid(t *testing.T) {
	if err := NewConfig().Validate(); err != nil {
		t.Fatalf("default configuration failed validation: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"non-power-of-2 transform size", func(c *Config) { c.DSP.TransformSize = 1000 }},
		{"zero smoothing", func(c *Config) { c.DSP.Smoothing = 0 }},
		{"smoothing above 1", func(c *Config) { c.DSP.Smoothing = 1.5 }},
		{"peak decay of 1", func(c *Config) { c.DSP.PeakDecay = 1 }},
		{"target rate too low", func(c *Config) { c.DSP.TargetRate = 10 }},
		{"sample rate too low", func(c *Config) { c.Audio.SampleRate = 4000 }},
		{"unknown mode", func(c *Config) { c.Display.Mode = "plasma" }},
		{"sensitivity out of range", func(c *Config) { c.Display.Sensitivity = 9 }},
		{"bad websocket address", func(c *Config) { c.Transport.WebSocketAddr = "not an address" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadConfigOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "termsonic.yaml")
	body := []byte(`
dsp:
  transform_size: 4096
  smoothing: 0.5
display:
  mode: circular
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DSP.TransformSize != 4096 {
		t.Errorf("TransformSize = %d, expected 4096", cfg.DSP.TransformSize)
	}
	if cfg.DSP.Smoothing != 0.5 {
		t.Errorf("Smoothing = %f, expected 0.5", cfg.DSP.Smoothing)
	}
	if cfg.Display.Mode != "circular" {
		t.Errorf("Mode = %q, expected circular", cfg.Display.Mode)
	}
	// Untouched fields keep their defaults.
	if cfg.DSP.PeakDecay != DefaultPeakDecay {
		t.Errorf("PeakDecay = %f, expected default %f", cfg.DSP.PeakDecay, DefaultPeakDecay)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for an explicitly named missing file")
	}
}

func TestLoadConfigRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "termsonic.yaml")
	if err := os.WriteFile(path, []byte("dsp:\n  transform_size: 999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected validation error for non-power-of-2 size from file")
	}
}
