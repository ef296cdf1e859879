package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("sample_rate = %d, want 44100", cfg.Audio.SampleRate)
	}
	if cfg.Audio.AnalysisMode != "balanced" {
		t.Errorf("analysis_mode = %q, want balanced", cfg.Audio.AnalysisMode)
	}
	if cfg.Session.UpdateRate != 30 {
		t.Errorf("update_rate = %v, want 30", cfg.Session.UpdateRate)
	}
	if len(cfg.Agents) != 2 {
		t.Fatalf("agents = %d, want 2 defaults", len(cfg.Agents))
	}
	if cfg.Agents[0].Type != "drums" || cfg.Agents[1].Type != "bass" {
		t.Errorf("default agents = %q/%q, want drums/bass", cfg.Agents[0].Type, cfg.Agents[1].Type)
	}
	if cfg.Animation.Protocol != "osc" {
		t.Errorf("animation.protocol = %q, want osc", cfg.Animation.Protocol)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perform.yaml")
	body := `
audio:
  sample_rate: 48000
  analysis_mode: low_latency
session:
  update_rate: 60
agents:
  - type: keys
    enabled: true
    responsiveness: 0.5
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("sample_rate = %d, want 48000", cfg.Audio.SampleRate)
	}
	if cfg.Audio.AnalysisMode != "low_latency" {
		t.Errorf("analysis_mode = %q, want low_latency", cfg.Audio.AnalysisMode)
	}
	if cfg.Session.UpdateRate != 60 {
		t.Errorf("update_rate = %v, want 60", cfg.Session.UpdateRate)
	}
	if len(cfg.Agents) != 1 || cfg.Agents[0].Type != "keys" {
		t.Errorf("agents = %+v, want single keys agent", cfg.Agents)
	}
	// Untouched sections keep their defaults.
	if cfg.Audio.BufferSize != 1024 {
		t.Errorf("buffer_size = %d, want default 1024", cfg.Audio.BufferSize)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad analysis mode", "audio:\n  analysis_mode: turbo\n"},
		{"bad agent type", "agents:\n  - type: theremin\n    enabled: true\n    responsiveness: 0.5\n"},
		{"bad responsiveness", "agents:\n  - type: drums\n    enabled: true\n    responsiveness: 1.5\n"},
		{"bad protocol", "animation:\n  protocol: carrier-pigeon\n"},
		{"zero update rate", "session:\n  update_rate: 0\n"},
		{"bad log level", "log:\n  level: loud\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "perform.yaml")
			if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("Load accepted invalid config")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load accepted a missing explicit config file")
	}
}

func TestLogLevel(t *testing.T) {
	cfg := &Config{}
	for lvl, want := range map[string]string{
		"debug": "DEBUG", "info": "INFO", "warn": "WARN", "error": "ERROR",
	} {
		cfg.Log.Level = lvl
		if got := cfg.LogLevel().String(); got != want {
			t.Errorf("LogLevel(%q) = %s, want %s", lvl, got, want)
		}
	}
}
