package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
viewer:
  url: "ws://10.0.0.5:9000/connect"
  color_scale: byte
  fps: 30
session:
  base_delay: 250ms
  max_attempts: 3
reassembly:
  capacity: 64
  gap_timeout: 750ms
server:
  port: 9000
  chaos:
    reorder: 0.1
    seed: 7
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Viewer.URL != "ws://10.0.0.5:9000/connect" {
		t.Errorf("Viewer.URL = %q", cfg.Viewer.URL)
	}
	if cfg.Viewer.ColorScale != "byte" {
		t.Errorf("Viewer.ColorScale = %q, want byte", cfg.Viewer.ColorScale)
	}
	if cfg.FrameInterval() != time.Second/30 {
		t.Errorf("FrameInterval() = %v, want %v", cfg.FrameInterval(), time.Second/30)
	}
	if cfg.Session.BaseDelay != 250*time.Millisecond {
		t.Errorf("Session.BaseDelay = %v, want 250ms", cfg.Session.BaseDelay)
	}
	if cfg.Session.MaxAttempts != 3 {
		t.Errorf("Session.MaxAttempts = %d, want 3", cfg.Session.MaxAttempts)
	}
	if cfg.Reassembly.Capacity != 64 || cfg.Reassembly.GapTimeout != 750*time.Millisecond {
		t.Errorf("Reassembly = %+v", cfg.Reassembly)
	}
	if cfg.Server.Chaos.Reorder != 0.1 || cfg.Server.Chaos.Seed != 7 {
		t.Errorf("Server.Chaos = %+v", cfg.Server.Chaos)
	}

	// Defaults should still be applied for unspecified fields.
	if cfg.Session.MaxDelay != 30*time.Second {
		t.Errorf("Session.MaxDelay = %v, want default 30s", cfg.Session.MaxDelay)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Addr() != "127.0.0.1:9000" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if cfg.Viewer.ClientName != "pixelview" {
		t.Errorf("Viewer.ClientName = %q, want default", cfg.Viewer.ClientName)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() on missing file should return error")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if cfg.Viewer.URL != "ws://127.0.0.1:8080/connect" {
		t.Errorf("Viewer.URL = %q, want default", cfg.Viewer.URL)
	}
	if cfg.Reassembly.GapTimeout != 2*time.Second {
		t.Errorf("Reassembly.GapTimeout = %v, want 2s", cfg.Reassembly.GapTimeout)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "viewer: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() should fail on invalid YAML")
	}
	if _, err := LoadOrDefault(path); err == nil {
		t.Fatal("LoadOrDefault() should fail on invalid YAML, not fall back")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"color scale", func(c *Config) { c.Viewer.ColorScale = "percent" }, "viewer.color_scale"},
		{"server color scale", func(c *Config) { c.Server.ColorScale = "hsv" }, "server.color_scale"},
		{"resize policy", func(c *Config) { c.Viewer.ResizePolicy = "stretch" }, "viewer.resize_policy"},
		{"fps", func(c *Config) { c.Viewer.FPS = 0 }, "viewer.fps"},
		{"delays", func(c *Config) { c.Session.MaxDelay = time.Millisecond }, "base_delay"},
		{"jitter", func(c *Config) { c.Session.Jitter = 2 }, "session.jitter"},
		{"attempts", func(c *Config) { c.Session.MaxAttempts = -1 }, "session.max_attempts"},
		{"capacity", func(c *Config) { c.Reassembly.Capacity = 0 }, "reassembly.capacity"},
		{"gap timeout", func(c *Config) { c.Reassembly.GapTimeout = 0 }, "reassembly.gap_timeout"},
		{"frame size", func(c *Config) { c.Server.Width = 0 }, "invalid frame size"},
		{"run length", func(c *Config) { c.Server.RunLength = 0 }, "server.run_length"},
		{"chaos", func(c *Config) { c.Server.Chaos.Drop = 1.5 }, "server.chaos.drop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %q, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"))
	if err != nil {
		t.Fatalf("Load example: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("example config invalid: %v", err)
	}
	if *cfg != *Default() {
		t.Errorf("example config drifted from defaults:\n got %+v\nwant %+v", *cfg, *Default())
	}
}
