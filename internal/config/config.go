package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pixelstream/viewer/internal/frame"
	"github.com/pixelstream/viewer/internal/protocol"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Viewer     ViewerConfig     `yaml:"viewer"`
	Session    SessionConfig    `yaml:"session"`
	Reassembly ReassemblyConfig `yaml:"reassembly"`
	Server     ServerConfig     `yaml:"server"`
}

type ViewerConfig struct {
	URL          string `yaml:"url"`
	ClientName   string `yaml:"client_name"`
	ColorScale   string `yaml:"color_scale"`
	ResizePolicy string `yaml:"resize_policy"`
	FPS          int    `yaml:"fps"`
	LogFile      string `yaml:"log_file"`
}

type SessionConfig struct {
	BaseDelay    time.Duration `yaml:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Jitter       float64       `yaml:"jitter"`
	MaxAttempts  int           `yaml:"max_attempts"`
	PingInterval time.Duration `yaml:"ping_interval"`
	PongTimeout  time.Duration `yaml:"pong_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type ReassemblyConfig struct {
	Capacity   int           `yaml:"capacity"`
	GapTimeout time.Duration `yaml:"gap_timeout"`
}

type ServerConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	Width       int           `yaml:"width"`
	Height      int           `yaml:"height"`
	Tick        time.Duration `yaml:"tick"`
	RunLength   int           `yaml:"run_length"`
	ResizeEvery int           `yaml:"resize_every"`
	ColorScale  string        `yaml:"color_scale"`
	Chaos       ChaosConfig   `yaml:"chaos"`
}

// ChaosConfig makes the frame server misbehave on purpose. Probabilities are
// per outgoing op.
type ChaosConfig struct {
	Reorder   float64 `yaml:"reorder"`
	Duplicate float64 `yaml:"duplicate"`
	Drop      float64 `yaml:"drop"`
	Seed      int64   `yaml:"seed"`
}

func defaultConfig() *Config {
	return &Config{
		Viewer: ViewerConfig{
			URL:          "ws://127.0.0.1:8080/connect",
			ClientName:   "pixelview",
			ColorScale:   "unit",
			ResizePolicy: "preserve",
			FPS:          60,
			LogFile:      "pixelview.log",
		},
		Session: SessionConfig{
			BaseDelay:    500 * time.Millisecond,
			MaxDelay:     30 * time.Second,
			Jitter:       0.2,
			MaxAttempts:  10,
			PingInterval: 30 * time.Second,
			PongTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Reassembly: ReassemblyConfig{
			Capacity:   1024,
			GapTimeout: 2 * time.Second,
		},
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        8080,
			Width:       64,
			Height:      32,
			Tick:        50 * time.Millisecond,
			RunLength:   16,
			ResizeEvery: 400,
			ColorScale:  "unit",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults when path does
// not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if _, err := protocol.ParseScale(c.Viewer.ColorScale); err != nil {
		return fmt.Errorf("viewer.color_scale: %w", err)
	}
	if _, err := protocol.ParseScale(c.Server.ColorScale); err != nil {
		return fmt.Errorf("server.color_scale: %w", err)
	}
	if _, err := frame.ParseResizePolicy(c.Viewer.ResizePolicy); err != nil {
		return fmt.Errorf("viewer.resize_policy: %w", err)
	}
	if c.Viewer.FPS <= 0 || c.Viewer.FPS > 240 {
		return fmt.Errorf("viewer.fps must be in 1..240, got %d", c.Viewer.FPS)
	}
	if c.Session.BaseDelay <= 0 || c.Session.MaxDelay < c.Session.BaseDelay {
		return fmt.Errorf("session: need 0 < base_delay <= max_delay, got %v and %v", c.Session.BaseDelay, c.Session.MaxDelay)
	}
	if c.Session.Jitter < 0 || c.Session.Jitter > 1 {
		return fmt.Errorf("session.jitter must be in [0,1], got %v", c.Session.Jitter)
	}
	if c.Session.MaxAttempts < 0 {
		return fmt.Errorf("session.max_attempts must be >= 0, got %d", c.Session.MaxAttempts)
	}
	if c.Reassembly.Capacity <= 0 {
		return fmt.Errorf("reassembly.capacity must be positive, got %d", c.Reassembly.Capacity)
	}
	if c.Reassembly.GapTimeout <= 0 {
		return fmt.Errorf("reassembly.gap_timeout must be positive, got %v", c.Reassembly.GapTimeout)
	}
	if c.Server.Width <= 0 || c.Server.Height <= 0 ||
		c.Server.Width > protocol.MaxDimension || c.Server.Height > protocol.MaxDimension {
		return fmt.Errorf("server: invalid frame size %dx%d", c.Server.Width, c.Server.Height)
	}
	if c.Server.RunLength <= 0 {
		return fmt.Errorf("server.run_length must be positive, got %d", c.Server.RunLength)
	}
	for name, p := range map[string]float64{
		"reorder":   c.Server.Chaos.Reorder,
		"duplicate": c.Server.Chaos.Duplicate,
		"drop":      c.Server.Chaos.Drop,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("server.chaos.%s must be in [0,1], got %v", name, p)
		}
	}
	return nil
}

// FrameInterval is the display refresh interval derived from Viewer.FPS.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.Viewer.FPS)
}

// Addr is the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
