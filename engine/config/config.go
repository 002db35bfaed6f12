// Package config loads the engine configuration from TOML and watches it for changes.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full engine configuration.
type Config struct {
	Window WindowConfig `toml:"window"`
	Render RenderConfig `toml:"render"`
	Camera CameraConfig `toml:"camera"`
	Log    LogConfig    `toml:"log"`
}

// WindowConfig configures the application window.
type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// RenderConfig configures the GPU context and the frame.
type RenderConfig struct {
	// PresentMode is one of "vsync", "fifo", "uncapped", "immediate" or "mailbox".
	PresentMode string `toml:"present_mode"`

	// ClearColor is the sRGB color the scene pass clears to.
	ClearColor common.Vec4 `toml:"clear_color"`

	// ShaderDir, when set, replaces the embedded shader sources with a directory on disk.
	ShaderDir string `toml:"shader_dir"`

	ValidateShaders bool `toml:"validate_shaders"`
}

// CameraConfig configures the projection and the camera controller.
type CameraConfig struct {
	// Fov is the vertical field of view in degrees.
	Fov         float32 `toml:"fov"`
	Near        float32 `toml:"near"`
	Far         float32 `toml:"far"`
	Speed       float32 `toml:"speed"`
	Sensitivity float32 `toml:"sensitivity"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used for fields a file leaves out.
//
// Returns:
//   - Config: the defaults
func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:  "oxy-forward",
			Width:  1280,
			Height: 720,
		},
		Render: RenderConfig{
			PresentMode: "vsync",
			ClearColor:  common.Vec4{0.1, 0.1, 0.1, 1},
		},
		Camera: CameraConfig{
			Fov:         45,
			Near:        0.1,
			Far:         100,
			Speed:       4,
			Sensitivity: 0.4,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Parse decodes TOML over the defaults and validates the result.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the configuration
//   - error: a decode error or an error wrapping ErrInvalid
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return cfg, fmt.Errorf("config: line %d column %d: %w", row, col, err)
		}
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Load reads and parses a TOML file. A missing file yields the defaults.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Config: the configuration
//   - error: a read, decode or validation error
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Save writes cfg to path as TOML.
//
// Parameters:
//   - path: the file path
//   - cfg: the configuration
//
// Returns:
//   - error: an encode or write error
func Save(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the ranges the renderer relies on.
//
// Returns:
//   - error: an error wrapping ErrInvalid, or nil
func (c Config) Validate() error {
	switch {
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Window.Width, c.Window.Height)
	case c.Camera.Fov <= 0 || c.Camera.Fov >= 180:
		return fmt.Errorf("%w: fov %g outside (0, 180)", ErrInvalid, c.Camera.Fov)
	case c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near:
		return fmt.Errorf("%w: depth range [%g, %g]", ErrInvalid, c.Camera.Near, c.Camera.Far)
	}
	return nil
}
