// Package config reads and writes the absorb configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/soypat/absorb/capture"
	"github.com/soypat/absorb/loop"
	"github.com/soypat/absorb/render"
)

// Camera drivers.
const (
	DriverMediaDevices = "mediadevices"
	DriverGoCV         = "gocv"
	DriverV4L2         = "v4l2"
	DriverFake         = "fake"
)

type CameraConfig struct {
	Driver string `json:"driver"`
	Facing string `json:"facing"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type DisplayConfig struct {
	RefreshRate   int  `json:"refresh_rate"`
	NarrowWidth   int  `json:"narrow_width"`
	GPU           bool `json:"gpu"`
	StartAbsorbed bool `json:"start_absorbed"`
	WindowWidth   int  `json:"window_width"`
	WindowHeight  int  `json:"window_height"`
}

type AppConfig struct {
	Camera   CameraConfig  `json:"camera"`
	Display  DisplayConfig `json:"display"`
	LogLevel string        `json:"log_level"`
}

// Default returns the configuration used when no file exists.
func Default() *AppConfig {
	return &AppConfig{
		Camera: CameraConfig{
			Driver: DriverMediaDevices,
			Facing: capture.FacingFront.String(),
			Width:  capture.DefaultWidth,
			Height: capture.DefaultHeight,
		},
		Display: DisplayConfig{
			RefreshRate:  loop.DefaultRefreshRate,
			NarrowWidth:  render.DefaultNarrowWidth,
			WindowWidth:  960,
			WindowHeight: 720,
		},
		LogLevel: "info",
	}
}

// Validate checks field values and returns all problems found.
func (c *AppConfig) Validate() error {
	var errs []error
	switch c.Camera.Driver {
	case DriverMediaDevices, DriverGoCV, DriverV4L2, DriverFake:
	default:
		errs = append(errs, fmt.Errorf("unknown camera driver %q", c.Camera.Driver))
	}
	if _, err := capture.ParseFacing(c.Camera.Facing); err != nil {
		errs = append(errs, err)
	}
	if c.Camera.Width < 0 || c.Camera.Height < 0 {
		errs = append(errs, errors.New("negative camera resolution"))
	}
	if c.Display.RefreshRate < 0 || c.Display.RefreshRate > 240 {
		errs = append(errs, fmt.Errorf("refresh rate %d out of range 0..240", c.Display.RefreshRate))
	}
	if c.Display.NarrowWidth < 0 {
		errs = append(errs, errors.New("negative narrow width"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Facing returns the parsed camera facing, front when invalid.
func (c *AppConfig) Facing() capture.Facing {
	f, _ := capture.ParseFacing(c.Camera.Facing)
	return f
}

// Level parses LogLevel.
func (c *AppConfig) Level() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel)))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}

// Path returns the config file location following the XDG convention,
// i.e: ~/.config/absorb/config.json. The directory is not created.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("unable to determine user config directory: %w", err)
	}
	return filepath.Join(dir, "absorb", "config.json"), nil
}

// Load reads the config at the default path. A missing file yields the defaults.
func Load() (*AppConfig, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. Fields absent from the file keep their defaults.
func LoadFile(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	} else if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to the default path, creating its directory.
func Save(cfg *AppConfig) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveFile(path, cfg)
}

// SaveFile writes cfg to path as indented JSON, creating parent directories.
func SaveFile(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
