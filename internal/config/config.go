// Package config loads PatternBoard settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Freehand tunes the variable-width stroke outline.
type Freehand struct {
	Thinning         float32 `toml:"thinning"`
	Smoothing        float32 `toml:"smoothing"`
	Streamline       float32 `toml:"streamline"`
	SimulatePressure bool    `toml:"simulate_pressure"`
}

// Drawing configures the clipped freehand drawing surface.
type Drawing struct {
	Width        int      `toml:"width"`
	Height       int      `toml:"height"`
	StrokeWidth  float32  `toml:"stroke_width"`
	Color        string   `toml:"color"`
	HistoryLimit int      `toml:"history_limit"`
	Freehand     Freehand `toml:"freehand"`
}

// Composite configures the compositing surface.
type Composite struct {
	Width           int     `toml:"width"`
	Height          int     `toml:"height"`
	Supersample     int     `toml:"supersample"`
	MaxBakeEdge     int     `toml:"max_bake_edge"`
	HandleTolerance float64 `toml:"handle_tolerance"`
	MinEdge         float64 `toml:"min_edge"`
	MaxEdge         float64 `toml:"max_edge"`
	MinResize       float64 `toml:"min_resize"`
}

// Storage configures where projects are persisted.
type Storage struct {
	Dir          string `toml:"dir"`
	Project      string `toml:"project"`
	HistoryLimit int    `toml:"history_limit"`
}

// Export sets print defaults.
type Export struct {
	DPI int `toml:"dpi"`
}

// Relay configures the LAN preview relay.
type Relay struct {
	Enabled   bool `toml:"enabled"`
	Port      int  `toml:"port"`
	Advertise bool `toml:"advertise"`
}

// Config is the complete application configuration.
type Config struct {
	LogLevel  string    `toml:"log_level"`
	Drawing   Drawing   `toml:"drawing"`
	Composite Composite `toml:"composite"`
	Storage   Storage   `toml:"storage"`
	Relay     Relay     `toml:"relay"`
	Export    Export    `toml:"export"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Drawing: Drawing{
			Width:        1200,
			Height:       1200,
			StrokeWidth:  10,
			Color:        "#F5A623",
			HistoryLimit: 50,
			Freehand: Freehand{
				Thinning:         0.5,
				Smoothing:        0.5,
				Streamline:       0.5,
				SimulatePressure: true,
			},
		},
		Composite: Composite{
			Width:           600,
			Height:          600,
			Supersample:     8,
			MaxBakeEdge:     4096,
			HandleTolerance: 4,
			MinEdge:         40,
			MaxEdge:         1000,
			MinResize:       20,
		},
		Storage: Storage{
			Dir:          "patternboard-data",
			Project:      "default",
			HistoryLimit: 10,
		},
		Relay: Relay{
			Port: 8888,
		},
		Export: Export{
			DPI: 300,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings no component can work with.
func (c Config) Validate() error {
	switch {
	case c.Drawing.Width <= 0 || c.Drawing.Height <= 0:
		return fmt.Errorf("config: drawing surface must be positive, got %dx%d", c.Drawing.Width, c.Drawing.Height)
	case c.Composite.Width <= 0 || c.Composite.Height <= 0:
		return fmt.Errorf("config: composite surface must be positive, got %dx%d", c.Composite.Width, c.Composite.Height)
	case c.Composite.Supersample < 1:
		return fmt.Errorf("config: supersample must be at least 1, got %d", c.Composite.Supersample)
	case c.Drawing.HistoryLimit < 1 || c.Storage.HistoryLimit < 1:
		return errors.New("config: history limits must be at least 1")
	case c.Export.DPI <= 0:
		return fmt.Errorf("config: export dpi must be positive, got %d", c.Export.DPI)
	}
	return nil
}
