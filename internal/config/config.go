// Package config loads the optional YAML settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresmejia3/harris/internal/harris"
	"github.com/andresmejia3/harris/internal/sobel"
	"gopkg.in/yaml.v3"
)

// Config is the file layout. Every field has a default, so a partial file is fine.
type Config struct {
	Detector DetectorConfig `yaml:"detector"`

	// Engines is the number of images processed at once in batch mode.
	Engines int `yaml:"engines"`
	// Workers is the row fan-out per image. 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`

	Database DatabaseConfig `yaml:"database"`
	Output   OutputConfig   `yaml:"output"`
}

// DetectorConfig mirrors harris.Config in file form.
type DetectorConfig struct {
	Size             string  `yaml:"size"`    // "3" or "5"
	K                float64 `yaml:"k"`       // sensitivity
	ThresholdDivisor float64 `yaml:"divisor"` // map keeps score > max/divisor
	Formula          string  `yaml:"formula"` // compat, canonical
	Corners          int     `yaml:"corners"`
	GridX            int     `yaml:"grid_x"`
	GridY            int     `yaml:"grid_y"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type OutputConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"` // png, bmp, tiff, jpg
}

// Default returns the built-in settings.
func Default() *Config {
	d := harris.DefaultConfig()
	return &Config{
		Detector: DetectorConfig{
			Size:             "3",
			K:                d.K,
			ThresholdDivisor: d.ThresholdDivisor,
			Formula:          d.Formula.String(),
			Corners:          d.NCorners,
			GridX:            d.GridX,
			GridY:            d.GridY,
		},
		Engines: 1,
		Workers: 0,
		Output: OutputConfig{
			Dir:    "corners",
			Format: "png",
		},
	}
}

// Load reads path on top of Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields that Harris() and the batch runner depend on.
func (c *Config) Validate() error {
	if _, err := c.Harris(); err != nil {
		return err
	}
	if c.Engines < 1 {
		return fmt.Errorf("engines must be >= 1, got %d", c.Engines)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	switch c.Output.Format {
	case "png", "bmp", "tiff", "tif", "jpg", "jpeg":
	default:
		return fmt.Errorf("unsupported output format %q", c.Output.Format)
	}
	return nil
}

// Harris converts the detector section to a pipeline configuration.
func (c *Config) Harris() (harris.Config, error) {
	size, err := sobel.ParseSize(c.Detector.Size)
	if err != nil {
		return harris.Config{}, err
	}
	formula, err := harris.ParseFormula(c.Detector.Formula)
	if err != nil {
		return harris.Config{}, err
	}
	hc := harris.Config{
		Size:             size,
		K:                c.Detector.K,
		ThresholdDivisor: c.Detector.ThresholdDivisor,
		Formula:          formula,
		NCorners:         c.Detector.Corners,
		GridX:            c.Detector.GridX,
		GridY:            c.Detector.GridY,
	}
	return hc, hc.Validate()
}
