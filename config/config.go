// Package config handles the bridge configuration, read from YAML files.
package config

import (
	"fmt"
	"os"

	"github.com/benoitkugler/svgbridge/blob"
	"github.com/benoitkugler/svgbridge/host"
	"github.com/benoitkugler/svgbridge/raster"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Blob     BlobConfig     `yaml:"blob"`
	Raster   RasterConfig   `yaml:"raster"`
	Download DownloadConfig `yaml:"download"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // console | json
}

type BlobConfig struct {
	Origin string `yaml:"origin"` // prefix of the blob URLs
}

type RasterConfig struct {
	Supersample int    `yaml:"supersample"` // 1 to raster.MaxSupersample
	ErrorMode   string `yaml:"error_mode"`  // ignore | warn | strict
	MaxPixels   int    `yaml:"max_pixels"`  // bound of width * height * supersample²
}

type DownloadConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns the configuration used without file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadFile reads a YAML configuration file, fills the missing
// values with defaults and validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse is like LoadFile, for in-memory content.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Blob.Origin == "" {
		c.Blob.Origin = blob.DefaultOrigin
	}
	if c.Raster.Supersample == 0 {
		c.Raster.Supersample = 1
	}
	if c.Raster.MaxPixels == 0 {
		c.Raster.MaxPixels = host.DefaultMaxPixels
	}
	if c.Raster.ErrorMode == "" {
		c.Raster.ErrorMode = "ignore"
	}
	if c.Download.Dir == "" {
		c.Download.Dir = "."
	}
}

// Validate rejects unknown enumerated values and out of range numbers.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config: log.format: unknown format %q", c.Log.Format)
	}
	if s := c.Raster.Supersample; s < 1 || s > raster.MaxSupersample {
		return fmt.Errorf("config: raster.supersample: %d not in [1, %d]", s, raster.MaxSupersample)
	}
	if c.Raster.MaxPixels < 1 {
		return fmt.Errorf("config: raster.max_pixels: %d is not positive", c.Raster.MaxPixels)
	}
	if _, err := raster.ParseErrorMode(c.Raster.ErrorMode); err != nil {
		return fmt.Errorf("config: raster.error_mode: %w", err)
	}
	return nil
}

// Logger builds the zap logger described by the log section.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	var zc zap.Config
	if c.Log.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// NewDecoder returns a decoder set up by the raster section.
func (c *Config) NewDecoder(blobs *blob.Registry) *raster.Decoder {
	dec := raster.NewDecoder(blobs)
	dec.Supersample = c.Raster.Supersample
	dec.MaxPixels = c.Raster.MaxPixels
	dec.ErrorMode, _ = raster.ParseErrorMode(c.Raster.ErrorMode) // checked by Validate
	return dec
}
