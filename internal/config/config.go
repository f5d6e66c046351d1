package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the data-loader configuration
type Config struct {
	// Source is the path to the BBTXT annotation file
	Source string `json:"source"`
	// Width and Height are the network input spatial size
	Width  int `json:"width"`
	Height int `json:"height"`
	// ReferenceSize is the pixel size a selected box's larger dimension is
	// scaled to after crop and resize
	ReferenceSize float64 `json:"reference_size"`
	BatchSize     int     `json:"batch_size"`
	Shuffle       bool    `json:"shuffle"`
	// MaxBoxesPerImage bounds the per-image box list; excess boxes are
	// dropped during parsing
	MaxBoxesPerImage int `json:"max_boxes_per_image"`
	// Seed initialises the worker's random stream. Zero seeds from the
	// current time; any other value makes the sample sequence reproducible
	Seed  int64       `json:"seed"`
	Debug DebugConfig `json:"debug"`
}

// DebugConfig holds configuration for augmented-sample dumps
type DebugConfig struct {
	Dir     string `json:"dir"`
	Format  string `json:"format"`
	Quality int    `json:"quality"`
}

// Default returns a configuration with default values. Source, Width, Height
// and ReferenceSize have no usable defaults and must be set by the caller.
func Default() *Config {
	return &Config{
		BatchSize:        32,
		Shuffle:          true,
		MaxBoxesPerImage: 20,
		Debug: DebugConfig{
			Format:  "png",
			Quality: 90,
		},
	}
}

// LoadFromFile loads configuration from a JSON file, applying defaults for
// absent fields
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("source must be set")
	}

	if c.Width < 1 {
		return fmt.Errorf("width must be set")
	}

	if c.Height < 1 {
		return fmt.Errorf("height must be set")
	}

	if c.ReferenceSize <= 0 {
		return fmt.Errorf("reference_size must be set")
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be positive")
	}

	if c.MaxBoxesPerImage < 1 {
		return fmt.Errorf("max_boxes_per_image must be positive")
	}

	if c.Debug.Quality < 0 || c.Debug.Quality > 100 {
		return fmt.Errorf("debug.quality must be between 0 and 100")
	}

	return nil
}
