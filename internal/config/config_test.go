package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	c := Default()
	c.Source = "train.bbtxt"
	c.Width = 224
	c.Height = 224
	c.ReferenceSize = 50
	return c
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing source", func(c *Config) { c.Source = "" }},
		{"missing width", func(c *Config) { c.Width = 0 }},
		{"missing height", func(c *Config) { c.Height = 0 }},
		{"missing reference size", func(c *Config) { c.ReferenceSize = 0 }},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"zero box capacity", func(c *Config) { c.MaxBoxesPerImage = 0 }},
		{"bad debug quality", func(c *Config) { c.Debug.Quality = 500 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	c := validConfig()
	c.Seed = 99
	c.Shuffle = false
	if err := c.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if *loaded != *c {
		t.Errorf("round trip changed config: %+v vs %+v", loaded, c)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	minimal := []byte(`{"source":"t.bbtxt","width":100,"height":100,"reference_size":50}`)
	if err := os.WriteFile(path, minimal, 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if c.BatchSize != 32 || c.MaxBoxesPerImage != 20 || !c.Shuffle {
		t.Errorf("defaults not applied: %+v", c)
	}
}
