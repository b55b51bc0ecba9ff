package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/leafcrop/pkg/refine"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cropper := cfg.Cropper()
	assert.Equal(t, 8, cropper.Reduction)
	assert.Equal(t, 140.0, cropper.Refine.BrightnessFloor)
	assert.Len(t, cropper.Sweep.Angles(), 41)
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"leafcrop.json", "leafcrop.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := Default()
			cfg.Pipeline.Reduction = 4
			cfg.Refine.Mode = refine.ModeBlock
			cfg.Output.Format = "webp"
			require.NoError(t, cfg.SaveToFile(path))

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestPartialYAMLKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  reduction: 2\nrefine:\n  search_radius: 16\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Pipeline.Reduction)
	assert.Equal(t, 16, cfg.Refine.SearchRadius)
	assert.Equal(t, 0.30, cfg.Detect.KernelHeight)
	assert.Equal(t, 0.05, cfg.Sweep.Step)
	require.NoError(t, cfg.Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"reduction", func(c *Config) { c.Pipeline.Reduction = 0 }},
		{"quality", func(c *Config) { c.Output.Quality = 0 }},
		{"format", func(c *Config) { c.Output.Format = "gif" }},
		{"line width", func(c *Config) { c.Output.LineWidth = 0 }},
		{"review backend", func(c *Config) { c.Review.Enabled = true; c.Review.Backend = "openai" }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"sweep", func(c *Config) { c.Sweep.Step = 0 }},
		{"refine", func(c *Config) { c.Refine.Mode = "edges" }},
		{"weights", func(c *Config) { c.Pipeline.Weights.R = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
