package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/leafcrop"
	"github.com/menta2k/leafcrop/internal/logger"
	"github.com/menta2k/leafcrop/pkg/detect"
	"github.com/menta2k/leafcrop/pkg/geometry"
	"github.com/menta2k/leafcrop/pkg/refine"
	"github.com/menta2k/leafcrop/pkg/skew"
	"github.com/menta2k/leafcrop/pkg/transform"
)

// Config holds the application configuration
type Config struct {
	Detect   detect.Config          `json:"detect" yaml:"detect"`
	Sweep    geometry.SweepConfig   `json:"sweep" yaml:"sweep"`
	Refine   refine.Config          `json:"refine" yaml:"refine"`
	Skew     skew.Config            `json:"skew" yaml:"skew"`
	Pipeline PipelineConfig         `json:"pipeline" yaml:"pipeline"`
	Output   leafcrop.OutputOptions `json:"output" yaml:"output"`
	Review   ReviewConfig           `json:"review" yaml:"review"`
	Log      LogConfig              `json:"log" yaml:"log"`
}

// PipelineConfig holds the settings shared by all stages
type PipelineConfig struct {
	Reduction int               `json:"reduction" yaml:"reduction"`
	Weights   transform.Weights `json:"weights" yaml:"weights"`
	Workers   int               `json:"workers" yaml:"workers"`
}

// ReviewConfig holds the optional vision model check
type ReviewConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Backend string `json:"backend" yaml:"backend"`
	URL     string `json:"url" yaml:"url"`
	Model   string `json:"model" yaml:"model"`
	Prompt  string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	MaxDim  int    `json:"max_dim" yaml:"max_dim"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns a configuration with default values
func Default() *Config {
	p := leafcrop.DefaultConfig()
	return &Config{
		Detect: p.Detect,
		Sweep:  p.Sweep,
		Refine: p.Refine,
		Skew:   p.Skew,
		Pipeline: PipelineConfig{
			Reduction: p.Reduction,
			Weights:   p.Weights,
			Workers:   p.Workers,
		},
		Output: leafcrop.DefaultOutputOptions(),
		Review: ReviewConfig{
			Backend: "ollama",
			URL:     "http://localhost:11434",
			Model:   "qwen2.5vl:7b",
			MaxDim:  1024,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Cropper converts the stage sections into the pipeline configuration
func (c *Config) Cropper() leafcrop.Config {
	return leafcrop.Config{
		Detect:    c.Detect,
		Sweep:     c.Sweep,
		Refine:    c.Refine,
		Skew:      c.Skew,
		Weights:   c.Pipeline.Weights,
		Reduction: c.Pipeline.Reduction,
		Workers:   c.Pipeline.Workers,
	}
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}

// LoadFromFile loads a JSON or, for .yaml/.yml files, YAML configuration.
// Settings missing from the file keep their defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(filename) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration as JSON or, for .yaml/.yml files, YAML
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(filename) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Cropper().Validate(); err != nil {
		return err
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}
	for _, f := range []string{c.Output.Format, c.Output.DebugFormat} {
		switch strings.ToLower(f) {
		case "jpg", "jpeg", "png", "webp":
		default:
			return fmt.Errorf("output format %q must be jpg, png or webp", f)
		}
	}
	if c.Output.LineWidth < 1 {
		return fmt.Errorf("output.line_width must be positive")
	}

	if c.Review.Enabled {
		switch c.Review.Backend {
		case "ollama", "llamacpp":
		default:
			return fmt.Errorf("review.backend must be ollama or llamacpp, got %q", c.Review.Backend)
		}
		if c.Review.Model == "" {
			return fmt.Errorf("review.model cannot be empty")
		}
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./leafcrop.yaml"
	}
	return filepath.Join(home, ".config", "leafcrop", "config.yaml")
}
