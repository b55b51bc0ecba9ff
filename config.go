package leafcrop

import (
	"fmt"

	"github.com/menta2k/leafcrop/pkg/detect"
	"github.com/menta2k/leafcrop/pkg/geometry"
	"github.com/menta2k/leafcrop/pkg/refine"
	"github.com/menta2k/leafcrop/pkg/skew"
	"github.com/menta2k/leafcrop/pkg/transform"
)

// minReducedSide is the smallest reduced buffer the detectors can work on
const minReducedSide = 32

// Config gathers the settings of every stage of the crop pipeline.
type Config struct {
	Detect detect.Config        `json:"detect" yaml:"detect"`
	Sweep  geometry.SweepConfig `json:"sweep" yaml:"sweep"`
	Refine refine.Config        `json:"refine" yaml:"refine"`
	Skew   skew.Config          `json:"skew" yaml:"skew"`

	// Weights convert the color leaf to luma
	Weights transform.Weights `json:"weights" yaml:"weights"`
	// Reduction is the integer factor between the full resolution leaf and
	// the buffer the edge detectors see
	Reduction int `json:"reduction" yaml:"reduction"`
	// Workers rotates this many sweep angles at once; 1 is sequential
	Workers int `json:"workers" yaml:"workers"`
}

func DefaultConfig() Config {
	return Config{
		Detect:    detect.DefaultConfig(),
		Sweep:     geometry.DefaultSweep(),
		Refine:    refine.DefaultConfig(),
		Skew:      skew.DefaultConfig(),
		Weights:   transform.DefaultWeights(),
		Reduction: 8,
		Workers:   1,
	}
}

func (c Config) Validate() error {
	if err := c.Detect.Validate(); err != nil {
		return err
	}
	if err := c.Sweep.Validate(); err != nil {
		return err
	}
	if err := c.Refine.Validate(); err != nil {
		return err
	}
	if err := c.Skew.Validate(); err != nil {
		return err
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.Reduction < 1 {
		return fmt.Errorf("reduction must be at least 1, got %d", c.Reduction)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// MinImageSide is the smallest leaf side the pipeline accepts
func (c Config) MinImageSide() int {
	return c.Reduction * minReducedSide
}
