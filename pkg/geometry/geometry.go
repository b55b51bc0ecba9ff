// Package geometry computes the rotation exclusion margins and the angle
// sweep shared by the detectors and the deskew search.
package geometry

import (
	"fmt"
	"math"
)

const eps = 1e-9

// LimitLeft returns how many columns at the left (and right) border of a
// w x h frame rotated about its center by angle degrees can contain black
// fill brought in from outside the source. Zero at angle 0.
func LimitLeft(w, h int, angle float64) int {
	w2, h2 := float64(w>>1), float64(h>>1)
	r := math.Hypot(w2, h2)
	theta := math.Atan2(h2, w2)
	rad := math.Abs(angle) * math.Pi / 180

	limit := int(w2) - int(math.Floor(r*math.Cos(theta+rad)+eps))
	if limit < 0 {
		return 0
	}
	return limit
}

// LimitTop is LimitLeft for the top and bottom borders.
func LimitTop(w, h int, angle float64) int {
	w2, h2 := float64(w>>1), float64(h>>1)
	r := math.Hypot(w2, h2)
	theta := math.Atan2(h2, w2)
	rad := math.Abs(angle) * math.Pi / 180

	limit := int(h2) - int(math.Floor(r*math.Sin(theta-rad)+eps))
	if limit < 0 {
		return 0
	}
	return limit
}

// SweepConfig describes a closed, evenly stepped range of angles in degrees.
type SweepConfig struct {
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
	Step float64 `json:"step" yaml:"step"`
}

// DefaultSweep is -1.0 to +1.0 degrees in 0.05 degree steps (41 angles).
func DefaultSweep() SweepConfig {
	return SweepConfig{Min: -1.0, Max: 1.0, Step: 0.05}
}

// Validate checks that the sweep is non-empty and finite.
func (s SweepConfig) Validate() error {
	if s.Step <= 0 {
		return fmt.Errorf("sweep step must be positive, got %v", s.Step)
	}
	if s.Max < s.Min {
		return fmt.Errorf("sweep max %v below min %v", s.Max, s.Min)
	}
	if (s.Max-s.Min)/s.Step > 10000 {
		return fmt.Errorf("sweep of %v..%v step %v has too many angles", s.Min, s.Max, s.Step)
	}
	return nil
}

// Angles expands the sweep. Samples are computed as Min + k*Step and rounded
// to 1e-6 so that accumulated float error never drops the final angle or
// turns 0 into -1e-17.
func (s SweepConfig) Angles() []float64 {
	n := int(math.Floor((s.Max-s.Min)/s.Step+1e-6)) + 1
	out := make([]float64, 0, n)
	for k := 0; k < n; k++ {
		a := s.Min + float64(k)*s.Step
		a = math.Round(a*1e6) / 1e6
		if a == 0 {
			a = 0
		}
		out = append(out, a)
	}
	return out
}

// Sweep returns the default 41-angle sweep.
func Sweep() []float64 {
	return DefaultSweep().Angles()
}

// WithoutZero drops angles within tol of zero.
func WithoutZero(angles []float64, tol float64) []float64 {
	out := make([]float64, 0, len(angles))
	for _, a := range angles {
		if math.Abs(a) < tol {
			continue
		}
		out = append(out, a)
	}
	return out
}
