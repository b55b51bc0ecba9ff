package skew

import "fmt"

// Scorer names accepted by Config.Scorer
const (
	ScorerDSS = "dss"
	ScorerSAD = "sad"
)

// Config tunes the edge based deskew and the text skew estimator.
type Config struct {
	// Shrink trims the crop box by this fraction of the image on every side
	// before scoring
	Shrink float64 `json:"shrink" yaml:"shrink"`
	// ZeroTolerance drops sweep angles this close to zero; angle 0 is the
	// baseline
	ZeroTolerance float64 `json:"zero_tolerance" yaml:"zero_tolerance"`
	// Scorer is "dss" (differential square sum) or "sad" (row SAD)
	Scorer string `json:"scorer" yaml:"scorer"`
	// MinConfidence is the lowest max/min score ratio Deskew accepts.
	// Interpolation alone lifts the ratio of a structureless region to
	// about 3 under the dss scorer.
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`

	Text TextConfig `json:"text" yaml:"text"`
}

// TextConfig tunes the text line skew search on binarized pages.
type TextConfig struct {
	Reduction  int     `json:"reduction" yaml:"reduction"`
	SweepRange float64 `json:"sweep_range" yaml:"sweep_range"`
	SweepStep  float64 `json:"sweep_step" yaml:"sweep_step"`
	// MinStep ends the bisection refinement
	MinStep float64 `json:"min_step" yaml:"min_step"`
	// MinInk is the fraction of ink pixels below which there is no text
	MinInk float64 `json:"min_ink" yaml:"min_ink"`
	// MinScore is the lowest best score, in ink-count units, that counts
	// as text structure
	MinScore float64 `json:"min_score" yaml:"min_score"`
	// MinConfidence is the lowest best/worst score ratio accepted
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`
}

func DefaultConfig() Config {
	return Config{
		Shrink:        0.10,
		ZeroTolerance: 0.01,
		Scorer:        ScorerDSS,
		MinConfidence: 3.5,
		Text: TextConfig{
			Reduction:     4,
			SweepRange:    7,
			SweepStep:     1,
			MinStep:       0.01,
			MinInk:        0.002,
			MinScore:      10000,
			MinConfidence: 3,
		},
	}
}

func (c Config) Validate() error {
	if c.Shrink < 0 || c.Shrink >= 0.5 {
		return fmt.Errorf("skew.shrink must be in [0,0.5), got %v", c.Shrink)
	}
	if c.ZeroTolerance < 0 {
		return fmt.Errorf("skew.zero_tolerance must not be negative")
	}
	if c.MinConfidence < 0 {
		return fmt.Errorf("skew.min_confidence must not be negative")
	}
	if c.Scorer != ScorerDSS && c.Scorer != ScorerSAD {
		return fmt.Errorf("skew.scorer must be %q or %q, got %q", ScorerDSS, ScorerSAD, c.Scorer)
	}
	t := c.Text
	if t.Reduction < 1 {
		return fmt.Errorf("skew.text.reduction must be at least 1")
	}
	if t.SweepRange <= 0 || t.SweepStep <= 0 || t.MinStep <= 0 || t.MinStep > t.SweepStep {
		return fmt.Errorf("skew.text sweep %v/%v/%v is inconsistent", t.SweepRange, t.SweepStep, t.MinStep)
	}
	if t.MinInk < 0 || t.MinInk >= 1 {
		return fmt.Errorf("skew.text.min_ink must be in [0,1)")
	}
	return nil
}
