package refine

import "fmt"

// Modes accepted by Config.Mode
const (
	ModeVariance = "variance"
	ModeBlock    = "block"
)

// Config tunes the full resolution snapping of the crop box.
type Config struct {
	// Mode selects per-edge variance snapping or block variance for the
	// left and right edges
	Mode string `json:"mode" yaml:"mode"`
	// SearchRadius is the half width of each edge's window in full
	// resolution pixels
	SearchRadius int `json:"search_radius" yaml:"search_radius"`
	// BrightnessFloor skips darker columns and rows (background, shadow)
	BrightnessFloor float64 `json:"brightness_floor" yaml:"brightness_floor"`
	// Inset trims this fraction off both ends of every scored line
	Inset float64 `json:"inset" yaml:"inset"`
	// KernelWidth is the block width for ModeBlock
	KernelWidth int `json:"kernel_width" yaml:"kernel_width"`
	// BindingWindow is how far right of the binding the block search runs,
	// as a fraction of the width
	BindingWindow float64 `json:"binding_window" yaml:"binding_window"`
	// BindingSlack lets the block search start a few columns left of the binding
	BindingSlack int `json:"binding_slack" yaml:"binding_slack"`
	// OuterWindowStart is where the outer block search begins, as a fraction of the width
	OuterWindowStart float64 `json:"outer_window_start" yaml:"outer_window_start"`
}

func DefaultConfig() Config {
	return Config{
		Mode:             ModeVariance,
		SearchRadius:     40,
		BrightnessFloor:  140,
		Inset:            0.20,
		KernelWidth:      10,
		BindingWindow:    0.10,
		BindingSlack:     5,
		OuterWindowStart: 0.75,
	}
}

func (c Config) Validate() error {
	if c.Mode != ModeVariance && c.Mode != ModeBlock {
		return fmt.Errorf("refine.mode must be %q or %q, got %q", ModeVariance, ModeBlock, c.Mode)
	}
	if c.SearchRadius < 1 {
		return fmt.Errorf("refine.search_radius must be at least 1")
	}
	if c.BrightnessFloor < 0 || c.BrightnessFloor > 255 {
		return fmt.Errorf("refine.brightness_floor must be in [0,255]")
	}
	if c.Inset < 0 || c.Inset >= 0.5 {
		return fmt.Errorf("refine.inset must be in [0,0.5)")
	}
	if c.KernelWidth < 1 {
		return fmt.Errorf("refine.kernel_width must be at least 1")
	}
	if c.BindingWindow <= 0 || c.OuterWindowStart <= 0 || c.OuterWindowStart >= 1 {
		return fmt.Errorf("refine windows %v/%v out of range", c.BindingWindow, c.OuterWindowStart)
	}
	return nil
}
