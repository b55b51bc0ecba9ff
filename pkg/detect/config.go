package detect

import "fmt"

// Config holds the window fractions of the edge detectors. All values are
// fractions of the reduced image width or height.
type Config struct {
	// BindingSearchWidth bounds the binding search to the first part of the width
	BindingSearchWidth float64 `json:"binding_search_width" yaml:"binding_search_width"`
	// KernelHeight is the middle band of rows the column scorers measure over
	KernelHeight float64 `json:"kernel_height" yaml:"kernel_height"`
	// DarkRunWidth caps the binding shadow walk
	DarkRunWidth float64 `json:"dark_run_width" yaml:"dark_run_width"`
	// OuterSearchStart is where the outer edge search begins
	OuterSearchStart float64 `json:"outer_search_start" yaml:"outer_search_start"`
	// HorizontalBandWidth is the column band used for the top and bottom edges,
	// starting at the binding edge
	HorizontalBandWidth float64 `json:"horizontal_band_width" yaml:"horizontal_band_width"`
	// HorizontalBandHeight is how far into the page the top and bottom searches go
	HorizontalBandHeight float64 `json:"horizontal_band_height" yaml:"horizontal_band_height"`
}

func DefaultConfig() Config {
	return Config{
		BindingSearchWidth:   0.10,
		KernelHeight:         0.30,
		DarkRunWidth:         0.03,
		OuterSearchStart:     0.75,
		HorizontalBandWidth:  0.50,
		HorizontalBandHeight: 0.25,
	}
}

func (c Config) Validate() error {
	fractions := map[string]float64{
		"binding_search_width":   c.BindingSearchWidth,
		"kernel_height":          c.KernelHeight,
		"dark_run_width":         c.DarkRunWidth,
		"outer_search_start":     c.OuterSearchStart,
		"horizontal_band_width":  c.HorizontalBandWidth,
		"horizontal_band_height": c.HorizontalBandHeight,
	}
	for name, v := range fractions {
		if v <= 0 || v >= 1 {
			return fmt.Errorf("detect.%s must be in (0,1), got %v", name, v)
		}
	}
	if c.BindingSearchWidth >= c.OuterSearchStart {
		return fmt.Errorf("detect.binding_search_width %v overlaps outer_search_start %v", c.BindingSearchWidth, c.OuterSearchStart)
	}
	if c.HorizontalBandHeight >= 0.5 {
		return fmt.Errorf("detect.horizontal_band_height %v makes top and bottom windows overlap", c.HorizontalBandHeight)
	}
	return nil
}

// kernelRows returns the half-open row band centered on mid-height
func (c Config) kernelRows(h int) (int, int) {
	return int((1 - c.KernelHeight) * 0.5 * float64(h)), int((1 + c.KernelHeight) * 0.5 * float64(h))
}
