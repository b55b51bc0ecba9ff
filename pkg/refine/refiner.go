// Package refine snaps a scaled-up crop box onto the full resolution leaf.
// Every edge moves to the most uniform line near its coarse position: a
// blank page margin is flatter than text, shadow or background.
package refine

import (
	"fmt"
	"image"

	"github.com/menta2k/leafcrop/internal/logger"
	"github.com/menta2k/leafcrop/pkg/geometry"
	"github.com/menta2k/leafcrop/pkg/pixstats"
	"github.com/menta2k/leafcrop/pkg/transform"
	"github.com/menta2k/leafcrop/pkg/types"
)

// Refiner adjusts crop boxes in place
type Refiner struct {
	config Config
	logger logger.Logger
}

func New() *Refiner {
	return NewWithConfig(DefaultConfig())
}

func NewWithConfig(cfg Config) *Refiner {
	return &Refiner{config: cfg, logger: logger.Nop()}
}

func (r *Refiner) SetLogger(l logger.Logger) {
	r.logger = logger.OrNop(l)
}

func (r *Refiner) Config() Config {
	return r.config
}

// Refine runs the configured mode with Config.SearchRadius and records angle
// as the box rotation.
func (r *Refiner) Refine(g *image.Gray, box *types.CropBox, angle float64) error {
	var err error
	switch r.config.Mode {
	case ModeBlock:
		if err = r.AdjustCropBoxByVariance(g, box, r.config.KernelWidth, angle); err == nil {
			err = r.adjustRows(g, box, r.config.SearchRadius)
		}
	default:
		err = r.AdjustCropBox(g, box, r.config.SearchRadius)
	}
	if err != nil {
		return err
	}
	box.Rotation = angle
	return nil
}

// AdjustCropBox moves every edge of box to the minimum variance line within
// radius pixels of it. Left and right are scored over the original rows,
// top and bottom over the new columns. box is only modified on success.
// Once converged the box is a fixed point.
func (r *Refiner) AdjustCropBox(g *image.Gray, box *types.CropBox, radius int) error {
	types.Require(radius >= 1, "refine", "radius %d", radius)
	types.Require(box.Valid() && box.Within(g.Rect.Dx(), g.Rect.Dy()), "refine", "box %v outside %v", box.Rect, g.Rect)

	next := *box
	if err := r.adjustColumns(g, &next, radius); err != nil {
		return err
	}
	if err := r.adjustRows(g, &next, radius); err != nil {
		return err
	}
	*box = next
	return nil
}

func (r *Refiner) adjustColumns(g *image.Gray, box *types.CropBox, radius int) error {
	w := g.Rect.Dx()
	cfg := r.config
	top, bottom := box.Top, box.Bottom

	snap := func(stage string, edge int) (int, error) {
		lo, hi := max(0, edge-radius), min(w-1, edge+radius)
		if lo >= hi {
			return 0, types.DetectionError(stage, fmt.Sprintf("empty window around column %d", edge))
		}
		if probe, ok := pixstats.StrongestColumnEdge(g, lo, hi, top, bottom); ok {
			r.logger.Debug(stage, "sad probe", map[string]interface{}{"column": probe.Index, "score": probe.Score})
		}
		c, ok := nearestMinimum(lo, hi, edge, func(i int) (types.VarianceCandidate, bool) {
			return pixstats.ColumnVariance(g, i, top, bottom, cfg.BrightnessFloor, cfg.Inset)
		})
		if !ok {
			return 0, types.DetectionError(stage, fmt.Sprintf("no column above %.0f in [%d,%d]", cfg.BrightnessFloor, lo, hi))
		}
		return c.Index, nil
	}

	left, err := snap("refine-left", box.Left)
	if err != nil {
		return err
	}
	right, err := snap("refine-right", box.Right)
	if err != nil {
		return err
	}
	if left >= right {
		return types.DetectionError("refine", fmt.Sprintf("left %d crossed right %d", left, right))
	}
	box.Left, box.Right = left, right
	return nil
}

func (r *Refiner) adjustRows(g *image.Gray, box *types.CropBox, radius int) error {
	h := g.Rect.Dy()
	cfg := r.config
	left, right := box.Left, box.Right
	if left >= right {
		return types.DetectionError("refine", fmt.Sprintf("no columns between %d and %d", left, right))
	}

	snap := func(stage string, edge int) (int, error) {
		lo, hi := max(0, edge-radius), min(h-1, edge+radius)
		if lo >= hi {
			return 0, types.DetectionError(stage, fmt.Sprintf("empty window around row %d", edge))
		}
		if probe, ok := pixstats.StrongestRowEdge(g, left, right, lo, hi); ok {
			r.logger.Debug(stage, "sad probe", map[string]interface{}{"row": probe.Index, "score": probe.Score})
		}
		c, ok := nearestMinimum(lo, hi, edge, func(j int) (types.VarianceCandidate, bool) {
			return pixstats.RowVariance(g, j, left, right, cfg.BrightnessFloor, cfg.Inset)
		})
		if !ok {
			return 0, types.DetectionError(stage, fmt.Sprintf("no row above %.0f in [%d,%d]", cfg.BrightnessFloor, lo, hi))
		}
		return c.Index, nil
	}

	top, err := snap("refine-top", box.Top)
	if err != nil {
		return err
	}
	bottom, err := snap("refine-bottom", box.Bottom)
	if err != nil {
		return err
	}
	if top >= bottom {
		return types.DetectionError("refine", fmt.Sprintf("top %d crossed bottom %d", top, bottom))
	}
	box.Top, box.Bottom = top, bottom
	r.logger.Debug("refine", "rows snapped", map[string]interface{}{"top": top, "bottom": bottom})
	return nil
}

// nearestMinimum scores every line of [lo, hi] and returns the one of least
// variance. Equal variances go to the line closest to edge, the lower index
// first, so a box already on a uniform margin stays where it is.
func nearestMinimum(lo, hi, edge int, score func(i int) (types.VarianceCandidate, bool)) (types.VarianceCandidate, bool) {
	var best types.VarianceCandidate
	found := false
	consider := func(i int) {
		if i < lo || i > hi {
			return
		}
		c, ok := score(i)
		if ok && (!found || c.Variance < best.Variance) {
			best, found = c, true
		}
	}
	for d := 0; edge-d >= lo || edge+d <= hi; d++ {
		consider(edge - d)
		if d > 0 {
			consider(edge + d)
		}
	}
	return best, found
}

// AdjustCropBoxByVariance moves only the left and right edges, each to the
// kernelWidth wide block of least variance. The binding side is searched
// from just before the binding edge over Config.BindingWindow of the width,
// the outer side from Config.OuterWindowStart to the edge of the area a
// rotation by angle leaves intact. Leaves bound on the right are mirrored.
func (r *Refiner) AdjustCropBoxByVariance(g *image.Gray, box *types.CropBox, kernelWidth int, angle float64) error {
	types.Require(kernelWidth >= 1, "refine-block", "kernel width %d", kernelWidth)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	types.Require(box.Valid() && box.Within(w, h), "refine-block", "box %v outside %v", box.Rect, g.Rect)

	if box.Side == types.BindingRight {
		flipped := transform.FlipHorizontal(g)
		left, right, err := r.blockColumns(flipped, w-1-box.Right, box.Top, box.Bottom, kernelWidth, -angle)
		if err != nil {
			return err
		}
		box.Left, box.Right = w-1-right, w-1-left
		return nil
	}

	left, right, err := r.blockColumns(g, box.Left, box.Top, box.Bottom, kernelWidth, angle)
	if err != nil {
		return err
	}
	box.Left, box.Right = left, right
	return nil
}

// blockColumns works on a leaf bound on the left.
func (r *Refiner) blockColumns(g *image.Gray, left, top, bottom, kernelWidth int, angle float64) (int, int, error) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	cfg := r.config
	limit := geometry.LimitLeft(w, h, angle)

	lo := max(limit, left-cfg.BindingSlack)
	hi := min(max(lo+3, left+int(cfg.BindingWindow*float64(w)), lo+kernelWidth), w-1)
	if hi < lo+kernelWidth {
		return 0, 0, types.DetectionError("refine-block", fmt.Sprintf("binding window [%d,%d] narrower than kernel %d", lo, hi, kernelWidth))
	}
	bind, ok := pixstats.MinBlockVarianceColumn(g, lo, hi, top, bottom, kernelWidth)
	if !ok {
		return 0, 0, types.DetectionError("refine-block", "no binding block")
	}

	oLo := int(cfg.OuterWindowStart * float64(w))
	oHi := min(w-limit, w-1)
	if oHi < oLo+kernelWidth {
		return 0, 0, types.DetectionError("refine-block", fmt.Sprintf("outer window [%d,%d] narrower than kernel %d", oLo, oHi, kernelWidth))
	}
	outer, ok := pixstats.MinBlockVarianceColumn(g, oLo, oHi, top, bottom, kernelWidth)
	if !ok {
		return 0, 0, types.DetectionError("refine-block", "no outer block")
	}

	if bind.Index >= outer.Index {
		return 0, 0, types.DetectionError("refine-block", fmt.Sprintf("binding %d crossed outer %d", bind.Index, outer.Index))
	}
	r.logger.Debug("refine-block", "columns snapped", map[string]interface{}{
		"left":           bind.Index,
		"right":          outer.Index,
		"left_variance":  bind.Variance,
		"right_variance": outer.Variance,
		"rotation_limit": limit,
	})
	return bind.Index, outer.Index, nil
}
