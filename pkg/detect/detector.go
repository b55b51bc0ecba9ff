// Package detect finds the coarse page boundary of a leaf on a reduced
// gray buffer: the shadowed binding edge, the outer edge against the
// background and the top and bottom edges.
//
// The edge finders work on a leaf whose binding is on the left. Detect
// handles leaves bound on the right by mirroring the buffer, running the
// same finders and mapping columns and angles back.
package detect

import (
	"fmt"
	"image"

	"github.com/menta2k/leafcrop/internal/logger"
	"github.com/menta2k/leafcrop/pkg/geometry"
	"github.com/menta2k/leafcrop/pkg/pixstats"
	"github.com/menta2k/leafcrop/pkg/search"
	"github.com/menta2k/leafcrop/pkg/transform"
	"github.com/menta2k/leafcrop/pkg/types"
)

// Detector runs the edge finders over a shared angle searcher
type Detector struct {
	config   Config
	searcher *search.Searcher
	logger   logger.Logger
}

// BindingResult describes the binding edge. Edge is the page-side column
// of the dark run.
type BindingResult struct {
	Edge      int     `json:"edge"`
	Angle     float64 `json:"angle"`
	Score     uint64  `json:"score"`
	Threshold uint8   `json:"threshold"`
	DarkRun   int     `json:"dark_run"`
}

// EdgeResult describes the outer edge. Edge is the last page column.
type EdgeResult struct {
	Edge  int     `json:"edge"`
	Angle float64 `json:"angle"`
	Score uint64  `json:"score"`
}

// HorizontalResult describes the top or bottom edge. Threshold is reported
// for diagnostics only.
type HorizontalResult struct {
	Edge      int     `json:"edge"`
	Angle     float64 `json:"angle"`
	Score     uint64  `json:"score"`
	Threshold uint8   `json:"threshold"`
}

// Horizontal selects the top or bottom edge
type Horizontal int

const (
	Top Horizontal = iota
	Bottom
)

func (e Horizontal) String() string {
	if e == Bottom {
		return "bottom"
	}
	return "top"
}

// Detection is the coarse result in the coordinates of the buffer passed to
// Detect.
type Detection struct {
	Box     types.CropBox    `json:"box"`
	Binding BindingResult    `json:"binding"`
	Outer   EdgeResult       `json:"outer"`
	Top     HorizontalResult `json:"top"`
	Bottom  HorizontalResult `json:"bottom"`
}

// New creates a detector with default window fractions
func New(searcher *search.Searcher) *Detector {
	return NewWithConfig(DefaultConfig(), searcher)
}

func NewWithConfig(cfg Config, searcher *search.Searcher) *Detector {
	return &Detector{
		config:   cfg,
		searcher: searcher,
		logger:   logger.Nop(),
	}
}

func (d *Detector) SetLogger(l logger.Logger) {
	d.logger = logger.OrNop(l)
}

// Detect finds all four edges of the leaf in g. dir is the quarter turn
// that was applied to the photograph and selects the binding side.
func (d *Detector) Detect(g *image.Gray, dir types.RotationDirection) (*Detection, error) {
	side, ok := dir.BindingSide()
	if !ok {
		return nil, types.UnsupportedError("detect", fmt.Sprintf("rotation direction %s has no binding side", dir))
	}

	work := g
	if side == types.BindingRight {
		work = transform.FlipHorizontal(g)
	}
	w := work.Rect.Dx()

	binding, err := d.BindingEdge(work)
	if err != nil {
		return nil, err
	}
	top, err := d.HorizontalEdge(work, binding.Edge, Top)
	if err != nil {
		return nil, err
	}
	bottom, err := d.HorizontalEdge(work, binding.Edge, Bottom)
	if err != nil {
		return nil, err
	}
	outer, err := d.OuterEdge(work)
	if err != nil {
		return nil, err
	}

	det := &Detection{Binding: binding, Outer: outer, Top: top, Bottom: bottom}
	if side == types.BindingRight {
		det.Binding.Edge = w - 1 - binding.Edge
		det.Binding.Angle = mirrorAngle(binding.Angle)
		det.Outer.Edge = w - 1 - outer.Edge
		det.Outer.Angle = mirrorAngle(outer.Angle)
		det.Top.Angle = mirrorAngle(top.Angle)
		det.Bottom.Angle = mirrorAngle(bottom.Angle)
	}

	box := types.CropBox{
		Side:         side,
		BindingAngle: det.Binding.Angle,
		OuterAngle:   det.Outer.Angle,
		TopAngle:     det.Top.Angle,
		BottomAngle:  det.Bottom.Angle,
		Threshold:    binding.Threshold,
	}
	box.Top, box.Bottom = top.Edge, bottom.Edge
	if side == types.BindingLeft {
		box.Left, box.Right = det.Binding.Edge, det.Outer.Edge
	} else {
		box.Left, box.Right = det.Outer.Edge, det.Binding.Edge
	}
	if !box.Valid() {
		return nil, types.DetectionError("detect", fmt.Sprintf("edges do not form a box: %v", box.Rect))
	}
	det.Box = box

	d.logger.Info("detect", "coarse box", map[string]interface{}{
		"side":      side.String(),
		"box":       box.Rect.String(),
		"threshold": box.Threshold,
	})
	return det, nil
}

// BindingEdge finds the binding shadow in the first part of the width of a
// leaf bound on the left. The strongest column transition over the sweep
// fixes the angle; the mean of the two columns straddling it becomes the
// binarization threshold, and the shadow must be confirmed by a run of
// dark columns that is neither empty nor as wide as the walk allows.
func (d *Detector) BindingEdge(g *image.Gray) (BindingResult, error) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	jTop, jBot := d.config.kernelRows(h)
	right := int(float64(w) * d.config.BindingSearchWidth)

	out, err := search.Maximize(d.searcher, "binding", g, func(rot *image.Gray, angle float64) (types.EdgeCandidate, float64, bool) {
		c, ok := pixstats.StrongestColumnEdge(rot, geometry.LimitLeft(w, h, angle), right, jTop, jBot)
		return c, float64(c.Score), ok
	})
	if err != nil {
		return BindingResult{}, err
	}

	edge := out.Value.Index
	rot := transform.Rotated(d.searcher.Rotator(), g, out.Angle)
	lumaA := pixstats.AverageColumn(rot, edge, jTop, jBot)
	lumaB := pixstats.AverageColumn(rot, edge+1, jTop, jBot)
	threshold := (lumaA + lumaB) / 2
	res := BindingResult{
		Angle:     out.Angle,
		Score:     out.Value.Score,
		Threshold: uint8(threshold),
	}

	walk := int(float64(w) * d.config.DarkRunWidth)
	dark := func(i int) bool {
		return pixstats.AverageColumn(rot, i, jTop, jBot) < float64(res.Threshold)
	}

	switch {
	case lumaA > lumaB:
		// shadow starts right of the edge; the page begins after it
		i := edge + 1
		for i < w && res.DarkRun < walk && dark(i) {
			res.DarkRun++
			i++
		}
		res.Edge = i - 1
	case lumaA < lumaB:
		// edge is the last shadow column; count how far the shadow reaches left
		for i := edge - 1; i >= 0 && res.DarkRun < walk && dark(i); i-- {
			res.DarkRun++
		}
		res.Edge = edge
	default:
		return res, types.DetectionError("binding", fmt.Sprintf("no contrast across column %d", edge))
	}

	fields := map[string]interface{}{
		"edge":      res.Edge,
		"angle":     res.Angle,
		"score":     res.Score,
		"threshold": res.Threshold,
		"dark_run":  res.DarkRun,
		"luma_a":    lumaA,
		"luma_b":    lumaB,
	}
	if res.DarkRun < 1 || res.DarkRun >= walk {
		d.logger.Warning("binding", "dark run out of range", fields)
		return res, types.DetectionError("binding",
			fmt.Sprintf("dark run of %d columns outside [1,%d)", res.DarkRun, walk))
	}
	d.logger.Debug("binding", "binding edge", fields)
	return res, nil
}

// OuterEdge finds the page to background transition in the last quarter of
// the width, staying clear of the columns rotation fills with black.
func (d *Detector) OuterEdge(g *image.Gray) (EdgeResult, error) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	jTop, jBot := d.config.kernelRows(h)
	left := int(float64(w) * d.config.OuterSearchStart)

	out, err := search.Maximize(d.searcher, "outer", g, func(rot *image.Gray, angle float64) (types.EdgeCandidate, float64, bool) {
		c, ok := pixstats.StrongestColumnEdge(rot, left, w-geometry.LimitLeft(w, h, angle)-1, jTop, jBot)
		return c, float64(c.Score), ok
	})
	if err != nil {
		return EdgeResult{}, err
	}

	res := EdgeResult{Edge: out.Value.Index, Angle: out.Angle, Score: out.Value.Score}
	d.logger.Debug("outer", "outer edge", map[string]interface{}{
		"edge":  res.Edge,
		"angle": res.Angle,
		"score": res.Score,
	})
	return res, nil
}

// HorizontalEdge finds the top or bottom edge over a band of columns that
// starts at the binding edge.
func (d *Detector) HorizontalEdge(g *image.Gray, binding int, which Horizontal) (HorizontalResult, error) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	types.Require(binding >= 0 && binding < w, which.String(), "binding column %d outside width %d", binding, w)

	band := int(float64(h) * d.config.HorizontalBandHeight)
	iLeft := binding
	iRight := min(binding+int(float64(w)*d.config.HorizontalBandWidth), w)

	rows := func(angle float64) (int, int) {
		limit := geometry.LimitTop(w, h, angle)
		if which == Top {
			return limit, band
		}
		return h - band, h - limit - 1
	}

	out, err := search.Maximize(d.searcher, which.String(), g, func(rot *image.Gray, angle float64) (types.EdgeCandidate, float64, bool) {
		top, bottom := rows(angle)
		c, ok := pixstats.StrongestRowEdge(rot, iLeft, iRight, top, bottom)
		return c, float64(c.Score), ok
	})
	if err != nil {
		return HorizontalResult{}, err
	}

	edge := out.Value.Index
	rot := transform.Rotated(d.searcher.Rotator(), g, out.Angle)
	lumaA := pixstats.AverageRow(rot, edge, iLeft, iRight)
	lumaB := pixstats.AverageRow(rot, edge+1, iLeft, iRight)

	res := HorizontalResult{
		Edge:      edge,
		Angle:     out.Angle,
		Score:     out.Value.Score,
		Threshold: uint8((lumaA + lumaB) / 2),
	}
	d.logger.Debug(which.String(), "horizontal edge", map[string]interface{}{
		"edge":      res.Edge,
		"angle":     res.Angle,
		"score":     res.Score,
		"threshold": res.Threshold,
	})
	return res, nil
}

// mirrorAngle negates a rotation for a flipped buffer, keeping 0 positive
func mirrorAngle(a float64) float64 {
	if a == 0 {
		return 0
	}
	return -a
}
