package types

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Rect holds integer pixel bounds. Whether Right/Bottom are inclusive is
// documented by each function that consumes one.
type Rect struct {
	Left   int `json:"left"`
	Right  int `json:"right"`
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

// Width returns Right-Left
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns Bottom-Top
func (r Rect) Height() int { return r.Bottom - r.Top }

// Valid reports whether the rectangle is non-degenerate
func (r Rect) Valid() bool {
	return r.Left < r.Right && r.Top < r.Bottom
}

// Within reports whether every bound lies in [0,w) x [0,h)
func (r Rect) Within(w, h int) bool {
	return r.Left >= 0 && r.Right < w && r.Top >= 0 && r.Bottom < h
}

// ImageRect converts to a half-open image.Rectangle (Min inclusive, Max exclusive).
func (r Rect) ImageRect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

// Scale multiplies every bound by factor
func (r Rect) Scale(factor int) Rect {
	return Rect{
		Left:   r.Left * factor,
		Right:  r.Right * factor,
		Top:    r.Top * factor,
		Bottom: r.Bottom * factor,
	}
}

// Clamp limits the bounds to [0,w-1] x [0,h-1]
func (r Rect) Clamp(w, h int) Rect {
	return Rect{
		Left:   clampInt(r.Left, 0, w-1),
		Right:  clampInt(r.Right, 0, w-1),
		Top:    clampInt(r.Top, 0, h-1),
		Bottom: clampInt(r.Bottom, 0, h-1),
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("L=%d R=%d T=%d B=%d", r.Left, r.Right, r.Top, r.Bottom)
}

// EdgeCandidate is a column or row index paired with its SAD magnitude
type EdgeCandidate struct {
	Index int    `json:"index"`
	Score uint64 `json:"score"`
}

// VarianceCandidate is a column or row index paired with its variance score
type VarianceCandidate struct {
	Index    int     `json:"index"`
	Variance float64 `json:"variance"`
}

// AngleSample is one evaluated rotation of a sweep
type AngleSample struct {
	Angle float64 `json:"angle"`
	Score float64 `json:"score"`
}

// RotationDirection is the quarter turn applied to the photographed leaf
// before detection. It also fixes which side the binding ends up on.
type RotationDirection int

const (
	RotateNone             RotationDirection = 0
	RotateClockwise        RotationDirection = 1
	RotateCounterClockwise RotationDirection = -1
)

// ParseRotationDirection accepts -1, 0, 1 and the names none/cw/ccw.
func ParseRotationDirection(s string) (RotationDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cw", "clockwise":
		return RotateClockwise, nil
	case "ccw", "counterclockwise":
		return RotateCounterClockwise, nil
	case "none":
		return RotateNone, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return RotateNone, fmt.Errorf("invalid rotation direction %q: %w", s, err)
	}
	switch n {
	case -1, 0, 1:
		return RotationDirection(n), nil
	}
	return RotateNone, fmt.Errorf("invalid rotation direction %d (want -1, 0 or 1)", n)
}

func (d RotationDirection) String() string {
	switch d {
	case RotateClockwise:
		return "clockwise"
	case RotateCounterClockwise:
		return "counterclockwise"
	default:
		return "none"
	}
}

// Side says where the binding lies once the leaf has been turned upright
type Side int

const (
	BindingLeft Side = iota
	BindingRight
)

func (s Side) String() string {
	if s == BindingRight {
		return "right"
	}
	return "left"
}

// BindingSide maps a rotation direction to the side the binding lands on.
// RotateNone has no defined side.
func (d RotationDirection) BindingSide() (Side, bool) {
	switch d {
	case RotateClockwise:
		return BindingLeft, true
	case RotateCounterClockwise:
		return BindingRight, true
	}
	return BindingLeft, false
}

// CropBox is the page boundary threaded through the pipeline. Columns and
// rows are inclusive page-side bounds in the coordinates of the buffer the
// current stage works on.
type CropBox struct {
	Rect

	Side Side `json:"side"`

	BindingAngle float64 `json:"binding_angle"`
	OuterAngle   float64 `json:"outer_angle"`
	TopAngle     float64 `json:"top_angle"`
	BottomAngle  float64 `json:"bottom_angle"`

	// Threshold is the binding-local luma threshold used for binarization
	Threshold uint8 `json:"threshold"`

	// Rotation is the deskew angle in effect when the box was last refined
	Rotation float64 `json:"rotation"`
}

// Scaled returns a copy with the bounds multiplied by factor and clamped to w x h
func (b CropBox) Scaled(factor, w, h int) CropBox {
	out := b
	out.Rect = b.Rect.Scale(factor).Clamp(w, h)
	return out
}

// CropReview is the answer of a vision model asked to judge a crop overlay
type CropReview struct {
	Fits       bool     `json:"fits"`
	Confidence float64  `json:"confidence"`
	Issues     []string `json:"issues"`
	Summary    string   `json:"summary"`
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
