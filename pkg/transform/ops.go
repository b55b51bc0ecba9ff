package transform

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/menta2k/leafcrop/pkg/types"
)

// Clip copies the half-open rectangle r out of g. r must lie within g.
func Clip(g *image.Gray, r image.Rectangle) *image.Gray {
	types.Require(!r.Empty() && r.In(g.Bounds()), "clip", "rectangle %v outside %v", r, g.Bounds())
	return fromNRGBA(imaging.Crop(g, r))
}

// ThresholdToBinary maps pixels below threshold to 0 (ink) and all others
// to 255.
func ThresholdToBinary(g *image.Gray, threshold uint8) *image.Gray {
	bin := imaging.AdjustFunc(g, func(c color.NRGBA) color.NRGBA {
		if c.R < threshold {
			return color.NRGBA{A: 255}
		}
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	})
	return fromNRGBA(bin)
}

// Reduce shrinks g by an integer factor with a box filter, averaging every
// factor x factor block. A factor of 1 returns a copy.
func Reduce(g *image.Gray, factor int) *image.Gray {
	types.Require(factor >= 1, "reduce", "factor %d", factor)
	if factor == 1 {
		return ToGray(g)
	}
	w, h := g.Rect.Dx()/factor, g.Rect.Dy()/factor
	types.Require(w > 0 && h > 0, "reduce", "%v too small for factor %d", g.Rect, factor)
	return fromNRGBA(imaging.Resize(g, w, h, imaging.Box))
}

// FlipHorizontal mirrors g left to right.
func FlipHorizontal(g *image.Gray) *image.Gray {
	return fromNRGBA(imaging.FlipH(g))
}

// Invert maps every luma v to 255-v.
func Invert(g *image.Gray) *image.Gray {
	return fromNRGBA(imaging.Invert(g))
}
