// Package transform wraps the image operations the crop engine consumes as
// black boxes: grayscale conversion, quarter and arbitrary rotations,
// clipping, reduction, mirroring and global thresholding. Everything returns
// a fresh zero-origin buffer; inputs are never modified.
package transform

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Weights are the channel weights used for grayscale conversion.
type Weights struct {
	R float64 `json:"r" yaml:"r"`
	G float64 `json:"g" yaml:"g"`
	B float64 `json:"b" yaml:"b"`
}

// DefaultWeights returns 0.30/0.60/0.10
func DefaultWeights() Weights {
	return Weights{R: 0.30, G: 0.60, B: 0.10}
}

// Validate checks the weights are non-negative and sum to about 1
func (w Weights) Validate() error {
	if w.R < 0 || w.G < 0 || w.B < 0 {
		return fmt.Errorf("grayscale weights must be non-negative: %+v", w)
	}
	if s := w.R + w.G + w.B; math.Abs(s-1) > 0.01 {
		return fmt.Errorf("grayscale weights must sum to 1, got %.3f", s)
	}
	return nil
}

// Grayscale converts img to 8-bit luma with the given channel weights.
func Grayscale(img image.Image, wt Weights) *image.Gray {
	mixed := imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		v := wt.R*float64(c.R) + wt.G*float64(c.G) + wt.B*float64(c.B) + 0.5
		l := uint8(math.Min(255, v))
		return color.NRGBA{R: l, G: l, B: l, A: 255}
	})
	return fromNRGBA(mixed)
}

// ToGray returns a zero-origin gray copy of img. Gray inputs are copied
// verbatim; anything else goes through Grayscale with the default weights.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		b := g.Bounds()
		out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			copy(out.Pix[y*out.Stride:], g.Pix[y*g.Stride:y*g.Stride+b.Dx()])
		}
		return out
	}
	return Grayscale(img, DefaultWeights())
}

// fromNRGBA keeps the red channel of an image whose channels are equal
func fromNRGBA(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dst[x] = row[x*4]
		}
	}
	return out
}
