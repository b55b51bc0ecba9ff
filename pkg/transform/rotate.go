package transform

import (
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/menta2k/leafcrop/pkg/types"
)

// Rotate90 turns img a quarter turn in the given direction. RotateNone
// returns an unrotated copy.
func Rotate90(img image.Image, dir types.RotationDirection) *image.NRGBA {
	switch dir {
	case types.RotateClockwise:
		return imaging.Rotate270(img)
	case types.RotateCounterClockwise:
		return imaging.Rotate90(img)
	default:
		return imaging.Clone(img)
	}
}

// Rotator rotates src about its center by angle degrees (positive is
// clockwise) into dst, which has the same size. Pixels that map from outside
// src are black. Implementations must be safe for concurrent use.
type Rotator interface {
	Rotate(dst, src *image.Gray, angle float64)
}

// Rotated allocates a destination and rotates src into it.
func Rotated(r Rotator, src *image.Gray, angle float64) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, src.Rect.Dx(), src.Rect.Dy()))
	r.Rotate(dst, src, angle)
	return dst
}

// BilinearRotator rotates with x/image/draw bilinear sampling. Scratch
// buffers are pooled, so a sweep holds at most one per concurrent caller.
type BilinearRotator struct {
	scratch sync.Pool
}

// NewBilinearRotator returns the default gray rotator
func NewBilinearRotator() *BilinearRotator {
	return &BilinearRotator{}
}

func (r *BilinearRotator) Rotate(dst, src *image.Gray, angle float64) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	types.Require(dst.Rect.Dx() == w && dst.Rect.Dy() == h, "rotate",
		"destination %v does not match source %v", dst.Rect, src.Rect)

	if angle == 0 {
		for y := 0; y < h; y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], src.Pix[y*src.Stride:])
		}
		return
	}

	buf := r.acquire(w, h)
	defer r.scratch.Put(buf)

	rad := angle * math.Pi / 180
	sin, cos := math.Sincos(rad)
	cx, cy := float64(w)/2, float64(h)/2
	m := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
	draw.BiLinear.Transform(buf, m, src, src.Bounds(), draw.Src, nil)

	for y := 0; y < h; y++ {
		row := buf.Pix[y*buf.Stride:]
		out := dst.Pix[y*dst.Stride:]
		for x := 0; x < w; x++ {
			out[x] = row[x*4]
		}
	}
}

// acquire returns a cleared RGBA scratch buffer of the requested size.
// Transform leaves pixels outside the mapped source untouched, so the
// clear is what makes the fill black.
func (r *BilinearRotator) acquire(w, h int) *image.RGBA {
	if v := r.scratch.Get(); v != nil {
		buf := v.(*image.RGBA)
		if buf.Rect.Dx() == w && buf.Rect.Dy() == h {
			clear(buf.Pix)
			return buf
		}
	}
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

// RotateImage rotates a color image about its center by angle degrees
// (positive is clockwise), keeping the original size and filling with black.
func RotateImage(img image.Image, angle float64) *image.NRGBA {
	if angle == 0 {
		return imaging.Clone(img)
	}
	b := img.Bounds()
	rotated := imaging.Rotate(img, -angle, color.Black)
	return imaging.CropCenter(rotated, b.Dx(), b.Dy())
}
