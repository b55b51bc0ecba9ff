//go:build gocv

package transform

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/menta2k/leafcrop/pkg/types"
)

// AreaRotator rotates through OpenCV warpAffine. Built only with -tags gocv.
type AreaRotator struct{}

func NewAreaRotator() *AreaRotator {
	return &AreaRotator{}
}

func (AreaRotator) Rotate(dst, src *image.Gray, angle float64) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	types.Require(dst.Rect.Dx() == w && dst.Rect.Dy() == h, "rotate",
		"destination %v does not match source %v", dst.Rect, src.Rect)

	packed := ToGray(src)
	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, packed.Pix)
	if err != nil {
		panic(types.ExternalError("rotate", "wrap gray buffer", err))
	}
	defer mat.Close()

	// OpenCV angles are counter-clockwise
	m := gocv.GetRotationMatrix2D(image.Pt(w/2, h/2), -angle, 1)
	defer m.Close()

	out := gocv.NewMat()
	defer out.Close()
	gocv.WarpAffineWithParams(mat, &out, m, image.Pt(w, h), gocv.InterpolationArea, gocv.BorderConstant, color.RGBA{})

	pix := out.ToBytes()
	for y := 0; y < h; y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], pix[y*w:])
	}
}

// DefaultRotator prefers OpenCV when it is compiled in
func DefaultRotator() Rotator {
	return NewAreaRotator()
}
