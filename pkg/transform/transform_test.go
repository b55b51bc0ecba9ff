package transform

import (
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/leafcrop/pkg/types"
)

func newGray(w, h int, fill uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = fill
	}
	return g
}

func TestGrayscaleWeights(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{G: 255, A: 255})
	img.Set(2, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	g := Grayscale(img, DefaultWeights())
	assert.Equal(t, uint8(77), g.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(153), g.GrayAt(1, 0).Y)
	assert.Equal(t, uint8(255), g.GrayAt(2, 0).Y)
	assert.Equal(t, image.Rect(0, 0, 3, 1), g.Bounds())
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.Error(t, Weights{R: 0.5, G: 0.5, B: 0.5}.Validate())
	assert.Error(t, Weights{R: -0.1, G: 1, B: 0.1}.Validate())
}

func TestToGrayRebasesOrigin(t *testing.T) {
	g := newGray(10, 10, 0)
	g.SetGray(4, 5, color.Gray{Y: 99})

	sub := g.SubImage(image.Rect(3, 3, 8, 8))
	out := ToGray(sub)
	assert.Equal(t, image.Rect(0, 0, 5, 5), out.Bounds())
	assert.Equal(t, uint8(99), out.GrayAt(1, 2).Y)
}

func TestRotate90(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})

	cw := Rotate90(img, types.RotateClockwise)
	require.Equal(t, image.Rect(0, 0, 2, 4), cw.Bounds())
	assert.Equal(t, uint8(255), cw.NRGBAAt(1, 0).R, "top-left lands top-right")

	ccw := Rotate90(img, types.RotateCounterClockwise)
	require.Equal(t, image.Rect(0, 0, 2, 4), ccw.Bounds())
	assert.Equal(t, uint8(255), ccw.NRGBAAt(0, 3).R, "top-left lands bottom-left")

	same := Rotate90(img, types.RotateNone)
	assert.Equal(t, img.Bounds(), same.Bounds())
}

func horizontalLine() *image.Gray {
	g := newGray(200, 200, 0)
	for x := 20; x < 180; x++ {
		g.SetGray(x, 100, color.Gray{Y: 255})
	}
	return g
}

func columnPeak(g *image.Gray, x int) int {
	best, row := -1, -1
	for y := 0; y < g.Rect.Dy(); y++ {
		if v := int(g.GrayAt(x, y).Y); v > best {
			best, row = v, y
		}
	}
	return row
}

func TestBilinearRotatorZeroAngleCopies(t *testing.T) {
	src := horizontalLine()
	dst := Rotated(NewBilinearRotator(), src, 0)
	assert.Equal(t, src.Pix, dst.Pix)
}

func TestBilinearRotatorIsClockwise(t *testing.T) {
	dst := Rotated(NewBilinearRotator(), horizontalLine(), 10)

	right := columnPeak(dst, 170)
	left := columnPeak(dst, 30)
	assert.InDelta(t, 112, right, 2, "right end moves down")
	assert.InDelta(t, 88, left, 2, "left end moves up")
}

func TestBilinearRotatorFillsBlack(t *testing.T) {
	dst := Rotated(NewBilinearRotator(), newGray(100, 100, 200), 5)

	assert.Equal(t, uint8(0), dst.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(0), dst.GrayAt(99, 99).Y)
	assert.Equal(t, uint8(200), dst.GrayAt(50, 50).Y)
}

func TestBilinearRotatorReusesScratch(t *testing.T) {
	r := NewBilinearRotator()
	src := newGray(64, 48, 180)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(a float64) {
			defer wg.Done()
			dst := Rotated(r, src, a)
			assert.Equal(t, uint8(180), dst.GrayAt(32, 24).Y)
			assert.Equal(t, uint8(0), dst.GrayAt(0, 0).Y)
		}(float64(i + 5))
	}
	wg.Wait()
}

func TestRotateImageMatchesGrayDirection(t *testing.T) {
	line := horizontalLine()
	rotated := RotateImage(line, 10)
	require.Equal(t, line.Bounds(), rotated.Bounds())

	g := Grayscale(rotated, DefaultWeights())
	assert.InDelta(t, 112, columnPeak(g, 170), 2)
}

func TestThresholdToBinary(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 3, 1))
	g.Pix = []uint8{99, 100, 250}

	bin := ThresholdToBinary(g, 100)
	assert.Equal(t, []uint8{0, 255, 255}, bin.Pix)
}

func TestReduce(t *testing.T) {
	g := newGray(16, 16, 10)
	for y := 0; y < 8; y++ {
		for x := 8; x < 16; x++ {
			g.SetGray(x, y, color.Gray{Y: 200})
		}
	}

	r := Reduce(g, 8)
	require.Equal(t, image.Rect(0, 0, 2, 2), r.Bounds())
	assert.Equal(t, []uint8{10, 200, 10, 10}, r.Pix)

	assert.Equal(t, g.Pix, Reduce(g, 1).Pix)
	assert.Panics(t, func() { Reduce(g, 0) })
}

func TestClip(t *testing.T) {
	g := newGray(10, 10, 0)
	g.SetGray(5, 6, color.Gray{Y: 42})

	c := Clip(g, image.Rect(4, 4, 8, 9))
	require.Equal(t, image.Rect(0, 0, 4, 5), c.Bounds())
	assert.Equal(t, uint8(42), c.GrayAt(1, 2).Y)

	assert.Panics(t, func() { Clip(g, image.Rect(5, 5, 12, 8)) })
}

func TestFlipHorizontal(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 4, 1))
	g.Pix = []uint8{1, 2, 3, 4}

	assert.Equal(t, []uint8{4, 3, 2, 1}, FlipHorizontal(g).Pix)
}

func BenchmarkBilinearRotator(b *testing.B) {
	r := NewBilinearRotator()
	src := newGray(500, 375, 128)
	dst := image.NewGray(src.Rect)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Rotate(dst, src, 0.35)
	}
}

func TestInvert(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 3, 1))
	g.Pix = []uint8{0, 100, 255}

	assert.Equal(t, []uint8{255, 155, 0}, Invert(g).Pix)
}
