package leafcrop

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/leafcrop/pkg/review"
	"github.com/menta2k/leafcrop/pkg/transform"
	"github.com/menta2k/leafcrop/pkg/types"
)

func fillGray(img *image.NRGBA, x0, x1, y0, y1 int, v uint8) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
}

// uprightLeaf is an 800x1000 leaf bound on the left: facing page, binding
// shadow, the page and the background around it. With text, dark bars are
// printed between rows 272 and 720.
func uprightLeaf(background uint8, text bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 800, 1000))
	fillGray(img, 0, 24, 0, 1000, 125)
	fillGray(img, 24, 40, 0, 1000, 0)
	fillGray(img, 40, 680, 0, 1000, 235)
	fillGray(img, 680, 800, 0, 1000, background)
	fillGray(img, 0, 800, 0, 80, background)
	fillGray(img, 0, 800, 920, 1000, background)
	if text {
		for y := 272; y < 720; y += 32 {
			fillGray(img, 160, 560, y, y+8, 10)
		}
	}
	return img
}

// photographed turns an upright leaf a quarter turn counter-clockwise, the
// way it comes off a camera that needs RotateClockwise.
func photographed(leaf *image.NRGBA) *image.NRGBA {
	return imaging.Rotate90(leaf)
}

func testCropper(t *testing.T, opts ...func(*Config)) *Cropper {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Reduction = 4
	for _, o := range opts {
		o(&cfg)
	}
	c, err := NewWithConfig(cfg, transform.NewBilinearRotator())
	require.NoError(t, err)
	return c
}

// rejectText makes every text skew estimate fall short of the score floor
func rejectText(cfg *Config) {
	cfg.Skew.Text.MinScore = math.Inf(1)
}

func TestProcessImageTextPage(t *testing.T) {
	c := testCropper(t)

	res, err := c.ProcessImage(photographed(uprightLeaf(20, true)), types.RotateClockwise)
	require.NoError(t, err)

	assert.Equal(t, 800, res.Width)
	assert.Equal(t, 1000, res.Height)
	assert.Equal(t, types.Rect{Left: 9, Right: 169, Top: 19, Bottom: 229}, res.Coarse.Rect)
	assert.Equal(t, types.BindingLeft, res.Box.Side)
	assert.Equal(t, uint8(117), res.Box.Threshold)

	assert.Equal(t, SkewText, res.SkewMode)
	assert.InDelta(t, 0, res.Angle, 0.05)
	assert.GreaterOrEqual(t, res.TextConfidence, 3.0)

	// the refined box starts at the first page column and row and keeps the text
	box := res.Box
	assert.Equal(t, 40, box.Left)
	assert.Equal(t, 80, box.Top)
	assert.GreaterOrEqual(t, box.Right, 560)
	assert.Less(t, box.Right, 680)
	assert.GreaterOrEqual(t, box.Bottom, 720)
	assert.Less(t, box.Bottom, 920)
	assert.Equal(t, res.Angle, box.Rotation)
}

func TestProcessImageBlankPageIsNotRotated(t *testing.T) {
	c := testCropper(t)

	res, err := c.ProcessImage(photographed(uprightLeaf(150, false)), types.RotateClockwise)
	require.NoError(t, err)
	assert.Equal(t, SkewNone, res.SkewMode)
	assert.Equal(t, 0.0, res.Angle)
	assert.Equal(t, 40, res.Box.Left)
}

func TestProcessImageFallsBackToEdgeSkew(t *testing.T) {
	c := testCropper(t, rejectText, func(cfg *Config) { cfg.Skew.MinConfidence = 1.5 })

	res, err := c.ProcessImage(photographed(uprightLeaf(20, true)), types.RotateClockwise)
	require.NoError(t, err)

	assert.Equal(t, SkewEdge, res.SkewMode)
	assert.InDelta(t, 0, res.Angle, 0.1)
	assert.GreaterOrEqual(t, res.EdgeConfidence, 1.5)
	assert.Equal(t, res.Angle, res.Box.Rotation)
	assert.Equal(t, 40, res.Box.Left)
}

func TestProcessImageRefusesUnconfidentEdgeSkew(t *testing.T) {
	c := testCropper(t, rejectText, func(cfg *Config) { cfg.Skew.MinConfidence = 1e6 })

	res, err := c.ProcessImage(photographed(uprightLeaf(20, true)), types.RotateClockwise)
	require.NoError(t, err)

	assert.Equal(t, SkewNone, res.SkewMode)
	assert.Equal(t, 0.0, res.Angle)
	assert.Greater(t, res.EdgeConfidence, 1.0, "the rejected estimate is still reported")
	assert.Less(t, res.EdgeConfidence, 1e6)
	assert.Equal(t, 40, res.Box.Left)
}

func TestProcessImageRightBinding(t *testing.T) {
	c := testCropper(t)

	// a leaf bound on the right arrives turned the other way
	upright := imaging.FlipH(uprightLeaf(20, true))
	res, err := c.ProcessImage(imaging.Rotate270(upright), types.RotateCounterClockwise)
	require.NoError(t, err)

	assert.Equal(t, types.BindingRight, res.Box.Side)
	assert.Equal(t, types.Rect{Left: 30, Right: 190, Top: 19, Bottom: 229}, res.Coarse.Rect)
	assert.Equal(t, 120, res.Box.Left)
	assert.GreaterOrEqual(t, res.Box.Right, 640)
	assert.Less(t, res.Box.Right, 760)
	assert.Equal(t, SkewText, res.SkewMode)
}

func TestProcessImageRejectsNoRotation(t *testing.T) {
	c := testCropper(t)

	_, err := c.ProcessImage(uprightLeaf(20, true), types.RotateNone)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrUnsupported))
}

func TestProcessImageFlatImageFails(t *testing.T) {
	c := testCropper(t)
	flat := image.NewNRGBA(image.Rect(0, 0, 1000, 800))
	fillGray(flat, 0, 1000, 0, 800, 200)

	_, err := c.ProcessImage(flat, types.RotateClockwise)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrDetection))
}

func TestProcessImageTooSmall(t *testing.T) {
	c := testCropper(t)

	_, err := c.ProcessImage(image.NewNRGBA(image.Rect(0, 0, 100, 60)), types.RotateClockwise)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrPrecondition))
}

func TestNewWithConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 0
	_, err := NewWithConfig(cfg, transform.NewBilinearRotator())
	assert.Error(t, err)
}

func TestWorkersDoNotChangeResult(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Reduction = 4
	cfg.Workers = 4
	parallel, err := NewWithConfig(cfg, transform.NewBilinearRotator())
	require.NoError(t, err)

	input := photographed(uprightLeaf(20, true))
	want, err := testCropper(t).ProcessImage(input, types.RotateClockwise)
	require.NoError(t, err)
	got, err := parallel.ProcessImage(input, types.RotateClockwise)
	require.NoError(t, err)

	assert.Equal(t, want.Box, got.Box)
	assert.Equal(t, want.Angle, got.Angle)
}

type stubClient struct{}

func (stubClient) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return "", nil
}

func (stubClient) ReviewCrop(ctx context.Context, model, prompt, imgB64 string) (*types.CropReview, error) {
	return &types.CropReview{Fits: true, Confidence: 0.9}, nil
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "leaf_0001.png")
	require.NoError(t, imaging.Save(photographed(uprightLeaf(20, true)), src))

	c := testCropper(t)
	c.SetReviewer(review.NewReviewer(stubClient{}, "stub"), 512)

	opts := DefaultOutputOptions()
	opts.Dir = filepath.Join(dir, "out")
	opts.Format = "png"
	opts.Debug = true
	opts.DebugFormat = "webp"

	rep, err := c.ProcessFile(context.Background(), src, types.RotateClockwise, opts)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(opts.Dir, "leaf_0001_crop.png"), rep.CropPath)
	assert.Equal(t, filepath.Join(opts.Dir, "leaf_0001_overlay.webp"), rep.OverlayPath)
	assert.Equal(t, filepath.Join(opts.Dir, "leaf_0001_crop.json"), rep.ReportPath)

	crop, err := imaging.Open(rep.CropPath)
	require.NoError(t, err)
	box := rep.Result.Box
	assert.Equal(t, image.Rect(0, 0, box.Right-box.Left+1, box.Bottom-box.Top+1), crop.Bounds())

	overlay, err := imaging.Open(rep.OverlayPath)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 800, 1000), overlay.Bounds())

	require.NotNil(t, rep.Review)
	assert.True(t, rep.Review.Fits)

	data, err := os.ReadFile(rep.ReportPath)
	require.NoError(t, err)
	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, src, decoded.Source)
	assert.Equal(t, box.Rect, decoded.Result.Box.Rect)
	assert.Equal(t, SkewText, decoded.Result.SkewMode)
}

func TestProcessFileMissingSource(t *testing.T) {
	c := testCropper(t)
	_, err := c.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "missing.png"), types.RotateClockwise, DefaultOutputOptions())
	assert.Error(t, err)
}

func BenchmarkProcessImage(b *testing.B) {
	cfg := DefaultConfig()
	cfg.Reduction = 4
	c, err := NewWithConfig(cfg, transform.NewBilinearRotator())
	require.NoError(b, err)
	input := photographed(uprightLeaf(20, true))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.ProcessImage(input, types.RotateClockwise)
	}
}
