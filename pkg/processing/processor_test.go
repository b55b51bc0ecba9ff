package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/leafcrop/pkg/types"
)

func createTestImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func TestSaveAndLoadImage(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()
	img := createTestImage(64, 48)

	for _, format := range []string{"png", "jpg", "webp"} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(dir, "leaf."+format)
			require.NoError(t, p.SaveImage(img, path, format, 90, true))

			loaded, err := p.LoadImage(path)
			require.NoError(t, err)
			assert.Equal(t, img.Bounds(), loaded.Bounds())
		})
	}

	loaded, err := p.LoadImage(filepath.Join(dir, "leaf.png"))
	require.NoError(t, err)
	r, g, _, _ := loaded.At(10, 20).RGBA()
	assert.Equal(t, uint32(10), r>>8)
	assert.Equal(t, uint32(20), g>>8)
}

func TestLoadImageMissingFile(t *testing.T) {
	_, err := NewProcessor().LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestLoadImageSmartFromURL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, createTestImage(32, 16)))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/leaf.png" {
			w.Header().Set("Content-Type", "text/plain")
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	p := NewProcessor()
	img, err := p.LoadImageSmart(context.Background(), srv.URL+"/leaf.png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 16), img.Bounds())

	_, err = p.LoadImageSmart(context.Background(), srv.URL+"/missing.png")
	assert.Error(t, err)

	_, err = p.LoadImageFromURL(context.Background(), "ftp://example.com/leaf.png")
	assert.Error(t, err)
}

func TestCreateDebugOverlay(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(100, 100)
	box := types.Rect{Left: 20, Right: 79, Top: 10, Bottom: 89}

	out := p.CreateDebugOverlay(img, box, 3, OverlayRed)

	for _, pt := range []image.Point{{20, 50}, {22, 50}, {79, 50}, {77, 50}, {50, 10}, {50, 12}, {50, 89}, {50, 87}} {
		assert.Equal(t, OverlayRed, out.NRGBAAt(pt.X, pt.Y), "stroke at %v", pt)
	}
	assert.NotEqual(t, OverlayRed, out.NRGBAAt(23, 50))
	assert.NotEqual(t, OverlayRed, out.NRGBAAt(50, 50))
	assert.NotEqual(t, OverlayRed, out.NRGBAAt(19, 50))

	// the source is untouched
	assert.NotEqual(t, OverlayRed, img.NRGBAAt(20, 50))
}

func TestCropToBox(t *testing.T) {
	p := NewProcessor()
	crop, err := p.CropToBox(createTestImage(100, 80), types.Rect{Left: 10, Right: 59, Top: 5, Bottom: 44})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 50, 40), crop.Bounds())
	assert.Equal(t, uint8(10), crop.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(5), crop.NRGBAAt(0, 0).G)

	_, err = p.CropToBox(createTestImage(100, 80), types.Rect{Left: 200, Right: 300, Top: 5, Bottom: 44})
	assert.Error(t, err)
}

func TestValidateImage(t *testing.T) {
	p := NewProcessor()
	assert.NoError(t, p.ValidateImage(createTestImage(64, 64), 64))

	err := p.ValidateImage(createTestImage(64, 10), 64)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrPrecondition))
}

func TestEncodeUnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Encode(&buf, createTestImage(8, 8), "bmp", 90, false))

	path := filepath.Join(t.TempDir(), "leaf.bmp")
	assert.Error(t, NewProcessor().SaveImage(createTestImage(8, 8), path, "bmp", 90, false))
	assert.NoFileExists(t, path)
}

func TestCreateDebugOverlayClipsToImage(t *testing.T) {
	out := NewProcessor().CreateDebugOverlay(createTestImage(50, 40), types.Rect{Left: 0, Right: 49, Top: 0, Bottom: 39}, 10, OverlayRed)
	assert.Equal(t, image.Rect(0, 0, 50, 40), out.Bounds())
	assert.Equal(t, OverlayRed, out.NRGBAAt(0, 0))
	assert.Equal(t, OverlayRed, out.NRGBAAt(49, 39))
	assert.NotEqual(t, OverlayRed, out.NRGBAAt(25, 20))
}

func TestPrepareImageForModel(t *testing.T) {
	p := NewProcessor()
	enc, err := p.PrepareImageForModel(createTestImage(400, 200), "png", 100, 80)
	require.NoError(t, err)

	data, err := base64.StdEncoding.DecodeString(enc)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 50), img.Bounds())
}
