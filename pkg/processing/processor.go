// Package processing decodes and encodes leaf images and draws the debug
// overlay of a crop box.
package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/leafcrop/pkg/types"
)

// MaxDownloadSize caps the body read from an image URL
const MaxDownloadSize = 64 << 20

// OverlayRed is the color of the crop rectangle on debug overlays
var OverlayRed = color.NRGBA{R: 255, A: 255}

// Processor handles image I/O
type Processor struct {
	client *http.Client
}

func NewProcessor() *Processor {
	return &Processor{client: &http.Client{Timeout: 30 * time.Second}}
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(ctx context.Context, source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(ctx, source)
	}
	return p.LoadImage(source)
}

// LoadImage decodes a file. WebP files that the registered decoder
// rejects are retried with libwebp.
func (p *Processor) LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// LoadImageFromURL downloads and decodes an image
func (p *Processor) LoadImageFromURL(ctx context.Context, imageURL string) (image.Image, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	data, err := p.fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func (p *Processor) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "leafcrop/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %s", resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("not an image (Content-Type: %s)", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > MaxDownloadSize {
		return nil, fmt.Errorf("image larger than %d bytes", MaxDownloadSize)
	}
	return data, nil
}

func decode(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// ValidateImage rejects images too small to hold a leaf at the given
// reduction.
func (p *Processor) ValidateImage(img image.Image, minSide int) error {
	b := img.Bounds()
	if b.Dx() < minSide || b.Dy() < minSide {
		return types.NewError(types.KindPrecondition, "load",
			fmt.Sprintf("image %dx%d is smaller than %d pixels on a side", b.Dx(), b.Dy(), minSide), nil)
	}
	return nil
}

// Encode writes img as format (jpg, png or webp). quality applies to jpg
// and lossy webp.
func Encode(w io.Writer, img image.Image, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		return webp.Encode(w, img, &webp.Options{Lossless: lossless, Quality: float32(quality)})
	case "png":
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	case "jpg", "jpeg", "":
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// SaveImage encodes img to path
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, img, format, quality, lossless); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}

// PrepareImageForModel scales img so its long side is at most maxDim and
// returns it base64 encoded for a vision model.
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if b := img.Bounds(); maxDim > 0 && (b.Dx() > maxDim || b.Dy() > maxDim) {
		if b.Dx() >= b.Dy() {
			img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := Encode(&buf, img, format, quality, false); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// CropToBox copies the pixels inside r, edges included.
func (p *Processor) CropToBox(img image.Image, r types.Rect) (*image.NRGBA, error) {
	b := img.Bounds()
	rect := inclusive(r).Add(b.Min).Intersect(b)
	if rect.Empty() {
		return nil, fmt.Errorf("crop box %v outside image %v", r, b)
	}
	return imaging.Crop(img, rect), nil
}

// CreateDebugOverlay draws r as a rectangle lineWidth pixels wide on a copy
// of img. The stroke grows inward from the box edges.
func (p *Processor) CreateDebugOverlay(img image.Image, r types.Rect, lineWidth int, c color.NRGBA) *image.NRGBA {
	out := imaging.Clone(img)
	lw := max(lineWidth, 1)
	box := inclusive(r)
	paint := image.NewUniform(c)
	for _, band := range []image.Rectangle{
		image.Rect(box.Min.X, box.Min.Y, box.Max.X, box.Min.Y+lw),
		image.Rect(box.Min.X, box.Max.Y-lw, box.Max.X, box.Max.Y),
		image.Rect(box.Min.X, box.Min.Y, box.Min.X+lw, box.Max.Y),
		image.Rect(box.Max.X-lw, box.Min.Y, box.Max.X, box.Max.Y),
	} {
		draw.Draw(out, band.Intersect(out.Rect), paint, image.Point{}, draw.Src)
	}
	return out
}

func inclusive(r types.Rect) image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right+1, r.Bottom+1)
}
