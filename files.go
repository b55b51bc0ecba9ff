package leafcrop

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"

	"github.com/menta2k/leafcrop/internal/utils"
	"github.com/menta2k/leafcrop/pkg/processing"
	"github.com/menta2k/leafcrop/pkg/review"
	"github.com/menta2k/leafcrop/pkg/transform"
	"github.com/menta2k/leafcrop/pkg/types"
)

// OutputOptions controls what ProcessFile writes
type OutputOptions struct {
	Dir      string `json:"dir" yaml:"dir"`
	Format   string `json:"format" yaml:"format"`
	Quality  int    `json:"quality" yaml:"quality"`
	Lossless bool   `json:"lossless" yaml:"lossless"`
	// Debug writes the red box overlay next to the crop
	Debug       bool   `json:"debug" yaml:"debug"`
	DebugFormat string `json:"debug_format" yaml:"debug_format"`
	LineWidth   int    `json:"line_width" yaml:"line_width"`
	// Report writes the Result as JSON next to the crop
	Report bool `json:"report" yaml:"report"`
}

func DefaultOutputOptions() OutputOptions {
	return OutputOptions{
		Dir:         "./output",
		Format:      "jpg",
		Quality:     90,
		Debug:       false,
		DebugFormat: "jpg",
		LineWidth:   10,
		Report:      true,
	}
}

// Report is what ProcessFile produced for one leaf
type Report struct {
	Source      string            `json:"source"`
	Result      *Result           `json:"result"`
	CropPath    string            `json:"crop_path"`
	OverlayPath string            `json:"overlay_path,omitempty"`
	ReportPath  string            `json:"-"`
	Review      *types.CropReview `json:"review,omitempty"`
	ReviewError string            `json:"review_error,omitempty"`
}

// SetReviewer enables the vision model check of every overlay. Overlays are
// downscaled to maxDim before being sent.
func (c *Cropper) SetReviewer(r *review.Reviewer, maxDim int) {
	c.reviewer = r
	c.reviewMaxDim = maxDim
}

// ProcessFile loads a leaf from a path or URL, crops it and writes the
// deskewed crop, and optionally the overlay and the JSON report, to opts.Dir.
func (c *Cropper) ProcessFile(ctx context.Context, source string, dir types.RotationDirection, opts OutputOptions) (*Report, error) {
	proc := processing.NewProcessor()

	img, err := proc.LoadImageSmart(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	if err := proc.ValidateImage(img, c.config.MinImageSide()); err != nil {
		return nil, fmt.Errorf("image validation failed: %w", err)
	}

	res, err := c.ProcessImage(img, dir)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureDir(opts.Dir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	rep := &Report{Source: source, Result: res}
	leaf := transform.RotateImage(res.Leaf, res.Angle)

	crop, err := proc.CropToBox(leaf, res.Box.Rect)
	if err != nil {
		return nil, err
	}
	rep.CropPath = utils.GenerateOutputFilename(source, opts.Dir, "", "_crop", opts.Format)
	if err := proc.SaveImage(crop, rep.CropPath, opts.Format, opts.Quality, opts.Lossless); err != nil {
		return nil, fmt.Errorf("failed to save crop: %w", err)
	}

	if opts.Debug || c.reviewer != nil {
		overlay := proc.CreateDebugOverlay(leaf, res.Box.Rect, opts.LineWidth, processing.OverlayRed)
		if opts.Debug {
			rep.OverlayPath = utils.GenerateOutputFilename(source, opts.Dir, "", "_overlay", opts.DebugFormat)
			if err := proc.SaveImage(overlay, rep.OverlayPath, opts.DebugFormat, opts.Quality, opts.Lossless); err != nil {
				return nil, fmt.Errorf("failed to save overlay: %w", err)
			}
		}
		if c.reviewer != nil {
			c.reviewOverlay(ctx, proc, overlay, rep)
		}
	}

	if opts.Report {
		rep.ReportPath = utils.GenerateOutputFilename(source, opts.Dir, "", "_crop", "json")
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal report: %w", err)
		}
		if err := os.WriteFile(rep.ReportPath, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write report: %w", err)
		}
	}
	return rep, nil
}

// reviewOverlay records the model verdict on rep. Review failures never
// fail the crop.
func (c *Cropper) reviewOverlay(ctx context.Context, proc *processing.Processor, overlay *image.NRGBA, rep *Report) {
	b64, err := proc.PrepareImageForModel(overlay, "jpg", c.reviewMaxDim, 85)
	if err == nil {
		rep.Review, err = c.reviewer.Review(ctx, b64)
	}
	if err != nil {
		rep.ReviewError = err.Error()
		c.logger.Error("review", err, map[string]interface{}{"source": rep.Source})
		return
	}
	c.logger.Info("review", "crop reviewed", map[string]interface{}{
		"fits":       rep.Review.Fits,
		"confidence": rep.Review.Confidence,
		"issues":     rep.Review.Issues,
	})
}
