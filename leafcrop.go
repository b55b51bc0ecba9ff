// Package leafcrop finds the page of a photographed book leaf and the
// rotation that squares it.
//
// A leaf photographed sideways is first turned upright by a quarter turn.
// The edge detectors then locate the binding shadow, the outer edge and
// the top and bottom edges on a reduced copy; the box is scaled back up,
// the skew is estimated from the text lines (or, failing that, from the
// horizontal structure inside the box) and finally every edge is snapped
// to the flattest nearby line of the deskewed full resolution leaf.
//
// Basic usage:
//
//	cropper := leafcrop.New()
//	res, err := cropper.ProcessImage(img, types.RotateClockwise)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(res.Box, res.Angle, res.SkewMode)
//
// The packages under pkg/ can also be used on their own: pixstats holds
// the scoring functions, search the angle sweep, detect the edge finders,
// skew the skew estimators and refine the full resolution snapping.
package leafcrop

import (
	"errors"
	"fmt"
	"image"

	"github.com/menta2k/leafcrop/internal/logger"
	"github.com/menta2k/leafcrop/pkg/detect"
	"github.com/menta2k/leafcrop/pkg/refine"
	"github.com/menta2k/leafcrop/pkg/review"
	"github.com/menta2k/leafcrop/pkg/search"
	"github.com/menta2k/leafcrop/pkg/skew"
	"github.com/menta2k/leafcrop/pkg/transform"
	"github.com/menta2k/leafcrop/pkg/types"
)

// Version of the leafcrop library
const Version = "1.0.0"

// SkewMode says which estimate produced the applied angle
type SkewMode string

const (
	SkewText SkewMode = "text"
	SkewEdge SkewMode = "edge"
	SkewNone SkewMode = "none"
)

// Cropper runs the whole detection pipeline on one leaf at a time. It is
// safe for concurrent use once configured.
type Cropper struct {
	config    Config
	searcher  *search.Searcher
	detector  *detect.Detector
	estimator *skew.Estimator
	refiner   *refine.Refiner
	logger    logger.Logger

	reviewer     *review.Reviewer
	reviewMaxDim int
}

// Result describes the crop of one leaf. Box is in the coordinates of the
// upright leaf after rotation by Angle; Coarse is the detector box on the
// reduced buffer.
type Result struct {
	Box      types.CropBox `json:"box"`
	Coarse   types.CropBox `json:"coarse"`
	Angle    float64       `json:"angle"`
	SkewMode SkewMode      `json:"skew_mode"`

	TextConfidence float64 `json:"text_confidence"`
	EdgeConfidence float64 `json:"edge_confidence"`

	Direction types.RotationDirection `json:"direction"`
	Reduction int                     `json:"reduction"`
	Width     int                     `json:"width"`
	Height    int                     `json:"height"`

	// Leaf is the upright color leaf before deskew
	Leaf *image.NRGBA `json:"-"`
}

// New creates a cropper with the default configuration and rotator
func New() *Cropper {
	c, err := NewWithConfig(DefaultConfig(), transform.DefaultRotator())
	if err != nil {
		panic(err)
	}
	return c
}

// NewWithConfig creates a cropper from a validated configuration
func NewWithConfig(cfg Config, rotator transform.Rotator) (*Cropper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	searcher := search.New(rotator, cfg.Sweep.Angles())
	searcher.SetWorkers(cfg.Workers)

	return &Cropper{
		config:    cfg,
		searcher:  searcher,
		detector:  detect.NewWithConfig(cfg.Detect, searcher),
		estimator: skew.NewWithConfig(cfg.Skew, searcher),
		refiner:   refine.NewWithConfig(cfg.Refine),
		logger:    logger.Nop(),
	}, nil
}

// SetLogger installs l on the cropper and every stage
func (c *Cropper) SetLogger(l logger.Logger) {
	c.logger = logger.OrNop(l)
	c.searcher.SetLogger(l)
	c.detector.SetLogger(l)
	c.estimator.SetLogger(l)
	c.refiner.SetLogger(l)
}

func (c *Cropper) Config() Config {
	return c.config
}

// ProcessImage finds the crop box and skew of a leaf photographed sideways.
// dir is the quarter turn that brings it upright.
func (c *Cropper) ProcessImage(img image.Image, dir types.RotationDirection) (*Result, error) {
	if _, ok := dir.BindingSide(); !ok {
		return nil, types.UnsupportedError("pipeline", fmt.Sprintf("rotation direction %s", dir))
	}
	if b := img.Bounds(); b.Dx() < c.config.MinImageSide() || b.Dy() < c.config.MinImageSide() {
		return nil, types.NewError(types.KindPrecondition, "pipeline",
			fmt.Sprintf("image %dx%d is too small for reduction %d", b.Dx(), b.Dy(), c.config.Reduction), nil)
	}

	leaf := transform.Rotate90(img, dir)
	gray := transform.Grayscale(leaf, c.config.Weights)
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	reduced := transform.Reduce(gray, c.config.Reduction)

	det, err := c.detector.Detect(reduced, dir)
	if err != nil {
		return nil, fmt.Errorf("coarse detection: %w", err)
	}

	res := &Result{
		Coarse:    det.Box,
		Direction: dir,
		Reduction: c.config.Reduction,
		Width:     w,
		Height:    h,
		Leaf:      leaf,
	}
	box := det.Box.Scaled(c.config.Reduction, w, h)

	c.chooseSkew(res, gray, reduced, box)

	deskewed := gray
	if res.Angle != 0 {
		deskewed = transform.Rotated(c.searcher.Rotator(), gray, res.Angle)
	}
	if err := c.refiner.Refine(deskewed, &box, res.Angle); err != nil {
		return nil, fmt.Errorf("refinement: %w", err)
	}
	res.Box = box

	c.logger.Info("pipeline", "leaf cropped", map[string]interface{}{
		"box":       box.String(),
		"coarse":    det.Box.String(),
		"angle":     res.Angle,
		"skew_mode": string(res.SkewMode),
		"threshold": box.Threshold,
		"side":      box.Side.String(),
	})
	return res, nil
}

// chooseSkew picks the text estimate when it is confident, else the edge
// estimate over the coarse box, else no rotation at all. Each estimator
// applies its own confidence floor from skew.Config.
func (c *Cropper) chooseSkew(res *Result, gray, reduced *image.Gray, box types.CropBox) {
	res.SkewMode, res.Angle = SkewNone, 0

	page := transform.Clip(gray, image.Rect(box.Left, box.Top, box.Right+1, box.Bottom+1))
	ts, err := c.estimator.TextSkew(transform.ThresholdToBinary(page, box.Threshold))
	res.TextConfidence = ts.Confidence
	if err == nil {
		res.SkewMode, res.Angle = SkewText, ts.Angle
		return
	}
	if !errors.Is(err, skew.ErrNoTextOrientation) {
		c.logger.Error("pipeline", err, nil)
	}
	c.logger.Debug("pipeline", "text skew rejected, trying edges", map[string]interface{}{
		"confidence": ts.Confidence,
	})

	es, err := c.estimator.Deskew(transform.ThresholdToBinary(reduced, box.Threshold), res.Coarse.Rect)
	res.EdgeConfidence = es.Confidence
	if err == nil {
		res.SkewMode, res.Angle = SkewEdge, es.Angle
		return
	}
	c.logger.Warning("pipeline", "no reliable skew, leaving leaf unrotated", map[string]interface{}{
		"text_confidence": res.TextConfidence,
		"edge_confidence": res.EdgeConfidence,
	})
}
