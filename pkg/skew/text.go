package skew

import (
	"fmt"
	"image"
	"math"

	"github.com/menta2k/leafcrop/pkg/geometry"
	"github.com/menta2k/leafcrop/pkg/pixstats"
	"github.com/menta2k/leafcrop/pkg/search"
	"github.com/menta2k/leafcrop/pkg/transform"
	"github.com/menta2k/leafcrop/pkg/types"
)

// ErrNoTextOrientation is returned (wrapped) by TextSkew when the page has
// no ink or its text lines give no reliable angle.
var ErrNoTextOrientation = types.ExternalError("text-skew", "no reliable text orientation", nil)

// inkUnit converts ink-map sums (ink is 255) into pixel counts squared
const inkUnit = 255 * 255

// TextSkew is the result of the text line search.
type TextSkew struct {
	Angle      float64 `json:"angle"`
	Confidence float64 `json:"confidence"`
	Score      float64 `json:"score"`
	MinScore   float64 `json:"min_score"`
	InkRatio   float64 `json:"ink_ratio"`
}

// TextSkew estimates the skew of the text lines on a binarized page (ink
// is 0, paper 255). The page is reduced, swept coarsely over
// ±SweepRange, then the best angle is refined by halving the step down to
// MinStep. Each score is the differential square sum of row ink counts.
// Confidence is the best score over the lowest coarse score.
func (e *Estimator) TextSkew(bin *image.Gray) (TextSkew, error) {
	cfg := e.config.Text
	ink := transform.Invert(transform.ThresholdToBinary(transform.Reduce(bin, cfg.Reduction), 128))
	w, h := ink.Rect.Dx(), ink.Rect.Dy()

	var res TextSkew
	if h < 3 {
		return res, fmt.Errorf("page of %d rows: %w", h, ErrNoTextOrientation)
	}

	var count int
	for _, v := range ink.Pix {
		if v != 0 {
			count++
		}
	}
	res.InkRatio = float64(count) / float64(w*h)
	if count == 0 || res.InkRatio < cfg.MinInk {
		return res, fmt.Errorf("ink ratio %.5f: %w", res.InkRatio, ErrNoTextOrientation)
	}

	full := types.Rect{Left: 0, Right: w - 1, Top: 0, Bottom: h}
	score := func(rot *image.Gray) float64 {
		return pixstats.DifferentialSquareSum(rot, full) / inkUnit
	}

	coarse := geometry.SweepConfig{Min: -cfg.SweepRange, Max: cfg.SweepRange, Step: cfg.SweepStep}
	out, err := search.Maximize(e.searcher.WithAngles(coarse.Angles()), "text-skew", ink,
		func(rot *image.Gray, angle float64) (struct{}, float64, bool) {
			return struct{}{}, score(rot), true
		})
	if err != nil {
		return res, fmt.Errorf("%v: %w", err, ErrNoTextOrientation)
	}

	best, bestScore := out.Angle, out.Score
	rotated := image.NewGray(ink.Rect)
	at := func(a float64) float64 {
		e.searcher.Rotator().Rotate(rotated, ink, a)
		return score(rotated)
	}
	// refinement never leaves the coarse sweep
	for step := cfg.SweepStep / 2; step >= cfg.MinStep; step /= 2 {
		lo, hi := max(best-step, -cfg.SweepRange), min(best+step, cfg.SweepRange)
		sLo, sHi := at(lo), at(hi)
		switch {
		case sLo > bestScore && sLo >= sHi:
			best, bestScore = lo, sLo
		case sHi > bestScore:
			best, bestScore = hi, sHi
		}
	}

	res.Angle = math.Round(best*1e4) / 1e4
	res.Score = bestScore
	res.MinScore = out.MinScore
	switch {
	case res.MinScore > 0:
		res.Confidence = bestScore / res.MinScore
	case bestScore > 0:
		res.Confidence = math.MaxFloat64
	}

	fields := map[string]interface{}{
		"angle":      res.Angle,
		"confidence": res.Confidence,
		"score":      res.Score,
		"min_score":  res.MinScore,
		"ink_ratio":  res.InkRatio,
	}
	if res.Score < cfg.MinScore || res.Confidence < cfg.MinConfidence {
		e.logger.Warning("text-skew", "low confidence", fields)
		return res, fmt.Errorf("score %.0f confidence %.2f: %w", res.Score, res.Confidence, ErrNoTextOrientation)
	}
	e.logger.Debug("text-skew", "text skew", fields)
	return res, nil
}
