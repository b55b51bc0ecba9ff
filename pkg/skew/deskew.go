// Package skew estimates how far a leaf is rotated: Deskew scores the
// horizontal structure inside the crop box over the edge sweep, TextSkew
// searches a wider range on the binarized page for aligned text lines.
package skew

import (
	"fmt"
	"image"
	"math"

	"github.com/menta2k/leafcrop/internal/logger"
	"github.com/menta2k/leafcrop/pkg/geometry"
	"github.com/menta2k/leafcrop/pkg/pixstats"
	"github.com/menta2k/leafcrop/pkg/search"
	"github.com/menta2k/leafcrop/pkg/types"
)

// Estimator runs both skew searches with a shared rotator
type Estimator struct {
	config   Config
	searcher *search.Searcher
	logger   logger.Logger
}

// EdgeSkew is the result of Deskew. Confidence is MaxScore/MinScore.
type EdgeSkew struct {
	Angle      float64    `json:"angle"`
	Confidence float64    `json:"confidence"`
	MaxScore   float64    `json:"max_score"`
	MinScore   float64    `json:"min_score"`
	Region     types.Rect `json:"region"`
}

func New(searcher *search.Searcher) *Estimator {
	return NewWithConfig(DefaultConfig(), searcher)
}

func NewWithConfig(cfg Config, searcher *search.Searcher) *Estimator {
	return &Estimator{config: cfg, searcher: searcher, logger: logger.Nop()}
}

func (e *Estimator) SetLogger(l logger.Logger) {
	e.logger = logger.OrNop(l)
}

// score evaluates the configured scorer over columns [r.Left, r.Right] and
// rows [r.Top, r.Bottom). ok is false for regions too small to score.
func (e *Estimator) score(g *image.Gray, r types.Rect) (float64, bool) {
	if r.Left > r.Right || r.Bottom-r.Top < 2 {
		return 0, false
	}
	if e.config.Scorer == ScorerSAD {
		return pixstats.FullPageRowSAD(g, types.Rect{Left: r.Left, Right: r.Right + 1, Top: r.Top, Bottom: r.Bottom - 1}), true
	}
	return pixstats.DifferentialSquareSum(g, r), true
}

// Deskew finds the rotation that maximizes horizontal structure inside the
// inclusive box. The box is shrunk by Config.Shrink of the image size when
// it is large enough, then clamped at every angle to the interior the
// rotation leaves intact. A confidence below Config.MinConfidence is a
// detection failure; the result is still filled in.
func (e *Estimator) Deskew(g *image.Gray, box types.Rect) (EdgeSkew, error) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	types.Require(box.Valid(), "deskew", "invalid box %v", box)

	dx := int(float64(w) * e.config.Shrink)
	dy := int(float64(h) * e.config.Shrink)
	r := box
	if r.Width() > 2*dx && r.Height() > 2*dy {
		r = types.Rect{Left: r.Left + dx, Right: r.Right - dx, Top: r.Top + dy, Bottom: r.Bottom - dy}
	}

	// scoring rows are half-open
	clampAt := func(angle float64) types.Rect {
		limitLeft := geometry.LimitLeft(w, h, angle)
		limitTop := geometry.LimitTop(w, h, angle)
		return types.Rect{
			Left:   max(r.Left, limitLeft),
			Right:  min(r.Right, w-limitLeft, w-1),
			Top:    max(r.Top, limitTop),
			Bottom: min(r.Bottom+1, h-limitTop),
		}
	}

	base, ok := e.score(g, clampAt(0))
	if !ok {
		return EdgeSkew{}, types.DetectionError("deskew", fmt.Sprintf("region %v too small", r))
	}
	res := EdgeSkew{MaxScore: base, MinScore: base, Region: r}

	sweep := e.searcher.WithAngles(geometry.WithoutZero(e.searcher.Angles(), e.config.ZeroTolerance))
	if len(sweep.Angles()) > 0 {
		out, err := search.Maximize(sweep, "deskew", g, func(rot *image.Gray, angle float64) (struct{}, float64, bool) {
			s, ok := e.score(rot, clampAt(angle))
			return struct{}{}, s, ok
		})
		if err == nil {
			if out.Score > res.MaxScore {
				res.MaxScore, res.Angle = out.Score, out.Angle
			}
			res.MinScore = math.Min(res.MinScore, out.MinScore)
		}
	}

	switch {
	case res.MaxScore == 0:
		return res, types.DetectionError("deskew", "no horizontal structure in region")
	case res.MinScore <= 0:
		res.Confidence = math.MaxFloat64
	default:
		res.Confidence = res.MaxScore / res.MinScore
	}

	fields := map[string]interface{}{
		"angle":      res.Angle,
		"confidence": res.Confidence,
		"max_score":  res.MaxScore,
		"min_score":  res.MinScore,
		"region":     r.String(),
	}
	if res.Confidence < e.config.MinConfidence {
		e.logger.Warning("deskew", "low confidence", fields)
		return res, types.DetectionError("deskew", fmt.Sprintf("confidence %.2f below %.2f", res.Confidence, e.config.MinConfidence))
	}
	e.logger.Debug("deskew", "edge skew", fields)
	return res, nil
}
