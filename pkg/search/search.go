// Package search sweeps a fixed set of small rotations over a gray buffer
// and keeps the angle whose rotated copy scores best.
package search

import (
	"fmt"
	"image"

	"golang.org/x/sync/errgroup"

	"github.com/menta2k/leafcrop/internal/logger"
	"github.com/menta2k/leafcrop/pkg/transform"
	"github.com/menta2k/leafcrop/pkg/types"
)

// Objective scores one rotated copy of the source. ok=false means the
// rotation produced no candidate; such angles never win. Objectives may be
// called from several goroutines and must not retain rotated.
type Objective[T any] func(rotated *image.Gray, angle float64) (value T, score float64, ok bool)

// Outcome is the result of a sweep.
type Outcome[T any] struct {
	Angle float64
	Value T
	Score float64

	// lowest valid score seen, used for confidence ratios
	MinAngle float64
	MinScore float64

	// valid samples in sweep order
	Samples   []types.AngleSample
	Evaluated int
}

// Searcher owns the rotator and the angle sweep.
type Searcher struct {
	rotator transform.Rotator
	angles  []float64
	workers int
	logger  logger.Logger
}

// New returns a sequential searcher over angles.
func New(rotator transform.Rotator, angles []float64) *Searcher {
	return &Searcher{
		rotator: rotator,
		angles:  append([]float64(nil), angles...),
		workers: 1,
		logger:  logger.Nop(),
	}
}

// SetWorkers sets how many angles are evaluated concurrently. Each worker
// holds one rotated buffer.
func (s *Searcher) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	s.workers = n
}

func (s *Searcher) SetLogger(l logger.Logger) {
	s.logger = logger.OrNop(l)
}

// Angles returns a copy of the sweep
func (s *Searcher) Angles() []float64 {
	return append([]float64(nil), s.angles...)
}

func (s *Searcher) Rotator() transform.Rotator {
	return s.rotator
}

// WithAngles returns a searcher sharing rotator, workers and logger but
// sweeping a different set of angles.
func (s *Searcher) WithAngles(angles []float64) *Searcher {
	c := *s
	c.angles = append([]float64(nil), angles...)
	return &c
}

type sample[T any] struct {
	value T
	score float64
	ok    bool
}

// Maximize evaluates obj on src rotated by every angle of the sweep. The
// full sweep always runs. Ties keep the earliest angle in sweep order. A
// sweep where no angle yields a candidate is a detection failure for stage.
func Maximize[T any](s *Searcher, stage string, src *image.Gray, obj Objective[T]) (Outcome[T], error) {
	samples := evaluate(s, src, obj)

	var out Outcome[T]
	found := false
	for i, smp := range samples {
		out.Evaluated++
		if !smp.ok {
			continue
		}
		angle := s.angles[i]
		out.Samples = append(out.Samples, types.AngleSample{Angle: angle, Score: smp.score})
		if !found {
			out.Angle, out.Value, out.Score = angle, smp.value, smp.score
			out.MinAngle, out.MinScore = angle, smp.score
			found = true
			continue
		}
		if smp.score > out.Score {
			out.Angle, out.Value, out.Score = angle, smp.value, smp.score
		}
		if smp.score < out.MinScore {
			out.MinAngle, out.MinScore = angle, smp.score
		}
	}

	if !found {
		return out, types.DetectionError(stage, "no rotation produced a candidate")
	}

	s.logger.Debug("search", "sweep finished", map[string]interface{}{
		"stage":     stage,
		"angle":     out.Angle,
		"score":     out.Score,
		"min_angle": out.MinAngle,
		"min_score": out.MinScore,
		"evaluated": out.Evaluated,
		"valid":     len(out.Samples),
	})
	return out, nil
}

func evaluate[T any](s *Searcher, src *image.Gray, obj Objective[T]) []sample[T] {
	samples := make([]sample[T], len(s.angles))
	w, h := src.Rect.Dx(), src.Rect.Dy()

	run := func(first, stride int) {
		dst := image.NewGray(image.Rect(0, 0, w, h))
		for i := first; i < len(s.angles); i += stride {
			s.rotator.Rotate(dst, src, s.angles[i])
			v, score, ok := obj(dst, s.angles[i])
			samples[i] = sample[T]{value: v, score: score, ok: ok}
		}
	}

	workers := min(s.workers, len(s.angles))
	if workers <= 1 {
		run(0, 1)
		return samples
	}

	var g errgroup.Group
	for k := 0; k < workers; k++ {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = workerPanic{value: p}
				}
			}()
			run(k, workers)
			return nil
		})
	}
	// a precondition broken inside a worker fails fast on the caller's
	// goroutine, as it does in a sequential sweep
	if err := g.Wait(); err != nil {
		if wp, ok := err.(workerPanic); ok {
			panic(wp.value)
		}
		panic(err)
	}
	return samples
}

type workerPanic struct {
	value interface{}
}

func (p workerPanic) Error() string {
	return fmt.Sprintf("sweep worker panicked: %v", p.value)
}
