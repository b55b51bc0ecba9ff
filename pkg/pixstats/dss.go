package pixstats

import (
	"image"

	"github.com/menta2k/leafcrop/pkg/types"
)

// DifferentialSquareSum computes row sums over the inclusive columns
// [r.Left, r.Right] for rows r.Top..r.Bottom-1 and returns the sum of the
// squared differences between consecutive row sums. Crisp horizontal
// structure (text lines, rules) gives a large value; skew smears it.
func DifferentialSquareSum(g *image.Gray, r types.Rect) float64 {
	w, h := size(g)
	types.Require(r.Left >= 0 && r.Left <= r.Right && r.Right < w, "dss", "bad columns in %v for width %d", r, w)
	types.Require(r.Top >= 0 && r.Top < r.Bottom && r.Bottom <= h, "dss", "bad rows in %v for height %d", r, h)

	rowSum := func(j int) float64 {
		var acc uint64
		for _, v := range g.Pix[j*g.Stride+r.Left : j*g.Stride+r.Right+1] {
			acc += uint64(v)
		}
		return float64(acc)
	}

	var sum float64
	prev := rowSum(r.Top)
	for j := r.Top + 1; j < r.Bottom; j++ {
		cur := rowSum(j)
		d := prev - cur
		sum += d * d
		prev = cur
	}
	return sum
}
