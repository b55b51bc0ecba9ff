package pixstats

import (
	"image"

	"github.com/menta2k/leafcrop/pkg/types"
)

// StrongestColumnEdge scores every column i in [left, right) by the sum over
// rows [jTop, jBot) of |p(i,j) - p(i+1,j)| and returns the column with the
// largest sum. Ties keep the leftmost column. ok is false when the range is
// empty or every score is zero.
func StrongestColumnEdge(g *image.Gray, left, right, jTop, jBot int) (types.EdgeCandidate, bool) {
	w, h := size(g)
	if left >= right {
		return types.EdgeCandidate{}, false
	}
	types.Require(left >= 0 && right < w, "sad-column", "columns [%d,%d] outside width %d", left, right, w)
	types.Require(jTop >= 0 && jBot > jTop && jBot <= h, "sad-column", "bad row window [%d,%d) for height %d", jTop, jBot, h)

	best := types.EdgeCandidate{Index: -1}
	for i := left; i < right; i++ {
		var acc uint64
		off := jTop*g.Stride + i
		for j := jTop; j < jBot; j++ {
			acc += absDiff(g.Pix[off], g.Pix[off+1])
			off += g.Stride
		}
		if acc > best.Score {
			best = types.EdgeCandidate{Index: i, Score: acc}
		}
	}
	return best, best.Index != -1
}

// StrongestRowEdge is the row analogue of StrongestColumnEdge: rows j in
// [top, bottom) are scored by |p(i,j) - p(i,j+1)| summed over columns
// [left, right).
func StrongestRowEdge(g *image.Gray, left, right, top, bottom int) (types.EdgeCandidate, bool) {
	w, h := size(g)
	if top >= bottom {
		return types.EdgeCandidate{}, false
	}
	types.Require(left >= 0 && right > left && right <= w, "sad-row", "bad column window [%d,%d) for width %d", left, right, w)
	types.Require(top >= 0 && bottom < h, "sad-row", "rows [%d,%d] outside height %d", top, bottom, h)

	best := types.EdgeCandidate{Index: -1}
	for j := top; j < bottom; j++ {
		var acc uint64
		cur := g.Pix[j*g.Stride:]
		next := g.Pix[(j+1)*g.Stride:]
		for i := left; i < right; i++ {
			acc += absDiff(cur[i], next[i])
		}
		if acc > best.Score {
			best = types.EdgeCandidate{Index: j, Score: acc}
		}
	}
	return best, best.Index != -1
}

// FullPageRowSAD sums |p(i,j) - p(i,j+1)| over the whole window
// [left,right) x [top,bottom). It is an alternative deskew score.
func FullPageRowSAD(g *image.Gray, r types.Rect) float64 {
	w, h := size(g)
	types.Require(r.Left >= 0 && r.Right > r.Left && r.Right <= w, "sad-page", "bad columns in %v for width %d", r, w)
	types.Require(r.Top >= 0 && r.Bottom > r.Top && r.Bottom < h, "sad-page", "bad rows in %v for height %d", r, h)

	var acc uint64
	for j := r.Top; j < r.Bottom; j++ {
		cur := g.Pix[j*g.Stride:]
		next := g.Pix[(j+1)*g.Stride:]
		for i := r.Left; i < r.Right; i++ {
			acc += absDiff(cur[i], next[i])
		}
	}
	return float64(acc)
}

func absDiff(a, b uint8) uint64 {
	if a > b {
		return uint64(a - b)
	}
	return uint64(b - a)
}
