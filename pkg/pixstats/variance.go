package pixstats

import (
	"image"
	"math"

	"github.com/menta2k/leafcrop/pkg/types"
)

// MinVarianceColumn looks at every column i in [left, right] and returns the
// one whose pixels have the smallest sum of squared deviations from their own
// mean. The vertical extent [top, bottom) is first trimmed by inset*(bottom-top)
// rows at each end. Columns whose mean is below floor are skipped as
// background or binding shadow; ties keep the leftmost column. ok is false
// when every column was skipped.
func MinVarianceColumn(g *image.Gray, left, right, top, bottom int, floor, inset float64) (types.VarianceCandidate, bool) {
	w, _ := size(g)
	types.Require(left >= 0 && left < right && right < w, "minvar-column", "bad columns [%d,%d] for width %d", left, right, w)

	best := types.VarianceCandidate{Index: -1, Variance: math.MaxFloat64}
	for i := left; i <= right; i++ {
		c, ok := ColumnVariance(g, i, top, bottom, floor, inset)
		if ok && c.Variance < best.Variance {
			best = c
		}
	}
	return best, best.Index != -1
}

// ColumnVariance scores the single column i the way MinVarianceColumn does.
// ok is false when its trimmed mean is below floor.
func ColumnVariance(g *image.Gray, i, top, bottom int, floor, inset float64) (types.VarianceCandidate, bool) {
	w, h := size(g)
	types.Require(i >= 0 && i < w, "minvar-column", "column %d outside width %d", i, w)
	types.Require(top >= 0 && top < bottom && bottom < h, "minvar-column", "bad rows [%d,%d] for height %d", top, bottom, h)
	types.Require(inset >= 0 && inset < 0.5, "minvar-column", "inset %.2f outside [0,0.5)", inset)

	trim := int(inset * float64(bottom-top))
	jTop, jBot := top+trim, bottom-trim

	avg := AverageColumn(g, i, jTop, jBot)
	if avg < floor {
		return types.VarianceCandidate{Index: -1}, false
	}
	var sum float64
	off := jTop*g.Stride + i
	for j := jTop; j < jBot; j++ {
		d := avg - float64(g.Pix[off])
		sum += d * d
		off += g.Stride
	}
	return types.VarianceCandidate{Index: i, Variance: sum}, true
}

// MinVarianceRow is the row analogue of MinVarianceColumn: rows j in
// [top, bottom] are scored over columns [left, right) trimmed by
// inset*(right-left) at each end.
func MinVarianceRow(g *image.Gray, left, right, top, bottom int, floor, inset float64) (types.VarianceCandidate, bool) {
	_, h := size(g)
	types.Require(top >= 0 && top < bottom && bottom < h, "minvar-row", "bad rows [%d,%d] for height %d", top, bottom, h)

	best := types.VarianceCandidate{Index: -1, Variance: math.MaxFloat64}
	for j := top; j <= bottom; j++ {
		c, ok := RowVariance(g, j, left, right, floor, inset)
		if ok && c.Variance < best.Variance {
			best = c
		}
	}
	return best, best.Index != -1
}

// RowVariance scores the single row j the way MinVarianceRow does.
func RowVariance(g *image.Gray, j, left, right int, floor, inset float64) (types.VarianceCandidate, bool) {
	w, h := size(g)
	types.Require(left >= 0 && left < right && right < w, "minvar-row", "bad columns [%d,%d] for width %d", left, right, w)
	types.Require(j >= 0 && j < h, "minvar-row", "row %d outside height %d", j, h)
	types.Require(inset >= 0 && inset < 0.5, "minvar-row", "inset %.2f outside [0,0.5)", inset)

	trim := int(inset * float64(right-left))
	iLeft, iRight := left+trim, right-trim

	avg := AverageRow(g, j, iLeft, iRight)
	if avg < floor {
		return types.VarianceCandidate{Index: -1}, false
	}
	var sum float64
	for _, v := range g.Pix[j*g.Stride+iLeft : j*g.Stride+iRight] {
		d := avg - float64(v)
		sum += d * d
	}
	return types.VarianceCandidate{Index: j, Variance: sum}, true
}

// MinBlockVarianceColumn slides a block of kernelWidth columns across
// [left, right] and scores each position by the variance of the whole block
// over rows [top, bottom] (inclusive). The returned index is the first
// column to the right of the winning block.
func MinBlockVarianceColumn(g *image.Gray, left, right, top, bottom, kernelWidth int) (types.VarianceCandidate, bool) {
	w, h := size(g)
	types.Require(kernelWidth > 0, "minvar-block", "kernel width %d", kernelWidth)
	types.Require(left >= 0 && right >= left+kernelWidth && right < w, "minvar-block", "bad columns [%d,%d] for kernel %d and width %d", left, right, kernelWidth, w)
	types.Require(top >= 0 && top < bottom && bottom < h, "minvar-block", "bad rows [%d,%d] for height %d", top, bottom, h)

	blockSize := float64(kernelWidth * (bottom - top + 1))

	best := types.VarianceCandidate{Index: -1, Variance: math.MaxFloat64}
	for iCol := left; iCol <= right-kernelWidth; iCol++ {
		last := iCol + kernelWidth - 1
		avg := AverageBlock(g, iCol, last, top, bottom)
		var sum float64
		for j := top; j <= bottom; j++ {
			row := g.Pix[j*g.Stride:]
			for _, v := range row[iCol : last+1] {
				d := avg - float64(v)
				sum += d * d
			}
		}
		sum /= blockSize
		if sum < best.Variance {
			best = types.VarianceCandidate{Index: iCol + kernelWidth, Variance: sum}
		}
	}
	return best, best.Index != -1
}
