// Package pixstats holds the pixel statistics the page detectors are built
// from: windowed luma averages, sum-of-absolute-difference edge scores,
// variance minimization and the differential square sum used for deskew.
//
// All functions read an *image.Gray whose bounds start at (0,0). Windows
// that fall outside the buffer are caller bugs and panic with a
// types.KindPrecondition error.
package pixstats

import (
	"image"

	"github.com/menta2k/leafcrop/pkg/types"
)

// size returns width and height of a zero-origin buffer
func size(g *image.Gray) (int, int) {
	types.Require(g.Rect.Min.X == 0 && g.Rect.Min.Y == 0, "buffer", "origin must be (0,0), got %v", g.Rect.Min)
	return g.Rect.Dx(), g.Rect.Dy()
}

// AverageColumn returns the mean luma of column i over rows [jTop, jBot).
func AverageColumn(g *image.Gray, i, jTop, jBot int) float64 {
	w, h := size(g)
	types.Require(i >= 0 && i < w, "avg-column", "column %d outside width %d", i, w)
	types.Require(jTop >= 0 && jBot > jTop && jBot <= h, "avg-column", "bad row window [%d,%d) for height %d", jTop, jBot, h)

	var acc uint64
	off := jTop*g.Stride + i
	for j := jTop; j < jBot; j++ {
		acc += uint64(g.Pix[off])
		off += g.Stride
	}
	return float64(acc) / float64(jBot-jTop)
}

// AverageRow returns the mean luma of row j over columns [iLeft, iRight).
func AverageRow(g *image.Gray, j, iLeft, iRight int) float64 {
	w, h := size(g)
	types.Require(j >= 0 && j < h, "avg-row", "row %d outside height %d", j, h)
	types.Require(iLeft >= 0 && iRight > iLeft && iRight <= w, "avg-row", "bad column window [%d,%d) for width %d", iLeft, iRight, w)

	var acc uint64
	row := g.Pix[j*g.Stride : j*g.Stride+w]
	for _, v := range row[iLeft:iRight] {
		acc += uint64(v)
	}
	return float64(acc) / float64(iRight-iLeft)
}

// AverageBlock returns the mean luma of the inclusive rectangle
// [left,right] x [top,bottom].
func AverageBlock(g *image.Gray, left, right, top, bottom int) float64 {
	w, h := size(g)
	types.Require(left >= 0 && left <= right && right < w, "avg-block", "bad columns [%d,%d] for width %d", left, right, w)
	types.Require(top >= 0 && top <= bottom && bottom < h, "avg-block", "bad rows [%d,%d] for height %d", top, bottom, h)

	var acc uint64
	for j := top; j <= bottom; j++ {
		row := g.Pix[j*g.Stride:]
		for _, v := range row[left : right+1] {
			acc += uint64(v)
		}
	}
	return float64(acc) / float64((right-left+1)*(bottom-top+1))
}
