package pixstats

import (
	"image"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/leafcrop/pkg/types"
)

func newGray(w, h int, fill uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = fill
	}
	return g
}

func fillColumns(g *image.Gray, x0, x1 int, v uint8) {
	for y := 0; y < g.Rect.Dy(); y++ {
		for x := x0; x < x1; x++ {
			g.Pix[y*g.Stride+x] = v
		}
	}
}

func fillRows(g *image.Gray, y0, y1 int, v uint8) {
	for y := y0; y < y1; y++ {
		for x := 0; x < g.Rect.Dx(); x++ {
			g.Pix[y*g.Stride+x] = v
		}
	}
}

// noisy fills columns [x0,x1) with random values in [lo,lo+span)
func noisy(g *image.Gray, x0, x1 int, lo, span int, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for y := 0; y < g.Rect.Dy(); y++ {
		for x := x0; x < x1; x++ {
			g.Pix[y*g.Stride+x] = uint8(lo + rng.Intn(span))
		}
	}
}

func TestAverages(t *testing.T) {
	g := newGray(10, 8, 100)
	fillColumns(g, 5, 10, 200)

	assert.Equal(t, 100.0, AverageColumn(g, 4, 0, 8))
	assert.Equal(t, 200.0, AverageColumn(g, 5, 2, 3))
	assert.Equal(t, 150.0, AverageRow(g, 3, 0, 10))
	assert.Equal(t, 150.0, AverageBlock(g, 4, 5, 0, 7))
	assert.Equal(t, 200.0, AverageBlock(g, 9, 9, 7, 7))
}

func TestAveragePreconditions(t *testing.T) {
	g := newGray(10, 8, 0)

	assert.Panics(t, func() { AverageColumn(g, 10, 0, 8) })
	assert.Panics(t, func() { AverageColumn(g, 0, 4, 4) })
	assert.Panics(t, func() { AverageRow(g, 0, 0, 11) })
	assert.Panics(t, func() { AverageBlock(g, 0, 10, 0, 7) })

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(*types.Error)
		require.True(t, ok, "panic value should be *types.Error, got %T", r)
		assert.Equal(t, types.KindPrecondition, err.Kind)
	}()
	AverageRow(g, 8, 0, 10)
}

func TestStrongestColumnEdge(t *testing.T) {
	g := newGray(40, 30, 220)
	fillColumns(g, 20, 26, 10)

	edge, ok := StrongestColumnEdge(g, 0, 39, 5, 25)
	require.True(t, ok)
	// 19|20 and 25|26 tie; the leftmost wins
	assert.Equal(t, 19, edge.Index)
	assert.Equal(t, uint64(210*20), edge.Score)

	again, ok := StrongestColumnEdge(g, 0, 39, 5, 25)
	require.True(t, ok)
	assert.Equal(t, edge, again)

	edge, ok = StrongestColumnEdge(g, 21, 39, 5, 25)
	require.True(t, ok)
	assert.Equal(t, 25, edge.Index)
}

func TestStrongestRowEdge(t *testing.T) {
	g := newGray(30, 40, 30)
	fillRows(g, 12, 40, 240)

	edge, ok := StrongestRowEdge(g, 0, 30, 0, 39)
	require.True(t, ok)
	assert.Equal(t, 11, edge.Index)
	assert.Equal(t, uint64(210*30), edge.Score)
}

func TestEdgeSentinelOnFlatBuffer(t *testing.T) {
	g := newGray(50, 50, 128)

	_, ok := StrongestColumnEdge(g, 0, 49, 0, 50)
	assert.False(t, ok, "flat buffer must not yield a column edge")

	_, ok = StrongestRowEdge(g, 0, 50, 0, 49)
	assert.False(t, ok, "flat buffer must not yield a row edge")

	_, ok = StrongestColumnEdge(g, 10, 10, 0, 50)
	assert.False(t, ok, "empty range")
}

func TestStrongestEdgePreconditions(t *testing.T) {
	g := newGray(20, 20, 0)
	assert.Panics(t, func() { StrongestColumnEdge(g, 0, 20, 0, 20) })
	assert.Panics(t, func() { StrongestColumnEdge(g, 0, 10, 0, 21) })
	assert.Panics(t, func() { StrongestRowEdge(g, 0, 20, 0, 20) })
}

func TestMinVarianceColumnPrefersUniformRegion(t *testing.T) {
	g := newGray(60, 100, 0)
	noisy(g, 0, 30, 150, 100, 1)
	fillColumns(g, 30, 45, 230)
	noisy(g, 45, 60, 150, 100, 2)

	got, ok := MinVarianceColumn(g, 0, 59, 0, 99, 140, 0.20)
	require.True(t, ok)
	assert.GreaterOrEqual(t, got.Index, 30)
	assert.Less(t, got.Index, 45)
	assert.Equal(t, 30, got.Index, "first zero-variance column wins")
	assert.Zero(t, got.Variance)
}

func TestMinVarianceColumnBrightnessFloor(t *testing.T) {
	g := newGray(40, 50, 100)

	_, ok := MinVarianceColumn(g, 0, 39, 0, 49, 140, 0.20)
	assert.False(t, ok, "all columns below the floor")

	fillColumns(g, 0, 40, 200)
	got, ok := MinVarianceColumn(g, 5, 39, 0, 49, 140, 0.20)
	require.True(t, ok)
	assert.Equal(t, 5, got.Index, "ties resolve to the first column")
}

func TestMinVarianceColumnIgnoresTrimmedBand(t *testing.T) {
	g := newGray(20, 100, 200)
	// speckle only in the outer 20% of the band
	noisy(g, 0, 10, 150, 100, 3)
	fillRows(g, 19, 81, 200)

	got, ok := MinVarianceColumn(g, 0, 19, 0, 99, 140, 0.20)
	require.True(t, ok)
	assert.Equal(t, 0, got.Index)
	assert.Zero(t, got.Variance)
}

func TestSingleLineVariance(t *testing.T) {
	g := newGray(40, 50, 200)
	noisy(g, 10, 11, 150, 100, 4)
	fillColumns(g, 20, 21, 90)

	flat, ok := ColumnVariance(g, 5, 0, 49, 140, 0.20)
	require.True(t, ok)
	assert.Equal(t, 5, flat.Index)
	assert.Zero(t, flat.Variance)

	rough, ok := ColumnVariance(g, 10, 0, 49, 140, 0.20)
	require.True(t, ok)
	assert.Greater(t, rough.Variance, 0.0)

	_, ok = ColumnVariance(g, 20, 0, 49, 140, 0.20)
	assert.False(t, ok, "column below the floor")

	row, ok := RowVariance(g, 3, 0, 9, 140, 0.20)
	require.True(t, ok)
	assert.Equal(t, 3, row.Index)
	assert.Zero(t, row.Variance)

	assert.Panics(t, func() { ColumnVariance(g, 40, 0, 49, 140, 0.20) })
	assert.Panics(t, func() { RowVariance(g, 50, 0, 9, 140, 0.20) })
}

func TestMinVarianceRow(t *testing.T) {
	g := newGray(100, 40, 0)
	for y := 0; y < 40; y++ {
		for x := 0; x < 100; x++ {
			if y < 15 {
				g.Pix[y*g.Stride+x] = uint8(150 + (x*7+y*13)%90)
			} else {
				g.Pix[y*g.Stride+x] = 210
			}
		}
	}

	got, ok := MinVarianceRow(g, 0, 99, 0, 39, 140, 0.20)
	require.True(t, ok)
	assert.Equal(t, 15, got.Index)
}

func TestMinBlockVarianceColumn(t *testing.T) {
	g := newGray(80, 40, 0)
	noisy(g, 0, 80, 100, 120, 4)
	fillColumns(g, 40, 50, 220)

	got, ok := MinBlockVarianceColumn(g, 0, 79, 0, 39, 10)
	require.True(t, ok)
	assert.Equal(t, 50, got.Index, "index is the first column right of the block")
	assert.Zero(t, got.Variance)

	assert.Panics(t, func() { MinBlockVarianceColumn(g, 0, 5, 0, 39, 10) })
}

func TestDifferentialSquareSum(t *testing.T) {
	g := newGray(10, 6, 0)
	fillRows(g, 3, 6, 10)

	// rows 0..2 sum 0, rows 3..5 sum 100: one step of 100
	assert.Equal(t, 10000.0, DifferentialSquareSum(g, types.Rect{Left: 0, Right: 9, Top: 0, Bottom: 6}))
	assert.Zero(t, DifferentialSquareSum(g, types.Rect{Left: 0, Right: 9, Top: 3, Bottom: 6}))
}

func TestFullPageRowSAD(t *testing.T) {
	g := newGray(10, 6, 0)
	fillRows(g, 3, 6, 10)

	assert.Equal(t, 100.0, FullPageRowSAD(g, types.Rect{Left: 0, Right: 10, Top: 0, Bottom: 5}))
}

func BenchmarkStrongestColumnEdge(b *testing.B) {
	g := newGray(800, 1000, 200)
	fillColumns(g, 80, 100, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		StrongestColumnEdge(g, 0, 80, 350, 650)
	}
}

func BenchmarkMinVarianceColumn(b *testing.B) {
	g := newGray(800, 1000, 0)
	noisy(g, 0, 800, 140, 100, 5)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		MinVarianceColumn(g, 100, 180, 0, 999, 140, 0.20)
	}
}
