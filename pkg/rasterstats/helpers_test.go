package rasterstats_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"rasterstats/pkg/rasterstats"
)

var nan = math.NaN()

// gridFromRows builds a unit-cell grid whose extent starts at the origin.
func gridFromRows(t *testing.T, rows [][]float64) *rasterstats.MatGrid {
	t.Helper()

	ext, err := rasterstats.NewExtent(0, float64(len(rows[0])), 0, float64(len(rows)))
	require.NoError(t, err)

	g, err := rasterstats.NewMatGridFromRows(ext, rows)
	require.NoError(t, err)
	t.Cleanup(g.Close)

	return g
}

func ninePatch(t *testing.T) *rasterstats.MatGrid {
	t.Helper()

	return gridFromRows(t, [][]float64{
		{1, 2, 3},
		{4, 5, 6},
		{7, 8, 9},
	})
}

// stubGrid is a GridSource with a fixed value everywhere inside a 2x2 extent.
type stubGrid struct {
	value   float64
	mean    float64
	hasMean bool
	cols    int
	rows    int
}

func (s stubGrid) Sample(x, y float64, _ int) rasterstats.Sample {
	if !s.Extent().Contains(x, y) {
		return rasterstats.OutOfExtent()
	}
	return rasterstats.Valid(s.value)
}

func (s stubGrid) Extent() rasterstats.Extent {
	return rasterstats.Extent{XMin: 0, XMax: 2, YMin: 0, YMax: 2}
}

func (s stubGrid) Dimensions() (int, int) { return s.cols, s.rows }

func (s stubGrid) PrecomputedMean(int) (float64, bool) { return s.mean, s.hasMean }

func requireValue(t *testing.T, want float64, got *float64, delta float64) {
	t.Helper()

	require.NotNil(t, got)
	require.InDelta(t, want, *got, delta)
}
