package rasterstats_test

import (
	"context"
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rasterstats/pkg/rasterstats"
)

func shuffledPatch(t *testing.T) *rasterstats.MatGrid {
	t.Helper()

	return gridFromRows(t, [][]float64{
		{2, 1, 4},
		{3, 6, 5},
		{8, 7, 9},
	})
}

func layer(name string, g rasterstats.GridSource) rasterstats.Layer {
	return rasterstats.Layer{Name: name, Grid: g}
}

func TestCorrelate_Golden(t *testing.T) {
	t.Parallel()

	e := rasterstats.NewEngine()
	ctx := context.Background()
	a, b := layer("a", ninePatch(t)), layer("b", shuffledPatch(t))

	d, err := e.Correlate(ctx, rasterstats.MetricD, a, b)
	require.NoError(t, err)
	requireValue(t, 0.9111111111111111, d.Value, eps)
	assert.Nil(t, d.PValue)
	assert.Equal(t, 9, d.N)

	i, err := e.Correlate(ctx, rasterstats.MetricI, a, b)
	require.NoError(t, err)
	requireValue(t, 0.9401586404845451, i.Value, eps)

	r, err := e.Correlate(ctx, rasterstats.MetricR, a, b)
	require.NoError(t, err)
	requireValue(t, 0.9333333333333333, r.Value, eps)
	requireValue(t, 0.0002358998, r.PValue, 1e-8)
	assert.Equal(t, 3, r.Stars)
}

func TestCorrelate_PearsonMatchesReference(t *testing.T) {
	t.Parallel()

	rowsA := [][]float64{{3, 1, 4, 1}, {5, 9, 2, 6}, {5, 3, 5, 8}}
	rowsB := [][]float64{{2, 7, 1, 8}, {2, 8, 1, 8}, {2, 8, 4, 5}}

	var flatA, flatB []float64
	for r := range rowsA {
		flatA = append(flatA, rowsA[r]...)
		flatB = append(flatB, rowsB[r]...)
	}
	want, err := stats.Pearson(flatA, flatB)
	require.NoError(t, err)

	got, err := rasterstats.NewEngine(rasterstats.WithWorkers(3)).Correlate(context.Background(), rasterstats.MetricR,
		layer("a", gridFromRows(t, rowsA)), layer("b", gridFromRows(t, rowsB)))
	require.NoError(t, err)
	requireValue(t, want, got.Value, 1e-9)
}

func TestCorrelate_IdenticalGrids(t *testing.T) {
	t.Parallel()

	e := rasterstats.NewEngine()
	ctx := context.Background()
	g := ninePatch(t)

	r, err := e.Correlate(ctx, rasterstats.MetricR, layer("a", g), layer("b", g))
	require.NoError(t, err)
	requireValue(t, 1, r.Value, eps)
	requireValue(t, 0, r.PValue, 1e-12)
	assert.Equal(t, 3, r.Stars)

	d, err := e.Correlate(ctx, rasterstats.MetricD, layer("a", g), layer("b", g))
	require.NoError(t, err)
	requireValue(t, 1, d.Value, eps)

	i, err := e.Correlate(ctx, rasterstats.MetricI, layer("a", g), layer("b", g))
	require.NoError(t, err)
	requireValue(t, 1, i.Value, eps)
}

func TestCorrelate_Symmetric(t *testing.T) {
	t.Parallel()

	e := rasterstats.NewEngine()
	ctx := context.Background()
	a, b := layer("a", ninePatch(t)), layer("b", shuffledPatch(t))

	for _, m := range []rasterstats.Metric{rasterstats.MetricD, rasterstats.MetricI, rasterstats.MetricR} {
		ab, err := e.Correlate(ctx, m, a, b)
		require.NoError(t, err)
		ba, err := e.Correlate(ctx, m, b, a)
		require.NoError(t, err)

		require.NotNil(t, ab.Value)
		require.NotNil(t, ba.Value)
		assert.InDelta(t, *ab.Value, *ba.Value, 1e-15, m.String())
	}
}

func TestCorrelate_OverlapInUnitRange(t *testing.T) {
	t.Parallel()

	e := rasterstats.NewEngine()
	a := layer("a", gridFromRows(t, [][]float64{{1, 0, 0}, {0, 0, 0}}))
	b := layer("b", gridFromRows(t, [][]float64{{0, 0, 0}, {0, 0, 1}}))

	d, err := e.Correlate(context.Background(), rasterstats.MetricD, a, b)
	require.NoError(t, err)
	requireValue(t, 0, d.Value, eps)

	i, err := e.Correlate(context.Background(), rasterstats.MetricI, a, b)
	require.NoError(t, err)
	requireValue(t, 1-0.5*1.4142135623730951, i.Value, eps)
	assert.GreaterOrEqual(t, *i.Value, 0.0)
}

func TestCorrelate_MaskedPairsSkipped(t *testing.T) {
	t.Parallel()

	a := layer("a", gridFromRows(t, [][]float64{{1, 2, 3}, {4, 5, 6}}))
	b := layer("b", gridFromRows(t, [][]float64{{2, nan, 6}, {8, 10, nan}}))

	r, err := rasterstats.NewEngine().Correlate(context.Background(), rasterstats.MetricR, a, b)
	require.NoError(t, err)

	// Deviations are taken from each layer's own mean (3.5 and 6.5), not
	// from the mean of the paired cells.
	assert.Equal(t, 4, r.N)
	requireValue(t, 0.9860132971832692, r.Value, eps)
}

func TestCorrelate_SmallerSecondExtent(t *testing.T) {
	t.Parallel()

	ext, err := rasterstats.NewExtent(0, 2, 0, 2)
	require.NoError(t, err)
	small, err := rasterstats.NewMatGridFromRows(ext, [][]float64{{7, 8}, {4, 5}})
	require.NoError(t, err)
	t.Cleanup(small.Close)

	r, err := rasterstats.NewEngine().Correlate(context.Background(), rasterstats.MetricR,
		layer("a", ninePatch(t)), layer("b", small))
	require.NoError(t, err)
	assert.Equal(t, 4, r.N)
}

func TestCorrelate_ConstantLayerIsUndefined(t *testing.T) {
	t.Parallel()

	r, err := rasterstats.NewEngine().Correlate(context.Background(), rasterstats.MetricR,
		layer("a", ninePatch(t)), layer("b", gridFromRows(t, [][]float64{{2, 2, 2}, {2, 2, 2}, {2, 2, 2}})))
	require.NoError(t, err)
	assert.Nil(t, r.Value)
	assert.Nil(t, r.PValue)
	assert.Zero(t, r.Stars)
}

func TestCorrelate_ZeroSumLayerIsUndefined(t *testing.T) {
	t.Parallel()

	d, err := rasterstats.NewEngine().Correlate(context.Background(), rasterstats.MetricD,
		layer("a", ninePatch(t)), layer("b", gridFromRows(t, [][]float64{{1, -1, 0}, {0, 0, 0}, {0, 0, 0}})))
	require.NoError(t, err)
	assert.Nil(t, d.Value)
}

func TestCorrelate_TwoPairsHaveNoPValue(t *testing.T) {
	t.Parallel()

	r, err := rasterstats.NewEngine().Correlate(context.Background(), rasterstats.MetricR,
		layer("a", gridFromRows(t, [][]float64{{1, 2}})), layer("b", gridFromRows(t, [][]float64{{3, 5}})))
	require.NoError(t, err)
	requireValue(t, 1, r.Value, eps)
	assert.Nil(t, r.PValue)
	assert.Zero(t, r.Stars)
}

func TestCorrelate_UnknownMetric(t *testing.T) {
	t.Parallel()

	g := ninePatch(t)
	_, err := rasterstats.NewEngine().Correlate(context.Background(), rasterstats.Metric(7), layer("a", g), layer("b", g))
	require.ErrorIs(t, err, rasterstats.ErrUnknownMetric)
}

func TestCorrelateAll(t *testing.T) {
	t.Parallel()

	e := rasterstats.NewEngine()
	ctx := context.Background()

	_, err := e.CorrelateAll(ctx, rasterstats.MetricR, []rasterstats.Layer{layer("a", ninePatch(t))})
	require.ErrorIs(t, err, rasterstats.ErrTooFewGrids)

	_, err = e.CorrelateAll(ctx, rasterstats.MetricR, nil)
	require.ErrorIs(t, err, rasterstats.ErrTooFewGrids)

	pairs, err := e.CorrelateAll(ctx, rasterstats.MetricD, []rasterstats.Layer{
		layer("a", ninePatch(t)),
		layer("b", shuffledPatch(t)),
		layer("c", ninePatch(t)),
	})
	require.NoError(t, err)
	require.Len(t, pairs, 3)

	assert.Equal(t, [2]string{"a", "b"}, [2]string{pairs[0].A, pairs[0].B})
	assert.Equal(t, [2]string{"a", "c"}, [2]string{pairs[1].A, pairs[1].B})
	assert.Equal(t, [2]string{"b", "c"}, [2]string{pairs[2].A, pairs[2].B})
	requireValue(t, 1, pairs[1].Result.Value, eps)
	requireValue(t, 0.9111111111111111, pairs[2].Result.Value, eps)
}
