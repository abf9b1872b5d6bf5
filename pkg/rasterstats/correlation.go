package rasterstats

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"
)

// pairSums accumulates one shard of a pairwise comparison.
type pairSums struct {
	n     int
	sum   float64 // D: sum |p1-p2|; I: sum (sqrt p1 - sqrt p2)^2; R: sum z1m*z2m
	sumA2 float64 // R only
	sumB2 float64 // R only
}

// Correlate compares band a.Band of a.Grid with band b.Band of b.Grid.
//
// Both layers are sampled at the cell centres of a's geometry; b is queried
// at the same real-world coordinates without resampling, so the grids are
// assumed to be co-registered. A cell contributes only when both samples are
// valid.
//
//   - MetricD: Schoener's D = 1 - sum|z1/sum1 - z2/sum2| / 2
//   - MetricI: I = 1 - sqrt(sum (sqrt(z1/sum1) - sqrt(z2/sum2))^2) / 2
//   - MetricR: Pearson's r with its two-sided p-value and stars
//
// D and I follow Warren et al. (2008) and are meant for non-negative grids.
func (e *Engine) Correlate(ctx context.Context, metric Metric, a, b Layer) (res CorrelationResult, err error) {
	ctx, span, start := e.startSpan(ctx, "correlate",
		attribute.String("metric", metric.String()),
		attribute.String("a", a.Name), attribute.String("b", b.Name))
	var cells int64
	defer func() { e.endSpan(ctx, span, "correlate", start, cells, err) }()

	res = CorrelationResult{Metric: metric}
	if metric != MetricD && metric != MetricI && metric != MetricR {
		return res, fmt.Errorf("%w: %d", ErrUnknownMetric, int(metric))
	}
	if err = checkBand(a.Grid, a.Band); err != nil {
		return res, fmt.Errorf("layer %q: %w", a.Name, err)
	}
	if err = checkBand(b.Grid, b.Band); err != nil {
		return res, fmt.Errorf("layer %q: %w", b.Name, err)
	}
	gmA, err := geometryOf(a.Grid)
	if err != nil {
		return res, fmt.Errorf("layer %q: %w", a.Name, err)
	}
	gmB, err := geometryOf(b.Grid)
	if err != nil {
		return res, fmt.Errorf("layer %q: %w", b.Name, err)
	}

	totalA, err := e.sumLayer(ctx, a.Grid, gmA, a.Band)
	if err != nil {
		return res, err
	}
	totalB, err := e.sumLayer(ctx, b.Grid, gmB, b.Band)
	if err != nil {
		return res, err
	}
	e.logger.DebugContext(ctx, "layer totals",
		"a", a.Name, "sumA", totalA.sum, "nA", totalA.n,
		"b", b.Name, "sumB", totalB.sum, "nB", totalB.n)
	if totalA.n == 0 || totalB.n == 0 {
		e.logger.InfoContext(ctx, "layer without valid cells", "a", a.Name, "b", b.Name)
		return res, nil
	}
	if metric != MetricR && (totalA.sum == 0 || totalB.sum == 0) {
		e.logger.InfoContext(ctx, "layer sums to zero", "a", a.Name, "b", b.Name, "metric", metric.String())
		return res, nil
	}
	meanA := totalA.sum / float64(totalA.n)
	meanB := totalB.sum / float64(totalB.n)

	partials := make([]pairSums, len(e.columnShards(gmA.cols)))
	err = e.forEachShard(ctx, gmA.cols, func(ctx context.Context, shard, lo, hi int) error {
		var p pairSums
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("correlating %q with %q: %w", a.Name, b.Name, err)
			}
			x := gmA.centerX(i)
			for j := 0; j < gmA.rows; j++ {
				y := gmA.centerY(j)
				s1 := a.Grid.Sample(x, y, a.Band)
				if !s1.IsValid() {
					continue
				}
				s2 := b.Grid.Sample(x, y, b.Band)
				if !s2.IsValid() {
					continue
				}
				z1, z2 := s1.Value, s2.Value
				p.n++
				switch metric {
				case MetricD:
					p.sum += math.Abs(z1/totalA.sum - z2/totalB.sum)
				case MetricI:
					diff := math.Sqrt(z1/totalA.sum) - math.Sqrt(z2/totalB.sum)
					p.sum += diff * diff
				case MetricR:
					z1m, z2m := z1-meanA, z2-meanB
					p.sum += z1m * z2m
					p.sumA2 += z1m * z1m
					p.sumB2 += z2m * z2m
				}
			}
		}
		partials[shard] = p
		return nil
	})
	cells = gmA.cells()
	if err != nil {
		return res, err
	}

	var total pairSums
	for _, p := range partials {
		total.n += p.n
		total.sum += p.sum
		total.sumA2 += p.sumA2
		total.sumB2 += p.sumB2
	}
	res.N = total.n

	switch metric {
	case MetricD:
		res.Value = finite(1 - 0.5*total.sum)
	case MetricI:
		res.Value = finite(1 - 0.5*math.Sqrt(total.sum))
	case MetricR:
		if total.sumA2 > 0 && total.sumB2 > 0 {
			r := total.sum / (math.Sqrt(total.sumA2) * math.Sqrt(total.sumB2))
			// Rounding can push |r| a hair past 1 for identical series.
			r = math.Max(-1, math.Min(1, r))
			res.Value = float64Ptr(r)
			if p, ok := PearsonP(r, total.n); ok {
				res.PValue = float64Ptr(p)
				res.Stars = Stars(p)
			}
		}
	}
	if res.Value == nil {
		e.logger.InfoContext(ctx, "correlation undefined", "a", a.Name, "b", b.Name, "metric", metric.String(), "n", total.n)
	}
	return res, nil
}

// CorrelateAll compares every pair (i, j), i < j, of layers in input order.
// It fails with ErrTooFewGrids before any computation when fewer than two
// layers are given.
func (e *Engine) CorrelateAll(ctx context.Context, metric Metric, layers []Layer) ([]PairCorrelation, error) {
	if len(layers) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewGrids, len(layers))
	}
	out := make([]PairCorrelation, 0, len(layers)*(len(layers)-1)/2)
	for i := range layers {
		e.logger.InfoContext(ctx, "processing layer", "index", i+1, "of", len(layers), "name", layers[i].Name)
		for j := i + 1; j < len(layers); j++ {
			res, err := e.Correlate(ctx, metric, layers[i], layers[j])
			if err != nil {
				return nil, err
			}
			out = append(out, PairCorrelation{A: layers[i].Name, B: layers[j].Name, Result: res})
		}
	}
	return out, nil
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return float64Ptr(v)
}
