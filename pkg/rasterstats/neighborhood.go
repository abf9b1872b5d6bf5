package rasterstats

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// neighborRadius is the half-size of the examined block around each cell.
const neighborRadius = 1

// Accumulate walks every valid cell of band and gathers the rook's-case sums
// around mean. Each centre looks at its 3x3 block; the centre itself and the
// diagonals are skipped, and a neighbour that is NoData or out of extent adds
// nothing, so edge and masked cells carry fewer weights.
func (e *Engine) Accumulate(ctx context.Context, g GridSource, band int, mean float64) (sums NeighborhoodSums, err error) {
	ctx, span, start := e.startSpan(ctx, "accumulate", attribute.Int("band", band))
	var cells int64
	defer func() { e.endSpan(ctx, span, "accumulate", start, cells, err) }()

	if err = checkBand(g, band); err != nil {
		return NeighborhoodSums{}, err
	}
	gm, err := geometryOf(g)
	if err != nil {
		return NeighborhoodSums{}, err
	}

	partials := make([]NeighborhoodSums, len(e.columnShards(gm.cols)))
	err = e.forEachShard(ctx, gm.cols, func(ctx context.Context, shard, lo, hi int) error {
		p, err := e.accumulateColumns(ctx, g, gm, band, mean, lo, hi)
		if err != nil {
			return err
		}
		partials[shard] = p
		return nil
	})
	cells = gm.cells()
	if err != nil {
		return NeighborhoodSums{}, err
	}
	for _, p := range partials {
		sums.Add(p)
	}
	e.logger.DebugContext(ctx, "neighborhood sums", "band", band, "sums", sums.String())
	return sums, nil
}

func (e *Engine) accumulateColumns(ctx context.Context, g GridSource, gm geometry, band int, m float64, lo, hi int) (NeighborhoodSums, error) {
	var s NeighborhoodSums
	verbose := e.logger.Enabled(ctx, levelTrace)
	for i := lo; i < hi; i++ {
		if err := ctx.Err(); err != nil {
			return NeighborhoodSums{}, fmt.Errorf("accumulating band %d: %w", band, err)
		}
		x := gm.centerX(i)
		for j := 0; j < gm.rows; j++ {
			y := gm.centerY(j)
			center := g.Sample(x, y, band)
			if !center.IsValid() {
				continue
			}
			z := center.Value
			d := z - m
			d2 := d * d
			s.N++
			s.Denominator += d2
			s.KNumerator += d2 * d2
			if verbose {
				e.logger.Log(ctx, levelTrace, "centre", "x", x, "y", y, "z", z, "denom", s.Denominator)
			}

			weight := 0.0
			for ii := -neighborRadius; ii <= neighborRadius; ii++ {
				xx := x + float64(ii)*gm.xSize
				for jj := -neighborRadius; jj <= neighborRadius; jj++ {
					if abs(ii) == abs(jj) {
						continue
					}
					yy := y + float64(jj)*gm.ySize
					nb := g.Sample(xx, yy, band)
					if !nb.IsValid() {
						if verbose {
							e.logger.Log(ctx, levelTrace, "neighbour skipped", "xx", xx, "yy", yy, "kind", nb.Kind.String())
						}
						continue
					}
					zz := nb.Value
					s.NumeratorMI += d * (zz - m)
					s.NumeratorGC += (z - zz) * (z - zz)
					s.NumeratorCount++
					s.S0++
					// (w(ij) + w(ji))^2 with symmetric binary weights.
					s.S1 += 4
					weight += 2
					if verbose {
						e.logger.Log(ctx, levelTrace, "neighbour", "xx", xx, "yy", yy, "zz", zz,
							"numMI", s.NumeratorMI, "numGC", s.NumeratorGC, "numct", s.NumeratorCount)
					}
				}
			}
			s.S2 += weight * weight
		}
	}
	return s, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
