package rasterstats

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// layerSum is the total and count of the valid cells of one band.
type layerSum struct {
	sum float64
	n   int
}

// Mean returns the arithmetic mean of the valid cells of band, or nil when
// the band has no valid cell. A mean reported by the source through
// PrecomputedMean is returned as is.
func (e *Engine) Mean(ctx context.Context, g GridSource, band int) (mean *float64, err error) {
	ctx, span, start := e.startSpan(ctx, "mean", attribute.Int("band", band))
	var cells int64
	defer func() { e.endSpan(ctx, span, "mean", start, cells, err) }()

	if err = checkBand(g, band); err != nil {
		return nil, err
	}
	if m, ok := g.PrecomputedMean(band); ok {
		e.logger.DebugContext(ctx, "using precomputed mean", "band", band, "mean", m)
		return float64Ptr(m), nil
	}

	gm, err := geometryOf(g)
	if err != nil {
		return nil, err
	}
	e.logger.DebugContext(ctx, "grid geometry",
		"xMin", gm.extent.XMin, "xMax", gm.extent.XMax,
		"yMin", gm.extent.YMin, "yMax", gm.extent.YMax,
		"xDim", gm.cols, "yDim", gm.rows,
		"xSize", gm.xSize, "ySize", gm.ySize)

	total, err := e.sumLayer(ctx, g, gm, band)
	cells = gm.cells()
	if err != nil {
		return nil, err
	}
	e.logger.DebugContext(ctx, "mean computed", "total", total.sum, "n", total.n)
	if total.n == 0 {
		return nil, nil
	}
	return float64Ptr(total.sum / float64(total.n)), nil
}

// sumLayer totals the valid cells of band over the cell centres of gm.
func (e *Engine) sumLayer(ctx context.Context, g GridSource, gm geometry, band int) (layerSum, error) {
	partials := make([]layerSum, len(e.columnShards(gm.cols)))
	err := e.forEachShard(ctx, gm.cols, func(ctx context.Context, shard, lo, hi int) error {
		var p layerSum
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("summing band %d: %w", band, err)
			}
			x := gm.centerX(i)
			for j := 0; j < gm.rows; j++ {
				s := g.Sample(x, gm.centerY(j), band)
				if !s.IsValid() {
					continue
				}
				p.sum += s.Value
				p.n++
			}
		}
		partials[shard] = p
		return nil
	})
	if err != nil {
		return layerSum{}, err
	}
	var total layerSum
	for _, p := range partials {
		total.sum += p.sum
		total.n += p.n
	}
	return total, nil
}
