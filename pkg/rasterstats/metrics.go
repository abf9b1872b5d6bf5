package rasterstats

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCellsSampled = "rasterstats.cells.sampled.total"
	metricDuration     = "rasterstats.computation.duration.seconds"

	attrOperation = "operation"
)

// Metrics holds the OTel instruments recorded by an Engine.
type Metrics struct {
	cellsSampled metric.Int64Counter
	duration     metric.Float64Histogram
}

// NewMetrics creates the engine instruments from the given meter.
func NewMetrics(mt metric.Meter) (*Metrics, error) {
	cells, err := mt.Int64Counter(metricCellsSampled,
		metric.WithDescription("Grid cell centres visited"),
		metric.WithUnit("{cell}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCellsSampled, err)
	}

	dur, err := mt.Float64Histogram(metricDuration,
		metric.WithDescription("Wall time of one engine operation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricDuration, err)
	}

	return &Metrics{cellsSampled: cells, duration: dur}, nil
}

// record is a no-op on a nil receiver.
func (m *Metrics) record(ctx context.Context, op string, cells int64, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(attrOperation, op))
	m.cellsSampled.Add(ctx, cells, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}
