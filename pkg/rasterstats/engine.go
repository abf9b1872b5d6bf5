package rasterstats

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const tracerName = "rasterstats"

// levelTrace is below slog.LevelDebug and logs every visited cell.
const levelTrace = slog.LevelDebug - 4

// Engine runs the grid statistics. It holds only injected collaborators and
// is safe for concurrent use.
type Engine struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	meter   metric.Meter
	metrics *Metrics
	workers int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Debug level traces every sum.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracer sets the tracer used for per-operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithMeter sets the meter the engine instruments are created from.
// Instrument creation errors are logged and leave metrics disabled.
func WithMeter(mt metric.Meter) Option {
	return func(e *Engine) {
		if mt != nil {
			e.meter = mt
		}
	}
}

// WithWorkers shards grid walks over n goroutines. Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.workers = n
	}
}

// NewEngine creates an Engine. Without options it logs nothing, traces
// nothing and runs single-threaded.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:  slog.New(slog.DiscardHandler),
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		workers: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	// Instruments are built after every option so the final logger is used.
	if e.meter != nil {
		m, err := NewMetrics(e.meter)
		if err != nil {
			e.logger.Warn("engine metrics disabled", "error", err)
		} else {
			e.metrics = m
		}
	}
	return e
}

func (e *Engine) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	ctx, span := e.tracer.Start(ctx, "rasterstats."+op, trace.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

func (e *Engine) endSpan(ctx context.Context, span trace.Span, op string, start time.Time, cells int64, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	e.metrics.record(ctx, op, cells, time.Since(start))
}

// columnShards splits [0, cols) into at most e.workers contiguous ranges.
func (e *Engine) columnShards(cols int) [][2]int {
	n := e.workers
	if n > cols {
		n = cols
	}
	if n < 1 {
		n = 1
	}
	shards := make([][2]int, 0, n)
	step := cols / n
	extra := cols % n
	lo := 0
	for i := 0; i < n; i++ {
		hi := lo + step
		if i < extra {
			hi++
		}
		shards = append(shards, [2]int{lo, hi})
		lo = hi
	}
	return shards
}

// forEachShard runs fn once per column shard. A single shard runs on the
// calling goroutine.
func (e *Engine) forEachShard(ctx context.Context, cols int, fn func(ctx context.Context, shard, lo, hi int) error) error {
	shards := e.columnShards(cols)
	if len(shards) == 1 {
		return fn(ctx, 0, shards[0][0], shards[0][1])
	}
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range shards {
		g.Go(func() error {
			return fn(gctx, i, s[0], s[1])
		})
	}
	return g.Wait()
}
