package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"rasterstats/internal/config"
	"rasterstats/internal/observability"
	"rasterstats/pkg/rasterstats"
)

// options holds the command line flags shared by every subcommand.
type options struct {
	configPath    string
	band          int
	workers       int
	noData        float64
	format        string
	precision     int
	useLayerStats bool
	logLevel      string
	noColor       bool
	mode          string
	metric        string
}

// session is the per-invocation state built from config, flags and telemetry.
type session struct {
	cfg      *config.Config
	engine   *rasterstats.Engine
	logger   *slog.Logger
	runID    string
	shutdown func(ctx context.Context) error
}

func (o *options) open(cmd *cobra.Command) (*session, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}

	o.applyFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if o.noColor {
		color.NoColor = true
	}

	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	runID := newRunID()

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version
	obsCfg.Environment = cfg.Telemetry.Environment
	obsCfg.RunID = runID
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.OTLPHeaders = parseHeaders(cfg.Telemetry.OTLPHeaders)
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.Format == "json"
	obsCfg.LogWriter = cmd.ErrOrStderr()

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	engine := rasterstats.NewEngine(
		rasterstats.WithLogger(providers.Logger),
		rasterstats.WithTracer(providers.Tracer),
		rasterstats.WithMeter(providers.Meter),
		rasterstats.WithWorkers(cfg.Analysis.Workers),
	)

	return &session{
		cfg:      cfg,
		engine:   engine,
		logger:   providers.Logger,
		runID:    runID,
		shutdown: providers.Shutdown,
	}, nil
}

// close flushes telemetry. Shutdown failures are logged, not returned.
func (s *session) close(ctx context.Context) {
	if err := s.shutdown(ctx); err != nil {
		s.logger.WarnContext(ctx, "telemetry shutdown failed", "error", err)
	}
}

// applyFlags lets explicitly set flags override file and environment values.
func (o *options) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("band") {
		cfg.Analysis.Band = o.band
	}
	if flags.Changed("workers") {
		cfg.Analysis.Workers = o.workers
	}
	if flags.Changed("nodata") {
		v := o.noData
		cfg.Grid.NoData = &v
	}
	if flags.Changed("format") {
		cfg.Output.Format = o.format
	}
	if flags.Changed("precision") {
		cfg.Output.Precision = o.precision
	}
	if flags.Changed("layer-stats") {
		cfg.Analysis.UseLayerStatistics = o.useLayerStats
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if flags.Changed("mode") {
		cfg.Analysis.Mode = o.mode
	}
	if flags.Changed("metric") {
		cfg.Analysis.Metric = o.metric
	}
}

// parseHeaders reads "key=value,key2=value2" into a map. Malformed entries
// are skipped.
func parseHeaders(s string) map[string]string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	headers := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		headers[k] = strings.TrimSpace(v)
	}

	return headers
}

// newRunID returns a time-ordered id, falling back to a random one.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
