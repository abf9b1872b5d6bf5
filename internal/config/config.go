// Package config loads rasterstats settings from a YAML file, RASTERSTATS_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"

	"rasterstats/internal/observability"
	"rasterstats/pkg/rasterstats"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers     = errors.New("workers must be positive")
	ErrInvalidBand        = errors.New("band must not be negative")
	ErrInvalidFormat      = errors.New("unknown output format")
	ErrInvalidPrecision   = errors.New("precision must be between 0 and 17")
	ErrInvalidSampleRatio = errors.New("sample ratio must be within [0, 1]")
	ErrInvalidLogFormat   = errors.New("unknown log format")
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Default configuration values.
const (
	DefaultMode      = "full"
	DefaultMetric    = "R"
	DefaultWorkers   = 1
	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
	DefaultFormat    = FormatTable
	DefaultPrecision = 6
	maxPrecision     = 17
	envPrefix        = "RASTERSTATS"
)

// Config holds all rasterstats settings.
type Config struct {
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Grid      GridConfig      `mapstructure:"grid"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Output    OutputConfig    `mapstructure:"output"`
}

// AnalysisConfig selects what is computed.
type AnalysisConfig struct {
	Mode    string `mapstructure:"mode"`
	Metric  string `mapstructure:"metric"`
	Band    int    `mapstructure:"band"`
	Workers int    `mapstructure:"workers"`
	// UseLayerStatistics lets loaded grids precompute band statistics so the
	// mean is taken from them.
	UseLayerStatistics bool `mapstructure:"use_layer_statistics"`
}

// GridConfig overrides how input grids are read.
type GridConfig struct {
	// NoData, when set, replaces the masked-cell marker of every input grid.
	NoData *float64 `mapstructure:"nodata"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry exporter settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	Environment  string  `mapstructure:"environment"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	Format    string `mapstructure:"format"`
	Precision int    `mapstructure:"precision"`
}

// LoadConfig loads configuration from configPath (or ./rasterstats.yaml,
// ./config/rasterstats.yaml when empty) and the environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("rasterstats")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about.
	if err := v.BindEnv("grid.nodata"); err != nil {
		return nil, fmt.Errorf("bind grid.nodata: %w", err)
	}

	readErr := v.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("analysis.mode", DefaultMode)
	v.SetDefault("analysis.metric", DefaultMetric)
	v.SetDefault("analysis.band", 0)
	v.SetDefault("analysis.workers", DefaultWorkers)
	v.SetDefault("analysis.use_layer_statistics", false)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", false)
	v.SetDefault("telemetry.otlp_headers", "")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.environment", "")

	v.SetDefault("output.format", DefaultFormat)
	v.SetDefault("output.precision", DefaultPrecision)
}

// Validate checks every field and returns the first problem found.
func (c *Config) Validate() error {
	if _, err := c.Mode(); err != nil {
		return err
	}

	if _, err := c.Metric(); err != nil {
		return err
	}

	if c.Analysis.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Analysis.Workers)
	}

	if c.Analysis.Band < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBand, c.Analysis.Band)
	}

	switch c.Output.Format {
	case FormatTable, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Output.Format)
	}

	if c.Output.Precision < 0 || c.Output.Precision > maxPrecision {
		return fmt.Errorf("%w: %d", ErrInvalidPrecision, c.Output.Precision)
	}

	r := c.Telemetry.SampleRatio
	if math.IsNaN(r) || r < 0 || r > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRatio, r)
	}

	if _, err := observability.ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	return nil
}

// Mode parses analysis.mode.
func (c *Config) Mode() (rasterstats.Mode, error) {
	return rasterstats.ParseMode(c.Analysis.Mode)
}

// Metric parses analysis.metric.
func (c *Config) Metric() (rasterstats.Metric, error) {
	return rasterstats.ParseMetric(c.Analysis.Metric)
}
