// Package observability wires structured logging, tracing and metrics for
// the rasterstats commands.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	defaultServiceName        = "rasterstats"
	defaultShutdownTimeoutSec = 5
)

// Config controls what Init builds.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// RunID tags every log record of one invocation.
	RunID string

	// OTLPEndpoint enables the gRPC exporters. Empty means no-op providers.
	OTLPEndpoint string
	OTLPInsecure bool
	OTLPHeaders  map[string]string
	SampleRatio  float64

	LogLevel  slog.Level
	LogJSON   bool
	LogWriter io.Writer

	ShutdownTimeoutSec int
}

// DefaultConfig returns a config with no exporters and info logs on stderr.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		LogLevel:           slog.LevelInfo,
		LogWriter:          os.Stderr,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}

// LevelTrace is the most verbose level; the engine logs every visited cell
// at it.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps "trace", "debug", "info", "warn" and "error" to a level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, s)
	}
}
