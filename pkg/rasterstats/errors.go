package rasterstats

import "errors"

var (
	// ErrTooFewGrids is returned when a pairwise comparison is requested with
	// fewer than two layers.
	ErrTooFewGrids = errors.New("at least 2 raster layers are required")

	ErrInvalidGeometry  = errors.New("invalid grid geometry")
	ErrInvalidBand      = errors.New("invalid band")
	ErrDegenerateExtent = errors.New("degenerate extent")
	ErrUnknownMetric    = errors.New("unknown correlation metric")
	ErrUnknownMode      = errors.New("unknown autocorrelation mode")

	ErrInvalidHeader     = errors.New("invalid raster header")
	ErrUnsupportedBitpix = errors.New("unsupported BITPIX")
)
