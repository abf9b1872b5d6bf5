package rasterstats

import (
	"fmt"
	"math"
	"sync"

	"github.com/montanaflynn/stats"
)

// MatGrid is an in-memory GridSource holding one Mat per band. Row 0 of each
// Mat is the northern (YMax) edge of the extent. NaN cells, and cells equal to
// the declared NoData value, read as NoData.
type MatGrid struct {
	bands     []Mat
	data      [][]float64 // row-major view of each band
	extent    Extent
	cols      int
	rows      int
	xSize     float64
	ySize     float64
	noData    float64
	hasNoData bool

	mu    sync.RWMutex
	means map[int]float64
}

// NewMatGrid creates a grid over extent from one or more equally sized bands.
// The grid takes ownership of the Mats; release them with Close.
func NewMatGrid(extent Extent, bands ...Mat) (*MatGrid, error) {
	if err := extent.validate(); err != nil {
		return nil, err
	}
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: no bands", ErrInvalidGeometry)
	}
	rows, cols := bands[0].Rows(), bands[0].Cols()
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: empty band", ErrInvalidGeometry)
	}
	for i, b := range bands[1:] {
		if b.Rows() != rows || b.Cols() != cols {
			return nil, fmt.Errorf("%w: band %d is %dx%d, band 0 is %dx%d",
				ErrInvalidGeometry, i+1, b.Cols(), b.Rows(), cols, rows)
		}
	}
	data := make([][]float64, len(bands))
	for i, b := range bands {
		data[i] = b.DataFloat64()
	}
	return &MatGrid{
		bands:  bands,
		data:   data,
		extent: extent,
		cols:   cols,
		rows:   rows,
		xSize:  extent.Width() / float64(cols),
		ySize:  extent.Height() / float64(rows),
		means:  make(map[int]float64),
	}, nil
}

// NewMatGridFromRows builds a single-band grid from values listed north row
// first. All rows must have the same length.
func NewMatGridFromRows(extent Extent, values [][]float64) (*MatGrid, error) {
	if len(values) == 0 || len(values[0]) == 0 {
		return nil, fmt.Errorf("%w: no cells", ErrInvalidGeometry)
	}
	rows, cols := len(values), len(values[0])
	flat := make([]float64, 0, rows*cols)
	for r, row := range values {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidGeometry, r, len(row), cols)
		}
		flat = append(flat, row...)
	}
	return NewMatGrid(extent, NewMatFromFloat64(rows, cols, flat))
}

// SetNoData declares v as the masked-cell marker for every band.
func (g *MatGrid) SetNoData(v float64) {
	g.noData = v
	g.hasNoData = true
}

// NoDataValue returns the declared NoData marker, if any.
func (g *MatGrid) NoDataValue() (float64, bool) { return g.noData, g.hasNoData }

func (g *MatGrid) Extent() Extent               { return g.extent }
func (g *MatGrid) Dimensions() (cols, rows int) { return g.cols, g.rows }
func (g *MatGrid) Bands() int                   { return len(g.bands) }

// Band exposes the raw matrix of one band.
func (g *MatGrid) Band(band int) Mat { return g.bands[band] }

// Sample implements GridSource.
func (g *MatGrid) Sample(x, y float64, band int) Sample {
	if band < 0 || band >= len(g.bands) {
		return NoData()
	}
	if !g.extent.Contains(x, y) {
		return OutOfExtent()
	}
	col := int(math.Floor((x - g.extent.XMin) / g.xSize))
	row := int(math.Floor((g.extent.YMax - y) / g.ySize))
	// Guard against rounding at the far edges.
	if col >= g.cols {
		col = g.cols - 1
	}
	if row >= g.rows {
		row = g.rows - 1
	}
	return g.cell(band, row, col)
}

// Cell returns the value at (row, col) of band, row 0 being the north edge.
func (g *MatGrid) Cell(band, row, col int) Sample {
	if band < 0 || band >= len(g.bands) {
		return NoData()
	}
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return OutOfExtent()
	}
	return g.cell(band, row, col)
}

func (g *MatGrid) cell(band, row, col int) Sample {
	v := g.data[band][row*g.cols+col]
	if math.IsNaN(v) || math.IsInf(v, 0) || (g.hasNoData && v == g.noData) {
		return NoData()
	}
	return Valid(v)
}

// PrecomputedMean returns the mean cached by ComputeStatistics or SetMean.
func (g *MatGrid) PrecomputedMean(band int) (float64, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	m, ok := g.means[band]
	return m, ok
}

// SetMean records an externally known band mean.
func (g *MatGrid) SetMean(band int, mean float64) {
	g.mu.Lock()
	g.means[band] = mean
	g.mu.Unlock()
}

// ComputeStatistics summarises the valid cells of band and caches the mean
// so that later analyses reuse it through PrecomputedMean. A band without
// valid cells yields zero statistics and caches nothing.
func (g *MatGrid) ComputeStatistics(band int) (BandStatistics, error) {
	if band < 0 || band >= len(g.bands) {
		return BandStatistics{}, fmt.Errorf("%w: %d (grid has %d bands)", ErrInvalidBand, band, len(g.bands))
	}
	values := make([]float64, 0, g.rows*g.cols)
	for row := 0; row < g.rows; row++ {
		for col := 0; col < g.cols; col++ {
			if s := g.cell(band, row, col); s.IsValid() {
				values = append(values, s.Value)
			}
		}
	}
	st, err := CalculateBandStatistics(values)
	if err != nil {
		return BandStatistics{}, err
	}
	if st.Count > 0 {
		g.SetMean(band, st.Mean)
	}
	return st, nil
}

// madToSigma converts a median absolute deviation into a normal sigma.
const madToSigma = 1.4826

// CalculateBandStatistics summarises a slice of valid cell values.
func CalculateBandStatistics(values []float64) (BandStatistics, error) {
	if len(values) == 0 {
		return BandStatistics{}, nil
	}
	data := stats.Float64Data(values)
	var (
		result BandStatistics
		err    error
	)
	result.Count = len(values)
	if result.Mean, err = data.Mean(); err != nil {
		return BandStatistics{}, fmt.Errorf("band mean: %w", err)
	}
	if result.Min, err = data.Min(); err != nil {
		return BandStatistics{}, fmt.Errorf("band min: %w", err)
	}
	if result.Max, err = data.Max(); err != nil {
		return BandStatistics{}, fmt.Errorf("band max: %w", err)
	}
	if result.Median, err = data.Median(); err != nil {
		return BandStatistics{}, fmt.Errorf("band median: %w", err)
	}
	mad, err := stats.MedianAbsoluteDeviation(data)
	if err != nil {
		return BandStatistics{}, fmt.Errorf("band MAD: %w", err)
	}
	result.MAD = madToSigma * mad
	result.Clipped = KappaSigmaClip(values, clipKappa, clipTolerance, clipIterations)
	if len(values) > 1 {
		if result.StdDev, err = data.StandardDeviationSample(); err != nil {
			return BandStatistics{}, fmt.Errorf("band stddev: %w", err)
		}
	}
	return result, nil
}

// Close releases the band matrices.
func (g *MatGrid) Close() {
	for i := range g.bands {
		g.bands[i].Close()
	}
	g.bands = nil
	g.data = nil
}
