package rasterstats

import "fmt"

// GridSource is a read-only raster layer. Implementations must allow
// concurrent calls from multiple goroutines.
type GridSource interface {
	// Sample returns the value of band at the real-world coordinate (x, y).
	Sample(x, y float64, band int) Sample
	Extent() Extent
	Dimensions() (cols, rows int)
	// PrecomputedMean reports a band mean already known to the source.
	PrecomputedMean(band int) (float64, bool)
}

// MaxGridCells bounds cols*rows*bands of a grid decoded from a file.
const MaxGridCells = 1 << 28

// cellsWithinLimit reports whether every dimension is positive and their
// product does not exceed MaxGridCells.
func cellsWithinLimit(dims ...int) bool {
	total := 1
	for _, d := range dims {
		if d <= 0 || d > MaxGridCells/total {
			return false
		}
		total *= d
	}
	return true
}

// BandCounter is implemented by sources that know how many bands they hold.
type BandCounter interface {
	Bands() int
}

// geometry is the cell layout of a GridSource.
type geometry struct {
	extent Extent
	cols   int
	rows   int
	xSize  float64
	ySize  float64
}

func geometryOf(g GridSource) (geometry, error) {
	if g == nil {
		return geometry{}, fmt.Errorf("%w: nil grid", ErrInvalidGeometry)
	}
	cols, rows := g.Dimensions()
	if cols <= 0 || rows <= 0 {
		return geometry{}, fmt.Errorf("%w: %dx%d cells", ErrInvalidGeometry, cols, rows)
	}
	ext := g.Extent()
	if err := ext.validate(); err != nil {
		return geometry{}, fmt.Errorf("%w: %w", ErrInvalidGeometry, err)
	}
	return geometry{
		extent: ext,
		cols:   cols,
		rows:   rows,
		xSize:  ext.Width() / float64(cols),
		ySize:  ext.Height() / float64(rows),
	}, nil
}

// centerX returns the x coordinate of the centre of column i.
func (gm geometry) centerX(i int) float64 {
	return gm.extent.XMin + gm.xSize/2 + float64(i)*gm.xSize
}

// centerY returns the y coordinate of the centre of row j, counted from YMin.
func (gm geometry) centerY(j int) float64 {
	return gm.extent.YMin + gm.ySize/2 + float64(j)*gm.ySize
}

func (gm geometry) cells() int64 { return int64(gm.cols) * int64(gm.rows) }

func checkBand(g GridSource, band int) error {
	if band < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBand, band)
	}
	if bc, ok := g.(BandCounter); ok && band >= bc.Bands() {
		return fmt.Errorf("%w: %d (grid has %d bands)", ErrInvalidBand, band, bc.Bands())
	}
	return nil
}
