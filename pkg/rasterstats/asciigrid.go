package rasterstats

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// asciiPrealloc caps the initial cell buffer; larger grids grow as read.
const asciiPrealloc = 1 << 16

// ASCIIGrid is a decoded ESRI ASCII raster. Values are listed north row
// first.
type ASCIIGrid struct {
	Cols      int
	Rows      int
	XLL       float64
	YLL       float64
	DX        float64
	DY        float64
	NoData    float64
	HasNoData bool
	Values    []float64
}

// Extent returns the grid extent from its lower-left corner and cell size.
func (a *ASCIIGrid) Extent() (Extent, error) {
	return NewExtent(a.XLL, a.XLL+float64(a.Cols)*a.DX, a.YLL, a.YLL+float64(a.Rows)*a.DY)
}

// ReadASCIIGrid reads an ESRI ASCII grid file.
func ReadASCIIGrid(filePath string) (*ASCIIGrid, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening ASCII grid: %w", err)
	}
	defer f.Close()
	return ParseASCIIGrid(f)
}

// ParseASCIIGrid decodes an ESRI ASCII grid. The header accepts ncols,
// nrows, xllcorner or xllcenter, yllcorner or yllcenter, cellsize or dx/dy,
// and NODATA_value, in any order and case.
func ParseASCIIGrid(r io.Reader) (*ASCIIGrid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	g := &ASCIIGrid{}
	var (
		xCenter, yCenter bool
		cellSize         float64
		pending          string
	)
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			pending = sc.Text()
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("%w: %s without a value", ErrInvalidHeader, key)
		}
		raw := sc.Text()
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s = %q", ErrInvalidHeader, key, raw)
		}
		switch key {
		case "ncols", "nrows":
			if v != math.Trunc(v) || v < 1 || v > MaxGridCells {
				return nil, fmt.Errorf("%w: %s = %q", ErrInvalidHeader, key, raw)
			}
			if key == "ncols" {
				g.Cols = int(v)
			} else {
				g.Rows = int(v)
			}
		case "xllcorner":
			g.XLL = v
		case "xllcenter":
			g.XLL, xCenter = v, true
		case "yllcorner":
			g.YLL = v
		case "yllcenter":
			g.YLL, yCenter = v, true
		case "cellsize":
			cellSize = v
		case "dx":
			g.DX = v
		case "dy":
			g.DY = v
		case "nodata_value":
			g.NoData, g.HasNoData = v, true
		default:
			return nil, fmt.Errorf("%w: unknown key %q", ErrInvalidHeader, key)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ASCII grid header: %w", err)
	}

	if g.DX == 0 {
		g.DX = cellSize
	}
	if g.DY == 0 {
		g.DY = cellSize
	}
	if g.Cols <= 0 || g.Rows <= 0 || g.DX <= 0 || g.DY <= 0 {
		return nil, fmt.Errorf("%w: ncols=%d nrows=%d dx=%g dy=%g", ErrInvalidHeader, g.Cols, g.Rows, g.DX, g.DY)
	}
	if !cellsWithinLimit(g.Cols, g.Rows) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d cells", ErrInvalidHeader, g.Cols, g.Rows, MaxGridCells)
	}
	if xCenter {
		g.XLL -= g.DX / 2
	}
	if yCenter {
		g.YLL -= g.DY / 2
	}

	want := g.Cols * g.Rows
	g.Values = make([]float64, 0, min(want, asciiPrealloc))
	appendValue := func(tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("ASCII grid cell %d: %w", len(g.Values), err)
		}
		g.Values = append(g.Values, v)
		return nil
	}
	if pending != "" {
		if err := appendValue(pending); err != nil {
			return nil, err
		}
	}
	for len(g.Values) < want && sc.Scan() {
		if err := appendValue(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ASCII grid cells: %w", err)
	}
	if len(g.Values) != want {
		return nil, fmt.Errorf("%w: %d cells, want %d", ErrInvalidGeometry, len(g.Values), want)
	}
	return g, nil
}

// NewGridFromASCII converts a decoded ASCII grid into a single-band MatGrid
// carrying its NODATA_value.
func NewGridFromASCII(a *ASCIIGrid) (*MatGrid, error) {
	ext, err := a.Extent()
	if err != nil {
		return nil, fmt.Errorf("ASCII grid extent: %w", err)
	}
	g, err := NewMatGrid(ext, NewMatFromFloat64(a.Rows, a.Cols, a.Values))
	if err != nil {
		return nil, err
	}
	if a.HasNoData {
		g.SetNoData(a.NoData)
	}
	return g, nil
}
