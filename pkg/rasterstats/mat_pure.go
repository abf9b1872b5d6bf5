//go:build purego || js

package rasterstats

// Mat is a pure Go 2D float64 matrix stored row-major.
type Mat struct {
	data []float64
	rows int
	cols int
}

func NewMatWithSize(rows, cols int) Mat {
	return Mat{
		data: make([]float64, rows*cols),
		rows: rows,
		cols: cols,
	}
}

// NewMatFromFloat64 copies a row-major slice of rows*cols values into a new Mat.
func NewMatFromFloat64(rows, cols int, values []float64) Mat {
	m := NewMatWithSize(rows, cols)
	copy(m.data, values)
	return m
}

func (m Mat) Rows() int { return m.rows }
func (m Mat) Cols() int { return m.cols }

func (m *Mat) Close() {
	m.data = nil
	m.rows = 0
	m.cols = 0
}

func (m Mat) At(row, col int) float64 { return m.data[row*m.cols+col] }

// DataFloat64 returns the row-major backing slice.
func (m Mat) DataFloat64() []float64 { return m.data }
