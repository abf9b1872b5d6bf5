//go:build !purego && !js

package rasterstats

import (
	"gocv.io/x/gocv"
)

// Mat wraps a single-channel CV_64F gocv.Mat for the native OpenCV backend.
type Mat struct {
	m gocv.Mat
}

func NewMatWithSize(rows, cols int) Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV64F)
	m.SetTo(gocv.NewScalar(0, 0, 0, 0))
	return Mat{m: m}
}

// NewMatFromFloat64 copies a row-major slice of rows*cols values into a new Mat.
func NewMatFromFloat64(rows, cols int, values []float64) Mat {
	mat := NewMatWithSize(rows, cols)
	copy(mat.DataFloat64(), values)
	return mat
}

// WrapGocvMat converts any single-channel gocv.Mat into a CV_64F Mat.
// The source is left untouched and still owned by the caller.
func WrapGocvMat(src gocv.Mat) Mat {
	dst := gocv.NewMat()
	src.ConvertTo(&dst, gocv.MatTypeCV64F)
	return Mat{m: dst}
}

func (mat Mat) Rows() int { return mat.m.Rows() }
func (mat Mat) Cols() int { return mat.m.Cols() }
func (mat *Mat) Close()   { mat.m.Close() }

func (mat Mat) At(row, col int) float64 { return mat.m.GetDoubleAt(row, col) }

// DataFloat64 returns the row-major backing slice owned by OpenCV.
func (mat Mat) DataFloat64() []float64 {
	data, _ := mat.m.DataPtrFloat64()
	return data
}
