//go:build !purego && !js

package main

import (
	"fmt"

	"gocv.io/x/gocv"

	"rasterstats/pkg/rasterstats"
)

// loadImageGrid reads a raster image as single-channel values at their
// native bit depth over the pixel extent [0,w]x[0,h].
func loadImageGrid(path string) (*rasterstats.MatGrid, error) {
	src := gocv.IMRead(path, gocv.IMReadAnyDepth)
	if src.Empty() {
		return nil, fmt.Errorf("could not load image: %s", path)
	}
	defer src.Close()

	w, h := src.Cols(), src.Rows()
	extent, err := rasterstats.NewExtent(0, float64(w), 0, float64(h))
	if err != nil {
		return nil, err
	}

	mat := rasterstats.WrapGocvMat(src)
	grid, err := rasterstats.NewMatGrid(extent, mat)
	if err != nil {
		mat.Close()
		return nil, err
	}
	return grid, nil
}
