//go:build purego || js

package main

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"rasterstats/pkg/rasterstats"
)

// loadImageGrid decodes a raster image into a single-band grid of luminance
// values over the pixel extent [0,w]x[0,h]. Values keep the source bit
// depth: 16-bit images yield 0..65535, all others 0..255.
func loadImageGrid(path string) (*rasterstats.MatGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	shift := uint32(8)
	if isSixteenBit(img.ColorModel()) {
		shift = 0
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	values := make([]float64, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			r, g, b = r>>shift, g>>shift, b>>shift
			values[y*w+x] = float64((19595*r + 38470*g + 7471*b + 1<<15) >> 16)
		}
	}

	extent, err := rasterstats.NewExtent(0, float64(w), 0, float64(h))
	if err != nil {
		return nil, err
	}
	return rasterstats.NewMatGrid(extent, rasterstats.NewMatFromFloat64(h, w, values))
}

func isSixteenBit(m color.Model) bool {
	switch m {
	case color.Gray16Model, color.RGBA64Model, color.NRGBA64Model:
		return true
	default:
		return false
	}
}
