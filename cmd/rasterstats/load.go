package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"rasterstats/pkg/rasterstats"
)

// layer is one input file loaded as a grid.
type layer struct {
	name string
	path string
	grid *rasterstats.MatGrid
}

// loadLayers reads every path, applies the NoData override and, when
// configured, precomputes band statistics. Grids loaded before a failure are
// released.
func (s *session) loadLayers(ctx context.Context, paths []string) ([]layer, error) {
	layers := make([]layer, 0, len(paths))

	for _, path := range paths {
		l, err := s.loadLayer(ctx, path)
		if err != nil {
			closeLayers(layers)
			return nil, err
		}
		layers = append(layers, l)
	}

	return layers, nil
}

func (s *session) loadLayer(ctx context.Context, path string) (layer, error) {
	grid, err := loadGrid(path)
	if err != nil {
		return layer{}, fmt.Errorf("loading %s: %w", path, err)
	}

	if nd := s.cfg.Grid.NoData; nd != nil {
		grid.SetNoData(*nd)
	}

	l := layer{name: layerName(path), path: path, grid: grid}

	if s.cfg.Analysis.UseLayerStatistics {
		st, err := grid.ComputeStatistics(s.cfg.Analysis.Band)
		if err != nil {
			grid.Close()
			return layer{}, fmt.Errorf("statistics of %s: %w", path, err)
		}
		s.logger.DebugContext(ctx, "layer statistics", "layer", l.name, "statistics", st.String())
	}

	cols, rows := grid.Dimensions()
	s.logger.DebugContext(ctx, "grid loaded",
		"layer", l.name, "cols", cols, "rows", rows, "bands", grid.Bands(), "extent", grid.Extent().String())

	return l, nil
}

// loadGrid dispatches on the file extension. Anything that is neither FITS
// nor an ESRI ASCII grid is decoded as a raster image.
func loadGrid(path string) (*rasterstats.MatGrid, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fits", ".fit", ".fts":
		img, err := rasterstats.ReadFits(path)
		if err != nil {
			return nil, fmt.Errorf("reading FITS: %w", err)
		}
		return rasterstats.NewGridFromFits(img)
	case ".asc":
		a, err := rasterstats.ReadASCIIGrid(path)
		if err != nil {
			return nil, fmt.Errorf("reading ASCII grid: %w", err)
		}
		return rasterstats.NewGridFromASCII(a)
	default:
		return loadImageGrid(path)
	}
}

func layerName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func closeLayers(layers []layer) {
	for _, l := range layers {
		l.grid.Close()
	}
}
