// Package rasterstats computes spatial statistics over raster grids: global
// autocorrelation (Moran's I and Geary's C with significance tests under the
// normality and randomization assumptions, rook's-case adjacency) and pairwise
// similarity between co-registered grids (Schoener's D, the Hellinger-based I
// and Pearson's r).
//
// Grids are read through the GridSource interface. MatGrid is the in-memory
// implementation; FITS images and ESRI ASCII grids can be loaded into it.
// An Engine runs the computations and carries the logger, tracer, metric
// instruments and worker count.
package rasterstats
