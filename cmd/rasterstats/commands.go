package main

import (
	"github.com/spf13/cobra"

	"rasterstats/pkg/rasterstats"
)

func autocorrCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autocorr <grid>...",
		Short: "Compute Moran's I and Geary's C",
		Long: `Compute Moran's I and Geary's C with rook's case contiguity for each grid.
Full mode adds the expected I, the kurtosis and normality and randomization
significance tests.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAutocorr(cmd, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "full", "analysis mode: simple, full")
	return cmd
}

func runAutocorr(cmd *cobra.Command, opts *options, paths []string) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer s.close(ctx)

	mode, err := s.cfg.Mode()
	if err != nil {
		return err
	}

	layers, err := s.loadLayers(ctx, paths)
	if err != nil {
		return err
	}
	defer closeLayers(layers)

	band := s.cfg.Analysis.Band
	out := autocorrReport{RunID: s.runID, Band: band, Mode: mode}

	for _, l := range layers {
		s.logger.InfoContext(ctx, "processing layer", "layer", l.name)

		rep, err := s.engine.Autocorrelate(ctx, l.grid, band, mode)
		if err != nil {
			return err
		}

		cols, rows := l.grid.Dimensions()
		out.Layers = append(out.Layers, autocorrLayer{
			Name:   l.name,
			Path:   l.path,
			Cells:  cols * rows,
			Mean:   rep.Mean,
			Result: rep.Result,
		})
	}

	return newPrinter(cmd.OutOrStdout(), s.cfg.Output).autocorrelation(out)
}

func correlateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correlate <grid> <grid>...",
		Short: "Compare every pair of grids",
		Long: `Compute Schoener's D (D), Hellinger I (I) or Pearson r (R) for every pair of
grids. Cells are paired by sampling the second grid at the cell centres of the
first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCorrelate(cmd, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.metric, "metric", "m", "R", "metric: D, I, R")
	return cmd
}

func runCorrelate(cmd *cobra.Command, opts *options, paths []string) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer s.close(ctx)

	metric, err := s.cfg.Metric()
	if err != nil {
		return err
	}

	layers, err := s.loadLayers(ctx, paths)
	if err != nil {
		return err
	}
	defer closeLayers(layers)

	band := s.cfg.Analysis.Band
	inputs := make([]rasterstats.Layer, len(layers))
	names := make([]string, len(layers))
	for i, l := range layers {
		inputs[i] = rasterstats.Layer{Name: l.name, Grid: l.grid, Band: band}
		names[i] = l.name
	}

	pairs, err := s.engine.CorrelateAll(ctx, metric, inputs)
	if err != nil {
		return err
	}

	return newPrinter(cmd.OutOrStdout(), s.cfg.Output).correlation(correlateReport{
		RunID:  s.runID,
		Band:   band,
		Metric: metric,
		Layers: names,
		Pairs:  pairs,
	})
}

func describeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <grid>...",
		Short: "Show geometry and band statistics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(cmd, opts, args)
		},
	}
}

func runDescribe(cmd *cobra.Command, opts *options, paths []string) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer s.close(ctx)

	layers, err := s.loadLayers(ctx, paths)
	if err != nil {
		return err
	}
	defer closeLayers(layers)

	out := describeReport{RunID: s.runID}
	for _, l := range layers {
		cols, rows := l.grid.Dimensions()
		for band := 0; band < l.grid.Bands(); band++ {
			st, err := l.grid.ComputeStatistics(band)
			if err != nil {
				return err
			}
			out.Bands = append(out.Bands, describeBand{
				Name:       l.name,
				Band:       band,
				Cols:       cols,
				Rows:       rows,
				Extent:     l.grid.Extent(),
				Statistics: st,
			})
		}
	}

	return newPrinter(cmd.OutOrStdout(), s.cfg.Output).describe(out)
}
