// Command rasterstats computes spatial autocorrelation and pairwise
// similarity statistics for raster grids.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "rasterstats",
		Short: "Spatial statistics for raster grids",
		Long: `rasterstats computes Moran's I and Geary's C for single grids and
Schoener's D, Hellinger I and Pearson r between pairs of grids.

Commands:
  autocorr   Spatial autocorrelation of one or more grids
  correlate  Pairwise similarity of two or more grids
  describe   Band statistics of one or more grids`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file (default ./rasterstats.yaml)")
	pf.IntVarP(&opts.band, "band", "b", 0, "zero-based band index")
	pf.IntVarP(&opts.workers, "workers", "w", 1, "number of column shards computed concurrently")
	pf.Float64Var(&opts.noData, "nodata", 0, "cell value treated as NoData in every grid")
	pf.StringVarP(&opts.format, "format", "f", "table", "output format: table, json, yaml")
	pf.IntVar(&opts.precision, "precision", 6, "decimal places in table output")
	pf.BoolVar(&opts.useLayerStats, "layer-stats", false, "compute band statistics on load and use their mean")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level: trace, debug, info, warn, error")
	pf.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(autocorrCmd(opts))
	rootCmd.AddCommand(correlateCmd(opts))
	rootCmd.AddCommand(describeCmd(opts))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rasterstats %s\n", version)
		},
	}
}
