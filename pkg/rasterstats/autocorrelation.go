package rasterstats

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"
)

// ComputeAutocorrelation derives Moran's I and Geary's C from accumulated
// rook's-case sums, following de Smith, Goodchild & Longley, Geospatial
// Analysis (3rd ed.):
//
//	I = N / W * sum_ij w(ij)(xi-m)(xj-m) / sum_i (xi-m)^2
//	C = (N-1) / 2W * sum_ij w(ij)(xi-xj)^2 / sum_i (xi-m)^2
//
// where W is the number of valid ordered neighbour pairs. Both estimates are
// nil when the grid has no spread or no neighbour pair. In ModeFull the
// variances under the normality and randomization assumptions and the
// two-sided z tests are added; a test whose variance is undefined or not
// positive has nil z and p.
func ComputeAutocorrelation(s NeighborhoodSums, mode Mode) AutocorrelationResult {
	res := AutocorrelationResult{Mode: mode, N: s.N}
	if s.Denominator == 0 || s.NumeratorCount == 0 {
		return res
	}

	n := float64(s.N)
	count := float64(s.NumeratorCount)
	moran := n / count * s.NumeratorMI / s.Denominator
	geary := (n - 1) / (2 * count) * s.NumeratorGC / s.Denominator
	res.MoranI = float64Ptr(moran)
	res.GearyC = float64Ptr(geary)

	if mode != ModeFull {
		return res
	}

	e := -1 / (n - 1)
	s0, s1, s2 := s.S0, s.S1/2, s.S2
	s0sq := s0 * s0
	k := (s.KNumerator / n) / math.Pow(s.Denominator/n, 2)
	res.Expected = float64Ptr(e)
	res.Kurtosis = float64Ptr(k)

	if s0 > 0 && n > 1 {
		v := (n*n*s1-n*s2+3*s0sq)/(s0sq*(n*n-1)) - e*e
		res.MoranNormality = newTest(v, (moran-e)/math.Sqrt(v))
	}
	if s0 > 0 && s.N > 3 {
		num := n*((n*n-3*n+3)*s1-n*s2+3*s0sq) - k*((n*n-n)*s1-2*n*s2+6*s0sq)
		v := num/((n-1)*(n-2)*(n-3)*s0sq) - e*e
		res.MoranRandomization = newTest(v, (moran-e)/math.Sqrt(v))
	}

	if s0 > 0 {
		v := ((2*s1+s2)*(n-1) - 4*s0sq) / (2 * (n + 1) * s0sq)
		res.GearyNormality = newTest(v, -(geary-1)/math.Sqrt(v))
	}
	if s0 > 0 && s.N > 3 {
		num := (n-1)*s1*(n*n-3*n+3-(n-1)*k) -
			((n-1)*s2*(n*n+3*n-6-(n*n-n+2)*k))/4 +
			s0sq*(n*n-3-(n-1)*(n-1)*k)
		v := num / (n * (n - 2) * (n - 3) * s0sq)
		res.GearyRandomization = newTest(v, -(geary-1)/math.Sqrt(v))
	}
	return res
}

// newTest reports the variance and, when it is positive, the z-score and its
// two-sided p-value. z must have been computed from v.
func newTest(v, z float64) Test {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Test{}
	}
	t := Test{Variance: float64Ptr(v)}
	if v <= 0 {
		return t
	}
	t.ZScore = float64Ptr(z)
	t.PValue = float64Ptr(TwoSidedNormalP(z))
	return t
}

// Autocorrelate computes the mean of band, accumulates its neighbourhood sums
// and derives Moran's I and Geary's C. A band with no valid cell yields a
// report with a nil mean and nil estimates.
func (e *Engine) Autocorrelate(ctx context.Context, g GridSource, band int, mode Mode) (report *AutocorrelationReport, err error) {
	ctx, span, start := e.startSpan(ctx, "autocorrelate",
		attribute.Int("band", band), attribute.String("mode", mode.String()))
	defer func() { e.endSpan(ctx, span, "autocorrelate", start, 0, err) }()

	if mode != ModeSimple && mode != ModeFull {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}

	mean, err := e.Mean(ctx, g, band)
	if err != nil {
		return nil, err
	}
	report = &AutocorrelationReport{Mean: mean}
	if mean == nil {
		e.logger.InfoContext(ctx, "band has no valid cells", "band", band)
		report.Result = ComputeAutocorrelation(NeighborhoodSums{}, mode)
		return report, nil
	}

	sums, err := e.Accumulate(ctx, g, band, *mean)
	if err != nil {
		return nil, err
	}
	report.Sums = sums
	report.Result = ComputeAutocorrelation(sums, mode)

	e.logger.InfoContext(ctx, "autocorrelation computed",
		"band", band, "mode", mode.String(), "n", sums.N, "mean", *mean,
		"moranI", logValue(report.Result.MoranI), "gearyC", logValue(report.Result.GearyC))
	return report, nil
}

// logValue renders a nullable statistic for structured logs.
func logValue(v *float64) any {
	if v == nil {
		return "N/A"
	}
	return *v
}
