package rasterstats

import "math"

// Kappa-sigma clipping parameters used by CalculateBandStatistics.
const (
	clipKappa      = 3.0
	clipTolerance  = 1e-9
	clipIterations = 5
)

// ClippedStatistics is the outcome of iterative kappa-sigma clipping.
type ClippedStatistics struct {
	Mean       float64 `json:"mean" yaml:"mean"`
	Sigma      float64 `json:"sigma" yaml:"sigma"`
	Count      int     `json:"count" yaml:"count"`
	Iterations int     `json:"iterations" yaml:"iterations"`
}

// KappaSigmaClip repeatedly drops values further than kappa*sigma from the
// mean until sigma changes by at most tolerance or maxIterations passes have
// run. Sigma is the population standard deviation of the kept values.
func KappaSigmaClip(values []float64, kappa, tolerance float64, maxIterations int) ClippedStatistics {
	var res ClippedStatistics
	lo, hi := math.Inf(-1), math.Inf(1)
	lastSigma := math.NaN()

	for res.Iterations < maxIterations {
		mean, sigma, count := meanStdDevWithin(values, lo, hi)
		if count == 0 {
			break
		}
		res.Iterations++
		res.Mean, res.Sigma, res.Count = mean, sigma, count
		if res.Iterations > 1 && math.Abs(sigma-lastSigma) <= tolerance {
			break
		}
		lastSigma = sigma
		lo, hi = mean-kappa*sigma, mean+kappa*sigma
	}
	return res
}

// meanStdDevWithin computes the mean and population stddev of values in [lo, hi].
func meanStdDevWithin(values []float64, lo, hi float64) (float64, float64, int) {
	var (
		sum   float64
		count int
	)
	for _, v := range values {
		if v >= lo && v <= hi {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0, 0, 0
	}
	mean := sum / float64(count)

	var sse float64
	for _, v := range values {
		if v >= lo && v <= hi {
			diff := v - mean
			sse += diff * diff
		}
	}
	return mean, math.Sqrt(sse / float64(count)), count
}
