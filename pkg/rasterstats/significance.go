package rasterstats

import (
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// Significance levels for the star markers.
const (
	alpha3 = 0.001
	alpha2 = 0.01
	alpha1 = 0.05
)

// TwoSidedNormalP returns 2(1 - Phi(|z|)), which is exactly 1 at z = 0.
func TwoSidedNormalP(z float64) float64 {
	return 2 * (1 - distuv.UnitNormal.CDF(math.Abs(z)))
}

// PearsonP returns the two-sided p-value of a correlation coefficient r
// computed from n pairs, against r = 0, as I_x(df/2, 1/2) with
// x = df/(df+t^2) and t = r*sqrt(df/((1-r)(1+r))). It reports false when
// n < 3.
func PearsonP(r float64, n int) (float64, bool) {
	df := float64(n - 2)
	if df <= 0 || math.IsNaN(r) {
		return 0, false
	}
	if math.Abs(r) >= 1 {
		return 0, true
	}
	t := r * math.Sqrt(df/((1-r)*(1+r)))
	x := df / (df + t*t)
	return mathext.RegIncBeta(0.5*df, 0.5, x), true
}

// Stars maps a p-value to 3, 2, 1 or 0 significance markers.
func Stars(p float64) int {
	switch {
	case p < alpha3:
		return 3
	case p < alpha2:
		return 2
	case p < alpha1:
		return 1
	default:
		return 0
	}
}

// StarString renders n significance markers.
func StarString(n int) string {
	switch n {
	case 3:
		return "***"
	case 2:
		return "**"
	case 1:
		return "*"
	default:
		return ""
	}
}
