package rasterstats

import (
	"fmt"
	"math"
	"strings"
)

// SampleKind classifies the value read from a grid at one coordinate.
type SampleKind int

const (
	SampleValid SampleKind = iota
	SampleNoData
	SampleOutOfExtent
)

func (k SampleKind) String() string {
	switch k {
	case SampleValid:
		return "valid"
	case SampleNoData:
		return "null (no data)"
	case SampleOutOfExtent:
		return "out of extent"
	default:
		return "unknown"
	}
}

// Sample is the tagged value returned by GridSource.Sample.
type Sample struct {
	Kind  SampleKind
	Value float64
}

// Valid wraps a finite cell value.
func Valid(v float64) Sample { return Sample{Kind: SampleValid, Value: v} }

// NoData marks a masked cell inside the extent.
func NoData() Sample { return Sample{Kind: SampleNoData} }

// OutOfExtent marks a coordinate that falls outside the grid.
func OutOfExtent() Sample { return Sample{Kind: SampleOutOfExtent} }

func (s Sample) IsValid() bool { return s.Kind == SampleValid }

func (s Sample) String() string {
	if s.Kind == SampleValid {
		return fmt.Sprintf("%g", s.Value)
	}
	return s.Kind.String()
}

// Extent is the real-world bounding box of a grid.
type Extent struct {
	XMin float64 `json:"x_min" yaml:"x_min"`
	XMax float64 `json:"x_max" yaml:"x_max"`
	YMin float64 `json:"y_min" yaml:"y_min"`
	YMax float64 `json:"y_max" yaml:"y_max"`
}

// NewExtent creates an Extent, rejecting zero, negative or NaN spans.
func NewExtent(xMin, xMax, yMin, yMax float64) (Extent, error) {
	e := Extent{XMin: xMin, XMax: xMax, YMin: yMin, YMax: yMax}
	if err := e.validate(); err != nil {
		return Extent{}, err
	}
	return e, nil
}

func (e Extent) Width() float64  { return e.XMax - e.XMin }
func (e Extent) Height() float64 { return e.YMax - e.YMin }

// Contains reports whether (x, y) lies inside the half-open box [XMin, XMax) x (YMin, YMax].
func (e Extent) Contains(x, y float64) bool {
	return x >= e.XMin && x < e.XMax && y > e.YMin && y <= e.YMax
}

func (e Extent) validate() error {
	w, h := e.Width(), e.Height()
	if !(w > 0) || !(h > 0) || math.IsInf(w, 0) || math.IsInf(h, 0) {
		return fmt.Errorf("%w: x=[%g, %g] y=[%g, %g]", ErrDegenerateExtent, e.XMin, e.XMax, e.YMin, e.YMax)
	}
	return nil
}

func (e Extent) String() string {
	return fmt.Sprintf("{XMin=%g, XMax=%g, YMin=%g, YMax=%g}", e.XMin, e.XMax, e.YMin, e.YMax)
}

// Mode selects how much of the autocorrelation analysis is computed.
type Mode int

const (
	// ModeSimple returns the Moran's I and Geary's C point estimates only.
	ModeSimple Mode = iota
	// ModeFull adds variances, z-scores and p-values under the normality
	// and randomization assumptions.
	ModeFull
)

func (m Mode) String() string {
	switch m {
	case ModeSimple:
		return "simple"
	case ModeFull:
		return "full"
	default:
		return "unknown"
	}
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// ParseMode parses "simple" or "full" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simple":
		return ModeSimple, nil
	case "full":
		return ModeFull, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Metric selects the pairwise grid similarity statistic.
type Metric int

const (
	// MetricD is Schoener's D niche overlap.
	MetricD Metric = iota
	// MetricI is the Hellinger-based niche overlap I.
	MetricI
	// MetricR is Pearson's product moment correlation r.
	MetricR
)

func (m Metric) String() string {
	switch m {
	case MetricD:
		return "D"
	case MetricI:
		return "I"
	case MetricR:
		return "R"
	default:
		return "unknown"
	}
}

func (m Metric) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// ParseMetric parses "D", "I" or "R" (also "schoener", "hellinger", "pearson").
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "d", "schoener":
		return MetricD, nil
	case "i", "hellinger":
		return MetricI, nil
	case "r", "pearson":
		return MetricR, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
}

// NeighborhoodSums holds the raw rook's-case sums accumulated in one pass
// over a grid. Fields only ever grow.
type NeighborhoodSums struct {
	N              int     // valid centre cells
	Denominator    float64 // sum (z-mean)^2
	NumeratorMI    float64 // sum over valid pairs (zi-mean)(zj-mean)
	NumeratorGC    float64 // sum over valid pairs (zi-zj)^2
	NumeratorCount int     // valid ordered pairs
	S0             float64
	S1             float64 // doubled; halved in ComputeAutocorrelation
	S2             float64
	KNumerator     float64 // sum (z-mean)^4
}

// Add merges a partial accumulation into s.
func (s *NeighborhoodSums) Add(o NeighborhoodSums) {
	s.N += o.N
	s.Denominator += o.Denominator
	s.NumeratorMI += o.NumeratorMI
	s.NumeratorGC += o.NumeratorGC
	s.NumeratorCount += o.NumeratorCount
	s.S0 += o.S0
	s.S1 += o.S1
	s.S2 += o.S2
	s.KNumerator += o.KNumerator
}

func (s NeighborhoodSums) String() string {
	return fmt.Sprintf("{N=%d, Denominator=%f, NumeratorMI=%f, NumeratorGC=%f, NumeratorCount=%d, S0=%f, S1=%f, S2=%f, KNumerator=%f}",
		s.N, s.Denominator, s.NumeratorMI, s.NumeratorGC, s.NumeratorCount, s.S0, s.S1, s.S2, s.KNumerator)
}

// Test is one significance test of an autocorrelation statistic. ZScore and
// PValue are nil whenever Variance is nil or not positive.
type Test struct {
	Variance *float64 `json:"variance" yaml:"variance"`
	ZScore   *float64 `json:"z_score" yaml:"z_score"`
	PValue   *float64 `json:"p_value" yaml:"p_value"`
}

// AutocorrelationResult holds Moran's I and Geary's C for one grid band.
// In ModeSimple only MoranI and GearyC are populated.
type AutocorrelationResult struct {
	Mode     Mode     `json:"mode" yaml:"mode"`
	N        int      `json:"n" yaml:"n"`
	MoranI   *float64 `json:"moran_i" yaml:"moran_i"`
	GearyC   *float64 `json:"geary_c" yaml:"geary_c"`
	Expected *float64 `json:"expected_i,omitempty" yaml:"expected_i,omitempty"`
	Kurtosis *float64 `json:"kurtosis,omitempty" yaml:"kurtosis,omitempty"`

	MoranNormality     Test `json:"moran_normality" yaml:"moran_normality"`
	MoranRandomization Test `json:"moran_randomization" yaml:"moran_randomization"`
	GearyNormality     Test `json:"geary_normality" yaml:"geary_normality"`
	GearyRandomization Test `json:"geary_randomization" yaml:"geary_randomization"`
}

// AutocorrelationReport bundles the intermediate products of Autocorrelate.
type AutocorrelationReport struct {
	Mean   *float64              `json:"mean" yaml:"mean"`
	Sums   NeighborhoodSums      `json:"-" yaml:"-"`
	Result AutocorrelationResult `json:"result" yaml:"result"`
}

// CorrelationResult is the similarity of two grids under one metric. PValue
// and Stars are only set for MetricR.
type CorrelationResult struct {
	Metric Metric   `json:"metric" yaml:"metric"`
	Value  *float64 `json:"value" yaml:"value"`
	PValue *float64 `json:"p_value,omitempty" yaml:"p_value,omitempty"`
	Stars  int      `json:"stars" yaml:"stars"`
	N      int      `json:"n" yaml:"n"`
}

// Layer names one band of a grid taking part in a pairwise comparison.
type Layer struct {
	Name string
	Grid GridSource
	Band int
}

// PairCorrelation is one cell of the pairwise correlation matrix.
type PairCorrelation struct {
	A      string            `json:"a" yaml:"a"`
	B      string            `json:"b" yaml:"b"`
	Result CorrelationResult `json:"result" yaml:"result"`
}

// BandStatistics summarises the valid cells of one band.
type BandStatistics struct {
	Count  int     `json:"count" yaml:"count"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Median float64 `json:"median" yaml:"median"`
	// MAD is the median absolute deviation scaled by 1.4826 to estimate sigma.
	MAD float64 `json:"mad" yaml:"mad"`
	// Clipped is the 3-sigma clipped background of the band.
	Clipped ClippedStatistics `json:"clipped" yaml:"clipped"`
}

func (s BandStatistics) String() string {
	return fmt.Sprintf("{Count=%d, Mean=%f, StdDev=%f, Min=%f, Max=%f, Median=%f, MAD=%f, ClippedMean=%f, ClippedSigma=%f}",
		s.Count, s.Mean, s.StdDev, s.Min, s.Max, s.Median, s.MAD, s.Clipped.Mean, s.Clipped.Sigma)
}

func float64Ptr(v float64) *float64 { return &v }
