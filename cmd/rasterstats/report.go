package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"rasterstats/internal/config"
	"rasterstats/pkg/rasterstats"
)

const notAvailable = "N/A"

// autocorrReport is the machine-readable output of the autocorr command.
type autocorrReport struct {
	RunID  string           `json:"run_id" yaml:"run_id"`
	Band   int              `json:"band" yaml:"band"`
	Mode   rasterstats.Mode `json:"mode" yaml:"mode"`
	Layers []autocorrLayer  `json:"layers" yaml:"layers"`
}

type autocorrLayer struct {
	Name   string                            `json:"name" yaml:"name"`
	Path   string                            `json:"path" yaml:"path"`
	Cells  int                               `json:"cells" yaml:"cells"`
	Mean   *float64                          `json:"mean" yaml:"mean"`
	Result rasterstats.AutocorrelationResult `json:"result" yaml:"result"`
}

// correlateReport is the machine-readable output of the correlate command.
type correlateReport struct {
	RunID  string                        `json:"run_id" yaml:"run_id"`
	Band   int                           `json:"band" yaml:"band"`
	Metric rasterstats.Metric            `json:"metric" yaml:"metric"`
	Layers []string                      `json:"layers" yaml:"layers"`
	Pairs  []rasterstats.PairCorrelation `json:"pairs" yaml:"pairs"`
}

// describeReport is the machine-readable output of the describe command.
type describeReport struct {
	RunID string         `json:"run_id" yaml:"run_id"`
	Bands []describeBand `json:"bands" yaml:"bands"`
}

type describeBand struct {
	Name       string                     `json:"name" yaml:"name"`
	Band       int                        `json:"band" yaml:"band"`
	Cols       int                        `json:"cols" yaml:"cols"`
	Rows       int                        `json:"rows" yaml:"rows"`
	Extent     rasterstats.Extent         `json:"extent" yaml:"extent"`
	Statistics rasterstats.BandStatistics `json:"statistics" yaml:"statistics"`
}

// printer renders reports in the configured output format.
type printer struct {
	w         io.Writer
	format    string
	precision int
}

func newPrinter(w io.Writer, out config.OutputConfig) printer {
	return printer{w: w, format: out.Format, precision: out.Precision}
}

// encode writes v as JSON or YAML. It reports false for the table format.
func (p printer) encode(v any) (bool, error) {
	switch p.format {
	case config.FormatJSON:
		return true, marshalAndWrite(v, func(v any) ([]byte, error) {
			data, err := json.MarshalIndent(v, "", "  ")
			return append(data, '\n'), err
		}, p.w, "json")
	case config.FormatYAML:
		return true, marshalAndWrite(v, yaml.Marshal, p.w, "yaml")
	default:
		return false, nil
	}
}

func marshalAndWrite(data any, marshal func(any) ([]byte, error), w io.Writer, label string) error {
	encoded, err := marshal(data)
	if err != nil {
		return fmt.Errorf("%s encode: %w", label, err)
	}

	if _, err := w.Write(encoded); err != nil {
		return fmt.Errorf("%s write: %w", label, err)
	}

	return nil
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	return tbl
}

func (p printer) writeTable(title string, tbl table.Writer) error {
	tbl.SetTitle(title)
	if _, err := fmt.Fprintln(p.w, tbl.Render()); err != nil {
		return fmt.Errorf("table write: %w", err)
	}
	return nil
}

func (p printer) autocorrelation(r autocorrReport) error {
	if done, err := p.encode(r); done {
		return err
	}

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Layer", "Cells", "N", "Mean", "Moran's I", "Geary's C"})
	for _, l := range r.Layers {
		tbl.AppendRow(table.Row{
			l.Name,
			humanize.Comma(int64(l.Cells)),
			humanize.Comma(int64(l.Result.N)),
			p.nullable(l.Mean),
			p.nullable(l.Result.MoranI),
			p.nullable(l.Result.GearyC),
		})
	}
	if err := p.writeTable(fmt.Sprintf("Spatial autocorrelation (band %d, %s)", r.Band, r.Mode), tbl); err != nil {
		return err
	}

	if r.Mode != rasterstats.ModeFull {
		return nil
	}

	tests := newTable()
	tests.AppendHeader(table.Row{"Layer", "Statistic", "Assumption", "E[I]", "Kurtosis", "Variance", "Z", "P"})
	for _, l := range r.Layers {
		res := l.Result
		rows := []struct {
			stat, assumption string
			test             rasterstats.Test
		}{
			{"Moran's I", "normality", res.MoranNormality},
			{"Moran's I", "randomization", res.MoranRandomization},
			{"Geary's C", "normality", res.GearyNormality},
			{"Geary's C", "randomization", res.GearyRandomization},
		}
		for _, row := range rows {
			tests.AppendRow(table.Row{
				l.Name, row.stat, row.assumption,
				p.nullable(res.Expected), p.nullable(res.Kurtosis),
				p.nullable(row.test.Variance), p.nullable(row.test.ZScore), p.pValue(row.test.PValue),
			})
		}
	}
	return p.writeTable("Significance", tests)
}

func (p printer) correlation(r correlateReport) error {
	if done, err := p.encode(r); done {
		return err
	}

	tbl := newTable()
	header := table.Row{"Layer A", "Layer B", "N", r.Metric.String()}
	if r.Metric == rasterstats.MetricR {
		header = append(header, "P")
	}
	tbl.AppendHeader(header)

	values := make([]string, len(r.Pairs))
	for k, pc := range r.Pairs {
		values[k] = p.correlationValue(pc.Result)

		row := table.Row{pc.A, pc.B, humanize.Comma(int64(pc.Result.N)), values[k]}
		if r.Metric == rasterstats.MetricR {
			row = append(row, p.pValue(pc.Result.PValue))
		}
		tbl.AppendRow(row)
	}
	if err := p.writeTable(fmt.Sprintf("%s (band %d)", metricTitle(r.Metric), r.Band), tbl); err != nil {
		return err
	}

	// Pairs arrive as (i, j), i < j, in input order; names may repeat.
	n := len(r.Layers)
	if len(values) != n*(n-1)/2 {
		return fmt.Errorf("correlation matrix: %d pairs for %d layers", len(values), n)
	}
	upper := make([][]string, n)
	k := 0
	for i := range upper {
		upper[i] = make([]string, n)
		for j := i + 1; j < n; j++ {
			upper[i][j] = values[k]
			k++
		}
	}

	grid := newTable()
	head := table.Row{""}
	for _, name := range r.Layers[1:] {
		head = append(head, name)
	}
	grid.AppendHeader(head)
	for i := 0; i < n-1; i++ {
		row := table.Row{r.Layers[i]}
		for j := 1; j < n; j++ {
			row = append(row, upper[i][j])
		}
		grid.AppendRow(row)
	}
	return p.writeTable("Matrix", grid)
}

func (p printer) describe(r describeReport) error {
	if done, err := p.encode(r); done {
		return err
	}

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Layer", "Band", "Size", "Cells", "Valid", "Mean", "StdDev", "Min", "Max", "Median", "MAD",
		"Clip Mean", "Clip Sigma"})
	for _, b := range r.Bands {
		st := b.Statistics
		row := table.Row{
			b.Name, b.Band, fmt.Sprintf("%dx%d", b.Cols, b.Rows),
			humanize.Comma(int64(b.Cols) * int64(b.Rows)), humanize.Comma(int64(st.Count)),
		}
		if st.Count == 0 {
			for range 8 {
				row = append(row, notAvailable)
			}
		} else {
			row = append(row, p.float(st.Mean), p.float(st.StdDev), p.float(st.Min), p.float(st.Max),
				p.float(st.Median), p.float(st.MAD), p.float(st.Clipped.Mean), p.float(st.Clipped.Sigma))
		}
		tbl.AppendRow(row)
	}
	return p.writeTable("Band statistics", tbl)
}

func metricTitle(m rasterstats.Metric) string {
	switch m {
	case rasterstats.MetricD:
		return "Schoener's D"
	case rasterstats.MetricI:
		return "Hellinger I"
	default:
		return "Pearson r"
	}
}

func (p printer) float(v float64) string {
	return strconv.FormatFloat(v, 'f', p.precision, 64)
}

func (p printer) nullable(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return p.float(*v)
}

// correlationValue formats a metric value, appending significance stars to r.
func (p printer) correlationValue(res rasterstats.CorrelationResult) string {
	if res.Value == nil {
		return notAvailable
	}
	return highlight(res.Stars, p.float(*res.Value)+rasterstats.StarString(res.Stars))
}

func (p printer) pValue(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return highlight(rasterstats.Stars(*v), p.float(*v))
}

// highlight colors significant results. Output is plain when color is
// disabled or stdout is not a terminal.
func highlight(stars int, s string) string {
	switch {
	case stars >= 3:
		return color.New(color.FgGreen, color.Bold).Sprint(s)
	case stars > 0:
		return color.New(color.FgGreen).Sprint(s)
	default:
		return s
	}
}
