package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"rasterstats/internal/config"
	"rasterstats/pkg/rasterstats"
)

const (
	ninePatch = `ncols 3
nrows 3
xllcorner 0
yllcorner 0
cellsize 1
1 2 3
4 5 6
7 8 9
`
	shuffled = `ncols 3
nrows 3
xllcorner 0
yllcorner 0
cellsize 1
2 1 4
3 6 5
8 7 9
`
	reversed = `ncols 3
nrows 3
xllcorner 0
yllcorner 0
cellsize 1
9 8 7
6 5 4
3 2 1
`
)

func writeGrid(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

// execute runs the CLI against an empty config file so no stray config is
// read, with colors off.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cfgPath := writeGrid(t, t.TempDir(), "rasterstats.yaml", "")
	cmd := newRootCommand(&stdout, &stderr)
	cmd.SetArgs(append(args, "--config", cfgPath, "--no-color"))

	err := cmd.Execute()

	return stdout.String(), err
}

func decodeJSON(t *testing.T, out string) map[string]any {
	t.Helper()

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	return doc
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "rasterstats dev\n", out)
}

func TestAutocorr_JSON(t *testing.T) {
	path := writeGrid(t, t.TempDir(), "elevation.asc", ninePatch)

	out, err := execute(t, "autocorr", "--format", "json", path)
	require.NoError(t, err)

	doc := decodeJSON(t, out)
	assert.Equal(t, "full", doc["mode"])
	assert.NotEmpty(t, doc["run_id"])

	layers, ok := doc["layers"].([]any)
	require.True(t, ok)
	require.Len(t, layers, 1)

	l := layers[0].(map[string]any)
	assert.Equal(t, "elevation", l["name"])
	assert.InDelta(t, 9.0, l["cells"], 0)
	assert.InDelta(t, 5.0, l["mean"], 1e-12)

	res := l["result"].(map[string]any)
	assert.InDelta(t, 9.0, res["n"], 0)
	assert.InDelta(t, 0.5, res["moran_i"], 1e-9)
	assert.InDelta(t, 1.0/3.0, res["geary_c"], 1e-9)
	assert.InDelta(t, -0.125, res["expected_i"], 1e-12)

	norm := res["moran_normality"].(map[string]any)
	assert.InDelta(t, 0.053125, norm["variance"], 1e-9)
	assert.InDelta(t, 2.711630722733202, norm["z_score"], 1e-9)
}

func TestAutocorr_SimpleTable(t *testing.T) {
	path := writeGrid(t, t.TempDir(), "elevation.asc", ninePatch)

	out, err := execute(t, "autocorr", "--mode", "simple", "--precision", "3", path)
	require.NoError(t, err)

	assert.Contains(t, out, "MORAN'S I")
	assert.Contains(t, out, "elevation")
	assert.Contains(t, out, "0.500")
	assert.Contains(t, out, "0.333")
	assert.NotContains(t, out, "Significance")
}

func TestAutocorr_FullTableHasTests(t *testing.T) {
	path := writeGrid(t, t.TempDir(), "elevation.asc", ninePatch)

	out, err := execute(t, "autocorr", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Significance")
	assert.Contains(t, out, "randomization")
	assert.Contains(t, out, "-0.125000")
}

func TestAutocorr_NoDataOverride(t *testing.T) {
	path := writeGrid(t, t.TempDir(), "elevation.asc", ninePatch)

	out, err := execute(t, "autocorr", "--format", "json", "--nodata", "5", path)
	require.NoError(t, err)

	l := decodeJSON(t, out)["layers"].([]any)[0].(map[string]any)
	assert.InDelta(t, 5.0, l["mean"], 1e-12)
	assert.InDelta(t, 8.0, l["result"].(map[string]any)["n"], 0)
}

func TestAutocorr_InvalidMode(t *testing.T) {
	path := writeGrid(t, t.TempDir(), "elevation.asc", ninePatch)

	_, err := execute(t, "autocorr", "--mode", "partial", path)
	require.ErrorIs(t, err, rasterstats.ErrUnknownMode)
}

func TestCorrelate_JSON(t *testing.T) {
	dir := t.TempDir()
	a := writeGrid(t, dir, "a.asc", ninePatch)
	b := writeGrid(t, dir, "b.asc", shuffled)

	out, err := execute(t, "correlate", "--format", "json", a, b)
	require.NoError(t, err)

	doc := decodeJSON(t, out)
	assert.Equal(t, "R", doc["metric"])
	assert.Equal(t, []any{"a", "b"}, doc["layers"])

	pairs := doc["pairs"].([]any)
	require.Len(t, pairs, 1)

	pair := pairs[0].(map[string]any)
	assert.Equal(t, "a", pair["a"])
	assert.Equal(t, "b", pair["b"])

	res := pair["result"].(map[string]any)
	assert.InDelta(t, 0.9333333333333333, res["value"], 1e-9)
	assert.InDelta(t, 0.0002358998, res["p_value"], 1e-8)
	assert.InDelta(t, 3.0, res["stars"], 0)
	assert.InDelta(t, 9.0, res["n"], 0)
}

func TestCorrelate_TableMatrix(t *testing.T) {
	dir := t.TempDir()
	a := writeGrid(t, dir, "a.asc", ninePatch)
	b := writeGrid(t, dir, "b.asc", shuffled)
	c := writeGrid(t, dir, "c.asc", reversed)

	out, err := execute(t, "correlate", a, b, c)
	require.NoError(t, err)

	assert.Contains(t, out, "Pearson r")
	assert.Contains(t, out, "Matrix")
	assert.Contains(t, out, "0.933333***")
	assert.Contains(t, out, "-1.000000***")
}

func TestCorrelate_MatrixWithRepeatedLayerNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "a"), 0o700))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "b"), 0o700))
	a := writeGrid(t, filepath.Join(dir, "a"), "x.asc", ninePatch)
	b := writeGrid(t, filepath.Join(dir, "b"), "x.asc", shuffled)
	c := writeGrid(t, dir, "c.asc", reversed)

	out, err := execute(t, "correlate", a, b, c)
	require.NoError(t, err)

	_, matrix, found := strings.Cut(out, "Matrix")
	require.True(t, found)
	assert.Contains(t, matrix, "0.933333***")
	assert.Contains(t, matrix, "-1.000000***")
	assert.Contains(t, matrix, "-0.933333***")
}

func TestCorrelate_SchoenerD(t *testing.T) {
	dir := t.TempDir()
	a := writeGrid(t, dir, "a.asc", ninePatch)
	b := writeGrid(t, dir, "b.asc", shuffled)

	out, err := execute(t, "correlate", "--metric", "D", "--format", "json", a, b)
	require.NoError(t, err)

	res := decodeJSON(t, out)["pairs"].([]any)[0].(map[string]any)["result"].(map[string]any)
	assert.InDelta(t, 0.9111111111111111, res["value"], 1e-9)
	assert.NotContains(t, res, "p_value")
}

func TestCorrelate_TooFewGrids(t *testing.T) {
	a := writeGrid(t, t.TempDir(), "a.asc", ninePatch)

	_, err := execute(t, "correlate", a)
	require.ErrorIs(t, err, rasterstats.ErrTooFewGrids)
}

func TestDescribe_YAML(t *testing.T) {
	path := writeGrid(t, t.TempDir(), "elevation.asc", ninePatch)

	out, err := execute(t, "describe", "--format", "yaml", path)
	require.NoError(t, err)

	var doc struct {
		Bands []struct {
			Name       string `yaml:"name"`
			Cols       int    `yaml:"cols"`
			Statistics struct {
				Count  int     `yaml:"count"`
				Mean   float64 `yaml:"mean"`
				Median float64 `yaml:"median"`
				Max    float64 `yaml:"max"`
			} `yaml:"statistics"`
		} `yaml:"bands"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Bands, 1)

	st := doc.Bands[0].Statistics
	assert.Equal(t, "elevation", doc.Bands[0].Name)
	assert.Equal(t, 3, doc.Bands[0].Cols)
	assert.Equal(t, 9, st.Count)
	assert.InDelta(t, 5.0, st.Mean, 1e-12)
	assert.InDelta(t, 5.0, st.Median, 1e-12)
	assert.InDelta(t, 9.0, st.Max, 0)
}

func TestDescribe_Table(t *testing.T) {
	path := writeGrid(t, t.TempDir(), "elevation.asc", ninePatch)

	out, err := execute(t, "describe", "--precision", "2", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Band statistics")
	assert.Contains(t, out, "3x3")
	assert.Contains(t, out, "5.00")
}

func TestInvalidFormat(t *testing.T) {
	path := writeGrid(t, t.TempDir(), "elevation.asc", ninePatch)

	_, err := execute(t, "describe", "--format", "xml", path)
	require.ErrorIs(t, err, config.ErrInvalidFormat)
}

func TestMissingInput(t *testing.T) {
	_, err := execute(t, "describe", filepath.Join(t.TempDir(), "absent.asc"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.asc")
}

func TestParseHeaders(t *testing.T) {
	t.Parallel()

	assert.Nil(t, parseHeaders("  "))
	assert.Equal(t, map[string]string{"api-key": "secret", "tenant": "geo"},
		parseHeaders("api-key=secret, tenant = geo,broken,=x"))
}

func TestLayerName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "elevation", layerName("/data/elevation.asc"))
	assert.Equal(t, "m31.v2", layerName("m31.v2.fits"))
}
