package rasterstats_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rasterstats/pkg/rasterstats"
)

const fitsBlock = 2880

// fitsBytes assembles a primary HDU from header cards and big-endian data.
func fitsBytes(cards []string, data []byte) []byte {
	var buf bytes.Buffer
	for _, c := range append(cards, "END") {
		fmt.Fprintf(&buf, "%-80s", c)
	}
	for buf.Len()%fitsBlock != 0 {
		buf.WriteByte(' ')
	}
	buf.Write(data)
	for buf.Len()%fitsBlock != 0 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func card(key string, value any) string {
	return fmt.Sprintf("%-8s= %20v", key, value)
}

func int16Data(values ...int16) []byte {
	out := make([]byte, 2*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

func float64Data(values ...float64) []byte {
	out := make([]byte, 8*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return out
}

func TestReadFitsFromBytes_Int16ScaledWithBlank(t *testing.T) {
	t.Parallel()

	raw := fitsBytes([]string{
		"SIMPLE  =                    T",
		card("BITPIX", 16),
		card("NAXIS", 2),
		card("NAXIS1", 3),
		card("NAXIS2", 2),
		card("BZERO", "1.0D+01"),
		card("BSCALE", 2),
		card("BLANK", -32768),
		"OBJECT  = 'elevation'          / layer name",
	}, int16Data(1, 2, 3, -32768, 5, 6))

	img, err := rasterstats.ReadFitsFromBytes(raw)
	require.NoError(t, err)

	assert.Equal(t, 3, img.Width)
	assert.Equal(t, 2, img.Height)
	assert.Equal(t, 1, img.Depth)
	assert.Equal(t, "elevation", img.Header.Object())
	require.Len(t, img.Planes, 1)

	plane := img.Planes[0]
	assert.InDelta(t, 12.0, plane[0], 0)
	assert.InDelta(t, 16.0, plane[2], 0)
	assert.True(t, math.IsNaN(plane[3]))
	assert.InDelta(t, 22.0, plane[5], 0)
}

func TestNewGridFromFits_Orientation(t *testing.T) {
	t.Parallel()

	// The first FITS row is the southern one.
	raw := fitsBytes([]string{
		"SIMPLE  =                    T",
		card("BITPIX", -64),
		card("NAXIS", 2),
		card("NAXIS1", 2),
		card("NAXIS2", 2),
	}, float64Data(1, 2, 3, math.NaN()))

	img, err := rasterstats.ReadFitsFromBytes(raw)
	require.NoError(t, err)

	g, err := rasterstats.NewGridFromFits(img)
	require.NoError(t, err)
	t.Cleanup(g.Close)

	assert.Equal(t, rasterstats.Extent{XMin: 0, XMax: 2, YMin: 0, YMax: 2}, g.Extent())
	assert.Equal(t, rasterstats.Valid(1), g.Sample(0.5, 0.5, 0))
	assert.Equal(t, rasterstats.Valid(2), g.Sample(1.5, 0.5, 0))
	assert.Equal(t, rasterstats.Valid(3), g.Sample(0.5, 1.5, 0))
	assert.Equal(t, rasterstats.SampleNoData, g.Sample(1.5, 1.5, 0).Kind)
}

func TestNewGridFromFits_WCSExtentAndCubes(t *testing.T) {
	t.Parallel()

	raw := fitsBytes([]string{
		"SIMPLE  =                    T",
		card("BITPIX", 16),
		card("NAXIS", 3),
		card("NAXIS1", 2),
		card("NAXIS2", 1),
		card("NAXIS3", 2),
		card("CRVAL1", 100.0),
		card("CRPIX1", 1.0),
		card("CDELT1", -0.5),
		card("CRVAL2", 40.0),
		card("CRPIX2", 1.0),
		card("CDELT2", 0.5),
	}, int16Data(1, 2, 10, 20))

	img, err := rasterstats.ReadFitsFromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Depth)

	g, err := rasterstats.NewGridFromFits(img)
	require.NoError(t, err)
	t.Cleanup(g.Close)

	ext := g.Extent()
	assert.InDelta(t, 99.25, ext.XMin, 1e-12)
	assert.InDelta(t, 100.25, ext.XMax, 1e-12)
	assert.InDelta(t, 39.75, ext.YMin, 1e-12)
	assert.InDelta(t, 40.25, ext.YMax, 1e-12)
	assert.Equal(t, 2, g.Bands())

	// Pixel 1 sits at x=100, the eastern cell once columns run west to east.
	assert.Equal(t, rasterstats.Valid(1), g.Sample(100, 40, 0))
	assert.Equal(t, rasterstats.Valid(2), g.Sample(99.5, 40, 0))
	assert.Equal(t, rasterstats.Valid(20), g.Sample(99.5, 40, 1))
}

func TestReadFits_Errors(t *testing.T) {
	t.Parallel()

	_, err := rasterstats.ReadFitsFromBytes(fitsBytes([]string{
		"SIMPLE  =                    T",
		card("BITPIX", 64),
		card("NAXIS", 2),
		card("NAXIS1", 1),
		card("NAXIS2", 1),
	}, make([]byte, 8)))
	require.ErrorIs(t, err, rasterstats.ErrUnsupportedBitpix)

	_, err = rasterstats.ReadFitsFromBytes(fitsBytes([]string{
		"SIMPLE  =                    T",
		card("BITPIX", 8),
		card("NAXIS", 1),
		card("NAXIS1", 4),
	}, make([]byte, 4)))
	require.ErrorIs(t, err, rasterstats.ErrInvalidHeader)

	_, err = rasterstats.ReadFitsFromBytes(fitsBytes([]string{
		"SIMPLE  =                    T",
		card("BITPIX", "x"),
	}, nil))
	require.ErrorIs(t, err, rasterstats.ErrInvalidHeader)

	_, err = rasterstats.ReadFitsFromBytes([]byte("SIMPLE"))
	require.Error(t, err)
}

func TestReadFits_OversizedAxes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cards []string
	}{
		{"product wraps to zero", []string{
			card("NAXIS", 2), card("NAXIS1", int64(1)<<32), card("NAXIS2", int64(1)<<32),
		}},
		{"above cell limit", []string{
			card("NAXIS", 2), card("NAXIS1", 1<<15), card("NAXIS2", 1<<15),
		}},
		{"cube above cell limit", []string{
			card("NAXIS", 3), card("NAXIS1", 1<<14), card("NAXIS2", 1<<14), card("NAXIS3", 2),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cards := append([]string{"SIMPLE  =                    T", card("BITPIX", -64)}, tt.cards...)
			_, err := rasterstats.ReadFitsFromBytes(fitsBytes(cards, nil))
			require.ErrorIs(t, err, rasterstats.ErrInvalidHeader)
		})
	}
}

func TestReadFits_TruncatedData(t *testing.T) {
	t.Parallel()

	// The header promises 4096x4096 doubles but only one block follows.
	_, err := rasterstats.ReadFitsFromBytes(fitsBytes([]string{
		"SIMPLE  =                    T",
		card("BITPIX", -64),
		card("NAXIS", 2),
		card("NAXIS1", 4096),
		card("NAXIS2", 4096),
	}, float64Data(1, 2, 3)))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestNewGridFromFits_PlaneSizeMismatch(t *testing.T) {
	t.Parallel()

	_, err := rasterstats.NewGridFromFits(&rasterstats.FitsImage{
		Planes: [][]float64{{1, 2, 3}},
		Width:  2,
		Height: 2,
		Depth:  1,
		Header: rasterstats.NewFitsHeader(),
	})
	require.ErrorIs(t, err, rasterstats.ErrInvalidGeometry)
}

func TestReadFits_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "layer.fits")
	require.NoError(t, os.WriteFile(path, fitsBytes([]string{
		"SIMPLE  =                    T",
		card("BITPIX", 8),
		card("NAXIS", 2),
		card("NAXIS1", 2),
		card("NAXIS2", 2),
	}, []byte{1, 2, 3, 4}), 0o600))

	hdr, err := rasterstats.ReadFitsHeader(path)
	require.NoError(t, err)
	assert.Nil(t, hdr.Planes)
	assert.Equal(t, 8, hdr.Bitpix)

	img, err := rasterstats.ReadFits(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, img.Planes[0])
}
