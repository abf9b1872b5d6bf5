package rasterstats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const (
	fitsRecordLen      = 80
	fitsRecordsInBlock = 36
)

// FitsHeader holds parsed FITS header key-value pairs.
type FitsHeader struct {
	Cards map[string]string
}

// NewFitsHeader creates an empty FitsHeader.
func NewFitsHeader() *FitsHeader {
	return &FitsHeader{Cards: make(map[string]string)}
}

func (h *FitsHeader) GetString(key string) string {
	if v, ok := h.Cards[strings.ToUpper(key)]; ok {
		return v
	}
	return ""
}

func (h *FitsHeader) GetDouble(key string) (float64, bool) {
	v, ok := h.Cards[strings.ToUpper(key)]
	if !ok {
		return 0, false
	}
	d, err := parseFitsFloat(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

func (h *FitsHeader) GetInt(key string) (int, bool) {
	v, ok := h.Cards[strings.ToUpper(key)]
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return i, true
}

// Object returns the OBJECT card, used as the default layer name.
func (h *FitsHeader) Object() string { return h.GetString("OBJECT") }

// FitsImage is a decoded primary HDU. Planes hold physical values
// (BSCALE/BZERO applied) in FITS order: NAXIS1 varies fastest and the first
// row is the one with the lowest pixel y. BLANK pixels are NaN.
type FitsImage struct {
	Planes [][]float64
	Width  int
	Height int
	Depth  int
	Bitpix int
	Header *FitsHeader
}

// ReadFits reads FITS headers and pixel data from a file.
func ReadFits(filePath string) (*FitsImage, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening FITS file: %w", err)
	}
	defer f.Close()
	return readFitsFromReader(f, false)
}

// ReadFitsHeader reads only the header and the axis sizes.
func ReadFitsHeader(filePath string) (*FitsImage, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening FITS file: %w", err)
	}
	defer f.Close()
	return readFitsFromReader(f, true)
}

// ReadFitsFromBytes reads FITS headers and pixel data from a byte slice.
func ReadFitsFromBytes(data []byte) (*FitsImage, error) {
	return readFitsFromReader(bytes.NewReader(data), false)
}

func readFitsFromReader(r io.Reader, skipPixelData bool) (*FitsImage, error) {
	var bitpix, naxis, width, height int
	depth := 1
	bzero := 0.0
	bscale := 1.0
	var blank int64
	hasBlank := false
	headerDone := false
	header := NewFitsHeader()

	recordBuf := make([]byte, fitsRecordLen)

	for !headerDone {
		for i := 0; i < fitsRecordsInBlock; i++ {
			if _, err := io.ReadFull(r, recordBuf); err != nil {
				return nil, fmt.Errorf("reading FITS header record: %w", err)
			}
			record := string(recordBuf)
			keyword := strings.TrimSpace(record[:8])

			if keyword == "END" {
				headerDone = true
				if remaining := fitsRecordsInBlock - 1 - i; remaining > 0 {
					if _, err := io.CopyN(io.Discard, r, int64(remaining*fitsRecordLen)); err != nil {
						return nil, fmt.Errorf("skipping FITS header padding: %w", err)
					}
				}
				break
			}

			if record[8] != '=' || record[9] != ' ' {
				continue
			}
			rawValue := strings.TrimSpace(strings.SplitN(record[10:], "/", 2)[0])
			if parsed := parseFitsValue(rawValue); keyword != "" && parsed != "" {
				header.Cards[strings.ToUpper(keyword)] = parsed
			}

			var err error
			switch keyword {
			case "BITPIX":
				bitpix, err = strconv.Atoi(rawValue)
			case "NAXIS":
				naxis, err = strconv.Atoi(rawValue)
			case "NAXIS1":
				width, err = strconv.Atoi(rawValue)
			case "NAXIS2":
				height, err = strconv.Atoi(rawValue)
			case "NAXIS3":
				depth, err = strconv.Atoi(rawValue)
			case "BZERO":
				bzero, err = parseFitsFloat(rawValue)
			case "BSCALE":
				bscale, err = parseFitsFloat(rawValue)
			case "BLANK":
				blank, err = strconv.ParseInt(rawValue, 10, 64)
				hasBlank = err == nil
			}
			if err != nil {
				return nil, fmt.Errorf("%w: %s = %q", ErrInvalidHeader, keyword, rawValue)
			}
		}
	}

	if naxis < 2 || naxis > 3 || width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("%w: NAXIS=%d, NAXIS1=%d, NAXIS2=%d, NAXIS3=%d",
			ErrInvalidHeader, naxis, width, height, depth)
	}
	if naxis == 2 {
		depth = 1
	}
	if !cellsWithinLimit(width, height, depth) {
		return nil, fmt.Errorf("%w: %dx%dx%d exceeds %d cells",
			ErrInvalidHeader, width, height, depth, MaxGridCells)
	}

	img := &FitsImage{
		Width:  width,
		Height: height,
		Depth:  depth,
		Bitpix: bitpix,
		Header: header,
	}
	bytesPerPixel, err := fitsBytesPerPixel(bitpix)
	if err != nil {
		return nil, err
	}
	if skipPixelData {
		return img, nil
	}

	numPixels := width * height
	planeBytes := int64(numPixels) * int64(bytesPerPixel)
	img.Planes = make([][]float64, depth)
	for p := 0; p < depth; p++ {
		// Grows with the bytes present, not with the declared size.
		rawBytes, err := io.ReadAll(io.LimitReader(r, planeBytes))
		if err != nil {
			return nil, fmt.Errorf("reading BITPIX %d plane %d: %w", bitpix, p, err)
		}
		if int64(len(rawBytes)) != planeBytes {
			return nil, fmt.Errorf("reading BITPIX %d plane %d: %w", bitpix, p, io.ErrUnexpectedEOF)
		}
		plane := make([]float64, numPixels)
		for i := 0; i < numPixels; i++ {
			var raw float64
			switch bitpix {
			case 8:
				v := rawBytes[i]
				if hasBlank && int64(v) == blank {
					plane[i] = math.NaN()
					continue
				}
				raw = float64(v)
			case 16:
				v := int16(binary.BigEndian.Uint16(rawBytes[i*2:]))
				if hasBlank && int64(v) == blank {
					plane[i] = math.NaN()
					continue
				}
				raw = float64(v)
			case 32:
				v := int32(binary.BigEndian.Uint32(rawBytes[i*4:]))
				if hasBlank && int64(v) == blank {
					plane[i] = math.NaN()
					continue
				}
				raw = float64(v)
			case -32:
				raw = float64(math.Float32frombits(binary.BigEndian.Uint32(rawBytes[i*4:])))
			case -64:
				raw = math.Float64frombits(binary.BigEndian.Uint64(rawBytes[i*8:]))
			}
			plane[i] = raw*bscale + bzero
		}
		img.Planes[p] = plane
	}
	return img, nil
}

func fitsBytesPerPixel(bitpix int) (int, error) {
	switch bitpix {
	case 8:
		return 1, nil
	case 16:
		return 2, nil
	case 32, -32:
		return 4, nil
	case -64:
		return 8, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedBitpix, bitpix)
	}
}

// Extent returns the real-world extent from the linear WCS cards CRVAL,
// CRPIX and CDELT of the first two axes. Missing cards fall back to pixel
// coordinates, so an image without WCS spans [0, Width] x [0, Height].
func (img *FitsImage) Extent() (Extent, error) {
	x0, x1 := img.axisEdges(1, img.Width)
	y0, y1 := img.axisEdges(2, img.Height)
	return NewExtent(math.Min(x0, x1), math.Max(x0, x1), math.Min(y0, y1), math.Max(y0, y1))
}

// axisEdges returns the world coordinate of the outer edges of pixel 1 and
// pixel n along axis.
func (img *FitsImage) axisEdges(axis, n int) (float64, float64) {
	suffix := strconv.Itoa(axis)
	crval, okVal := img.Header.GetDouble("CRVAL" + suffix)
	crpix, okPix := img.Header.GetDouble("CRPIX" + suffix)
	cdelt, okDelt := img.Header.GetDouble("CDELT" + suffix)
	if !okVal || !okPix || !okDelt || cdelt == 0 {
		return 0, float64(n)
	}
	world := func(p float64) float64 { return crval + (p-crpix)*cdelt }
	return world(0.5), world(float64(n) + 0.5)
}

func (img *FitsImage) axisDescending(axis, n int) bool {
	lo, hi := img.axisEdges(axis, n)
	return hi < lo
}

// NewGridFromFits converts a decoded image into a MatGrid, one band per
// plane. Rows are reordered so that Mat row 0 is the northern edge, and
// columns so that column 0 is the western edge.
func NewGridFromFits(img *FitsImage) (*MatGrid, error) {
	if img == nil || len(img.Planes) == 0 {
		return nil, fmt.Errorf("%w: FITS image has no pixel data", ErrInvalidGeometry)
	}
	ext, err := img.Extent()
	if err != nil {
		return nil, fmt.Errorf("FITS extent: %w", err)
	}
	flipX := img.axisDescending(1, img.Width)
	// With ascending y the first FITS row is the southern one.
	flipY := !img.axisDescending(2, img.Height)

	if !cellsWithinLimit(img.Width, img.Height, len(img.Planes)) {
		return nil, fmt.Errorf("%w: %dx%dx%d FITS image", ErrInvalidGeometry, img.Width, img.Height, len(img.Planes))
	}
	for i, plane := range img.Planes {
		if len(plane) != img.Width*img.Height {
			return nil, fmt.Errorf("%w: plane %d has %d values, want %d",
				ErrInvalidGeometry, i, len(plane), img.Width*img.Height)
		}
	}

	bands := make([]Mat, 0, len(img.Planes))
	for _, plane := range img.Planes {
		m := NewMatWithSize(img.Height, img.Width)
		data := m.DataFloat64()
		for fy := 0; fy < img.Height; fy++ {
			row := fy
			if flipY {
				row = img.Height - 1 - fy
			}
			for fx := 0; fx < img.Width; fx++ {
				col := fx
				if flipX {
					col = img.Width - 1 - fx
				}
				data[row*img.Width+col] = plane[fy*img.Width+fx]
			}
		}
		bands = append(bands, m)
	}
	return NewMatGrid(ext, bands...)
}

// parseFitsFloat also accepts the Fortran exponent letter D.
func parseFitsFloat(v string) (float64, error) {
	v = strings.Map(func(r rune) rune {
		if r == 'D' || r == 'd' {
			return 'E'
		}
		return r
	}, strings.TrimSpace(v))
	return strconv.ParseFloat(v, 64)
}

func parseFitsValue(rawValue string) string {
	if rawValue == "" {
		return ""
	}
	if rawValue == "T" {
		return "True"
	}
	if rawValue == "F" {
		return "False"
	}
	if strings.HasPrefix(rawValue, "'") {
		endQuote := strings.LastIndex(rawValue, "'")
		if endQuote > 0 {
			return strings.TrimRight(rawValue[1:endQuote], " ")
		}
		return strings.TrimLeft(strings.TrimRight(rawValue, " "), "'")
	}
	return rawValue
}
