package codec

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/chrissnell/remotesensing/internal/types"
)

// Raw handles planar little-endian sample files described by an ENVI header.
type Raw struct{}

var enviTypes = map[types.DataType]int{
	types.Uint8:   1,
	types.Int16:   2,
	types.Int32:   3,
	types.Float32: 4,
	types.Float64: 5,
	types.Uint16:  12,
	types.Uint32:  13,
}

func enviType(code int) (types.DataType, bool) {
	for dt, c := range enviTypes {
		if c == code {
			return dt, true
		}
	}
	return 0, false
}

type enviHeader struct {
	samples   int
	lines     int
	bands     int
	dataType  types.DataType
	byteOrder int
	offset    int64
	mapInfo   string
}

func readHeader(path string) (enviHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return enviHeader{}, err
	}
	defer f.Close()

	h := enviHeader{bands: 1}
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			if line != "ENVI" {
				return h, fmt.Errorf("%s is not an ENVI header", path)
			}
			first = false
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		var n int
		switch key {
		case "samples", "lines", "bands", "data type", "byte order", "header offset":
			n, err = strconv.Atoi(value)
			if err != nil {
				return h, fmt.Errorf("header field %q: %w", key, err)
			}
		}
		switch key {
		case "samples":
			h.samples = n
		case "lines":
			h.lines = n
		case "bands":
			h.bands = n
		case "data type":
			dt, ok := enviType(n)
			if !ok {
				return h, fmt.Errorf("ENVI data type %d: %w", n, ErrUnsupportedFormat)
			}
			h.dataType = dt
		case "byte order":
			h.byteOrder = n
		case "header offset":
			h.offset = int64(n)
		case "map info":
			h.mapInfo = value
		}
	}
	if err := scanner.Err(); err != nil {
		return h, err
	}
	if h.samples <= 0 || h.lines <= 0 || h.dataType == 0 {
		return h, fmt.Errorf("%s: incomplete ENVI header", path)
	}
	if h.bands != 1 {
		return h, fmt.Errorf("%s: %d bands, want 1: %w", path, h.bands, ErrUnsupportedFormat)
	}
	return h, nil
}

func (Raw) Decode(path string) (*types.Raster, error) {
	h, err := readHeader(trimExt(path) + ".hdr")
	if err != nil {
		return nil, err
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	need := int64(h.samples*h.lines*h.dataType.Size()) + h.offset
	if int64(len(buf)) < need {
		return nil, fmt.Errorf("%s holds %d bytes, header needs %d", path, len(buf), need)
	}
	buf = buf[h.offset:need]
	if h.byteOrder == 1 {
		swapBytes(buf, h.dataType.Size())
	}
	data, err := h.dataType.Decode(buf)
	if err != nil {
		return nil, err
	}
	return types.RasterFrom(h.lines, h.samples, h.dataType, data)
}

func swapBytes(buf []byte, width int) {
	if width < 2 {
		return
	}
	for i := 0; i+width <= len(buf); i += width {
		for a, b := i, i+width-1; a < b; a, b = a+1, b-1 {
			buf[a], buf[b] = buf[b], buf[a]
		}
	}
}

func (Raw) Encode(path string, r *types.Raster, opts Options) error {
	dt := r.Type
	if _, ok := enviTypes[dt]; !ok {
		return fmt.Errorf("raw %s: %w", dt, ErrUnsupportedFormat)
	}
	if err := os.WriteFile(path, dt.Encode(r.Data), 0o644); err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("ENVI\n")
	fmt.Fprintf(&sb, "samples = %d\n", r.Cols)
	fmt.Fprintf(&sb, "lines = %d\n", r.Rows)
	sb.WriteString("bands = 1\n")
	sb.WriteString("header offset = 0\n")
	sb.WriteString("file type = ENVI Standard\n")
	fmt.Fprintf(&sb, "data type = %d\n", enviTypes[dt])
	sb.WriteString("interleave = bsq\n")
	fmt.Fprintf(&sb, "byte order = %d\n", 0)
	if g := opts.Geo; g.Valid() {
		hemi := "North"
		if !g.North {
			hemi = "South"
		}
		px := float64(g.Resolution)
		fmt.Fprintf(&sb, "map info = {UTM, 1, 1, %s, %s, %s, %s, %d, %s, WGS-84}\n",
			formatFloat(g.ULX), formatFloat(g.ULY), formatFloat(px), formatFloat(px), g.Zone, hemi)
	}
	if err := os.WriteFile(trimExt(path)+".hdr", []byte(sb.String()), 0o644); err != nil {
		return err
	}
	if opts.Geo.Valid() {
		return WriteFootprint(trimExt(path)+".geojson", opts.Geo)
	}
	return nil
}

func formatFloat(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
