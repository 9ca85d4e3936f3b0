package codec

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chrissnell/remotesensing/internal/geo"
	"github.com/chrissnell/remotesensing/internal/types"
)

func testRaster(dt types.DataType) *types.Raster {
	r := types.NewRaster(3, 5, dt)
	for i := range r.Data {
		r.Data[i] = float32(i * 17)
	}
	return r
}

func testGeo(t *testing.T) geo.Context {
	t.Helper()
	g, err := geo.NewContext("T32TMR", types.R20, 600000, 5000040, 3, 5, 32632, "WGS84 / UTM zone 32N")
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		dt   types.DataType
	}{
		{"tiff uint8", ".tif", types.Uint8},
		{"tiff uint16", ".tif", types.Uint16},
		{"raw uint16", ".img", types.Uint16},
		{"raw int16", ".img", types.Int16},
		{"raw float32", ".raw", types.Float32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "band"+tt.ext)
			src := testRaster(tt.dt)
			if err := Encode(path, src, Options{Resolution: types.R20, Geo: testGeo(t)}); err != nil {
				t.Fatal(err)
			}
			got, err := Decode(path)
			if err != nil {
				t.Fatal(err)
			}
			if got.Rows != src.Rows || got.Cols != src.Cols || got.Type != tt.dt {
				t.Fatalf("got %dx%d %s", got.Rows, got.Cols, got.Type)
			}
			for i := range src.Data {
				if got.Data[i] != src.Data[i] {
					t.Errorf("sample %d: got %v, want %v", i, got.Data[i], src.Data[i])
				}
			}
			if _, err := os.Stat(filepath.Join(filepath.Dir(path), "band.geojson")); err != nil {
				t.Errorf("footprint sidecar missing: %v", err)
			}
		})
	}
}

func TestWorldFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "band.tfw")
	if err := WriteWorldFile(path, testGeo(t)); err != nil {
		t.Fatal(err)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Fields(string(body))
	if len(lines) != 6 {
		t.Fatalf("world file has %d lines", len(lines))
	}
	if lines[0] != "20.0000000000" || lines[3] != "-20.0000000000" || lines[4] != "600010.0000000000" {
		t.Errorf("unexpected world file %q", lines)
	}
}

func TestFootprintIsGeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "band.geojson")
	if err := WriteFootprint(path, testGeo(t)); err != nil {
		t.Fatal(err)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Type != "FeatureCollection" || len(doc.Features) != 1 || doc.Features[0].Geometry.Type != "Polygon" {
		t.Errorf("unexpected footprint %s", body)
	}
}

func TestUnsupportedExtension(t *testing.T) {
	if _, err := Decode("band.xyz"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
	path := filepath.Join(t.TempDir(), "band.img")
	if err := Encode(path, testRaster(types.Int8), Options{}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("int8 raw: err = %v, want ErrUnsupportedFormat", err)
	}
}
