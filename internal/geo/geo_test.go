package geo

import (
	"math"
	"testing"

	"github.com/chrissnell/remotesensing/internal/types"
)

func TestParseHCSName(t *testing.T) {
	tests := []struct {
		name    string
		zone    int
		north   bool
		wantErr bool
	}{
		{"WGS84 / UTM zone 32N", 32, true, false},
		{"WGS84 / UTM zone 33S", 33, false, false},
		{"WGS84 / UTM zone 1N", 1, true, false},
		{"WGS84 / UTM zone 61N", 0, false, true},
		{"", 0, false, true},
		{"WGS84 / UTM zone XX", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zone, north, err := ParseHCSName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (zone != tt.zone || north != tt.north) {
				t.Errorf("got zone %d north %v, want %d %v", zone, north, tt.zone, tt.north)
			}
		})
	}
}

func TestUTMToWGS84(t *testing.T) {
	tests := []struct {
		name             string
		e, n             float64
		zone             int
		north            bool
		wantLon, wantLat float64
	}{
		{"equator central meridian", 500000, 0, 31, true, 3, 0},
		{"mid latitude", 500000, 5000000, 32, true, 9, 45.15348},
		{"off meridian", 699960, 5000040, 32, true, 11.54263, 45.12552},
		{"southern hemisphere", 500000, 6000000, 33, false, 15, -36.14472},
	}
	const epsilon = 1e-4
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lon, lat := UTMToWGS84(tt.e, tt.n, tt.zone, tt.north)
			if math.Abs(lon-tt.wantLon) > epsilon || math.Abs(lat-tt.wantLat) > epsilon {
				t.Errorf("got (%f, %f), want (%f, %f)", lon, lat, tt.wantLon, tt.wantLat)
			}
		})
	}
}

func TestContextBounds(t *testing.T) {
	c, err := NewContext("T32TMR", types.R20, 600000, 5000040, 5490, 5490, 32632, "WGS84 / UTM zone 32N")
	if err != nil {
		t.Fatal(err)
	}
	gt := c.GeoTransform()
	if gt[0] != 600000 || gt[1] != 20 || gt[5] != -20 {
		t.Errorf("geotransform = %v", gt)
	}
	b := c.Bound()
	if b.Max[0]-b.Min[0] != 109800 || b.Max[1] != 5000040 {
		t.Errorf("bound = %v", b)
	}

	wgs, err := c.WGS84Bound()
	if err != nil {
		t.Fatal(err)
	}
	if wgs.Min[0] < 9 || wgs.Max[0] > 12 || wgs.Min[1] < 44 || wgs.Max[1] > 46 {
		t.Errorf("wgs84 bound out of range: %v", wgs)
	}

	fc, err := c.Footprint()
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 1 || fc.Features[0].Properties["tile_id"] != "T32TMR" {
		t.Errorf("unexpected footprint %+v", fc.Features)
	}

	ten := c.At(types.R10, 10980, 10980)
	if ten.Bound() != b {
		t.Errorf("bound changed across resolutions: %v vs %v", ten.Bound(), b)
	}
}

func TestEmptyContext(t *testing.T) {
	if _, err := (Context{}).WGS84Bound(); err == nil {
		t.Error("expected error for empty context")
	}
}

func TestCornersAcrossAntimeridian(t *testing.T) {
	// zone 60 tile whose eastern edge lies past 180 degrees
	c, err := NewContext("T60KZF", types.R60, 750000, 8000020, 1830, 1830, 32760, "WGS84 / UTM zone 60S")
	if err != nil {
		t.Fatal(err)
	}
	ll, ur, err := c.Corners()
	if err != nil {
		t.Fatal(err)
	}
	if ll[0] < 170 || ll[0] >= 180 {
		t.Errorf("lower-left lon = %v", ll[0])
	}
	if ur[0] >= -170 || ur[0] < -180 {
		t.Errorf("upper-right lon = %v, want wrapped past the antimeridian", ur[0])
	}
	if ur[1] <= ll[1] {
		t.Errorf("upper-right lat %v not north of lower-left %v", ur[1], ll[1])
	}
}
