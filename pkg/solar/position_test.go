package solar

import (
	"math"
	"testing"
	"time"
)

func TestPosition(t *testing.T) {
	tests := []struct {
		name      string
		t         time.Time
		lat, lon  float64
		zenith    float64
		zenithTol float64
		minAz     float64
		maxAz     float64
	}{
		{
			name:      "Equator at equinox noon",
			t:         time.Date(2023, 3, 20, 12, 7, 0, 0, time.UTC),
			lat:       0,
			lon:       0,
			zenith:    0,
			zenithTol: 1.0,
			minAz:     0,
			maxAz:     360,
		},
		{
			name:      "45N summer solstice noon",
			t:         time.Date(2023, 6, 21, 12, 2, 0, 0, time.UTC),
			lat:       45,
			lon:       0,
			zenith:    45 - 23.44,
			zenithTol: 0.5,
			minAz:     170,
			maxAz:     190,
		},
		{
			name:      "45N winter solstice noon",
			t:         time.Date(2023, 12, 21, 11, 58, 0, 0, time.UTC),
			lat:       45,
			lon:       0,
			zenith:    45 + 23.44,
			zenithTol: 0.5,
			minAz:     175,
			maxAz:     185,
		},
		{
			name:      "45N summer morning is east",
			t:         time.Date(2023, 6, 21, 8, 0, 0, 0, time.UTC),
			lat:       45,
			lon:       0,
			zenith:    53.0,
			zenithTol: 3,
			minAz:     80,
			maxAz:     110,
		},
		{
			name:      "45S summer noon faces north",
			t:         time.Date(2023, 12, 21, 11, 58, 0, 0, time.UTC),
			lat:       -45,
			lon:       0,
			zenith:    45 - 23.44,
			zenithTol: 0.5,
			minAz:     0,
			maxAz:     360,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z, az := Position(tt.t, tt.lat, tt.lon)
			if math.Abs(z-tt.zenith) > tt.zenithTol {
				t.Errorf("zenith = %.2f, want %.2f ± %.1f", z, tt.zenith, tt.zenithTol)
			}
			if az < tt.minAz || az > tt.maxAz {
				t.Errorf("azimuth = %.2f, want within [%v, %v]", az, tt.minAz, tt.maxAz)
			}
			if az < 0 || az >= 360 {
				t.Errorf("azimuth %.2f outside [0, 360)", az)
			}
		})
	}
}

func TestSouthernNoonAzimuth(t *testing.T) {
	_, az := Position(time.Date(2023, 12, 21, 11, 58, 0, 0, time.UTC), -45, 0)
	if az > 10 && az < 350 {
		t.Errorf("azimuth = %.2f, want near north", az)
	}
}

func TestOverpassTime(t *testing.T) {
	tests := []struct {
		lon  float64
		want time.Time
	}{
		{0, time.Date(2023, 7, 14, 10, 30, 0, 0, time.UTC)},
		{15, time.Date(2023, 7, 14, 9, 30, 0, 0, time.UTC)},
		{-45, time.Date(2023, 7, 14, 13, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got := OverpassTime(time.Date(2023, 7, 14, 0, 0, 0, 0, time.UTC), tt.lon)
		if !got.Equal(tt.want) {
			t.Errorf("OverpassTime(lon %v) = %v, want %v", tt.lon, got, tt.want)
		}
	}
}
