package sceneclass

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chrissnell/remotesensing/internal/types"
)

// fakeSource is an in-memory BandSource.
type fakeSource struct {
	rows, cols int
	bands      map[types.BandID]*types.Raster
	stored     map[types.BandID]*types.Raster
}

func newFakeSource(rows, cols int) *fakeSource {
	return &fakeSource{
		rows:   rows,
		cols:   cols,
		bands:  make(map[types.BandID]*types.Raster),
		stored: make(map[types.BandID]*types.Raster),
	}
}

func (f *fakeSource) Get(_ context.Context, id types.BandID) (*types.Band, error) {
	r, ok := f.bands[id]
	if !ok {
		r, ok = f.stored[id]
	}
	if !ok {
		return nil, fmt.Errorf("band %s not found", id)
	}
	return &types.Band{ID: id, Resolution: types.R20, Raster: r.Clone()}, nil
}

func (f *fakeSource) Has(_ context.Context, id types.BandID) bool {
	_, ok := f.bands[id]
	return ok
}

func (f *fakeSource) Set(_ context.Context, id types.BandID, r *types.Raster) error {
	f.stored[id] = r.Clone()
	return nil
}

// fill sets every pixel of the named bands to v.
func (f *fakeSource) fill(v map[types.BandID]float32) {
	for id, x := range v {
		r := types.NewRaster(f.rows, f.cols, types.Float32)
		for i := range r.Data {
			r.Data[i] = x
		}
		f.bands[id] = r
	}
}

// spectrum returns a full 20m reflectance set with the overrides applied.
func spectrum(over map[types.BandID]float32) map[types.BandID]float32 {
	s := make(map[types.BandID]float32)
	for _, id := range types.ReflectanceBands(types.R20) {
		s[id] = 0.1
	}
	s[types.B10] = 0.001
	for id, v := range over {
		s[id] = v
	}
	return s
}

func run(t *testing.T, src *fakeSource, opts Options) *Result {
	t.Helper()
	if opts.Resolution == 0 {
		opts.Resolution = types.R20
	}
	res, err := New(src, DefaultThresholds(), opts, src.rows, src.cols, zap.NewNop().Sugar()).Process(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestBrightBlueLowNIRIsWaterOrCloud(t *testing.T) {
	src := newFakeSource(4, 4)
	src.fill(spectrum(map[types.BandID]float32{
		types.B02: 0.25, types.B03: 0.2, types.B04: 0.15,
		types.B8A: 0.05, types.B11: 0.02, types.B12: 0.01,
	}))
	res := run(t, src, Options{TestMode: true})
	for i, c := range res.Mask {
		switch c {
		case types.Water:
			if res.Cloud[i] != 0 {
				t.Errorf("pixel %d is water with cloud confidence %v", i, res.Cloud[i])
			}
		case types.LowProbaClouds, types.CloudMediumProba, types.CloudHighProba, types.ThinCirrus:
		default:
			t.Errorf("pixel %d classified %s", i, c)
		}
	}
}

func TestSingleClassScenes(t *testing.T) {
	tests := []struct {
		name   string
		over   map[types.BandID]float32
		snow   bool
		want   types.Class
		cld    float32
		snwPct float32
	}{
		{
			name: "thick cloud",
			over: map[types.BandID]float32{
				types.B02: 0.5, types.B03: 0.5, types.B04: 0.5,
				types.B8A: 0.5, types.B11: 0.4, types.B12: 0.35,
			},
			want: types.CloudHighProba,
			cld:  100,
		},
		{
			name: "snow",
			over: map[types.BandID]float32{
				types.B02: 0.9, types.B03: 0.9, types.B04: 0.85, types.B05: 0.85,
				types.B8A: 0.8, types.B11: 0.1, types.B12: 0.05,
			},
			snow:   true,
			want:   types.SnowIce,
			snwPct: 100,
		},
		{
			name: "dense vegetation",
			over: map[types.BandID]float32{
				types.B02: 0.03, types.B03: 0.06, types.B04: 0.03,
				types.B8A: 0.4, types.B11: 0.18, types.B12: 0.08,
			},
			want: types.Vegetation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource(6, 6)
			src.fill(spectrum(tt.over))
			res := run(t, src, Options{TestMode: true, CouldHaveSnow: tt.snow})
			for i, c := range res.Mask {
				if c != tt.want {
					t.Fatalf("pixel %d = %s, want %s", i, c, tt.want)
				}
			}
			if got := src.stored[types.CLD].Data[0]; got != tt.cld {
				t.Errorf("CLD = %v, want %v", got, tt.cld)
			}
			if got := src.stored[types.SNW].Data[0]; got != tt.snwPct {
				t.Errorf("SNW = %v, want %v", got, tt.snwPct)
			}
		})
	}
}

// randomScene fills every input band with noise and punches no-data holes.
func randomScene(rows, cols int, seed int64) (*fakeSource, []bool) {
	rng := rand.New(rand.NewSource(seed))
	src := newFakeSource(rows, cols)
	n := rows * cols
	noData := make([]bool, n)
	for i := range noData {
		noData[i] = rng.Float64() < 0.1
	}
	for _, id := range types.ReflectanceBands(types.R20) {
		r := types.NewRaster(rows, cols, types.Float32)
		for i := range r.Data {
			if !noData[i] {
				r.Data[i] = float32(0.001 + rng.Float64()*0.8)
			}
		}
		src.bands[id] = r
	}
	for id, gen := range map[types.BandID]func() float32{
		types.DEM: func() float32 { return float32(rng.Intn(3000)) },
		types.SLP: func() float32 { return float32(rng.Intn(60)) },
		types.SDW: func() float32 { return float32(rng.Intn(255)) },
		types.WBI: func() float32 { return float32(1 + rng.Intn(2)) },
		types.LCM: func() float32 { return []float32{10, 190, 200, 210}[rng.Intn(4)] },
		types.SNC: func() float32 { return []float32{0, 5, 254}[rng.Intn(3)] },
	} {
		r := types.NewRaster(rows, cols, types.Uint16)
		for i := range r.Data {
			r.Data[i] = gen()
		}
		src.bands[id] = r
	}
	return src, noData
}

func TestInvariantsOnRandomScenes(t *testing.T) {
	for seed := int64(1); seed <= 4; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			src, noData := randomScene(16, 16, seed)
			res := run(t, src, Options{
				SolarZenith:         40,
				SolarAzimuth:        float64(seed) * 80,
				CouldHaveSnow:       true,
				SenescingVegetation: seed%2 == 0,
				MedianFilter:        3,
			})
			for i, c := range res.Mask {
				if noData[i] && c != types.NoData {
					t.Errorf("no-data pixel %d reassigned to %s", i, c)
				}
				if !noData[i] && c == types.NoData {
					t.Errorf("valid pixel %d marked no-data", i)
				}
				if !c.Published() {
					t.Errorf("pixel %d left as %s", i, c)
				}
				if res.Cloud[i] < 0 || res.Cloud[i] > 1 || math.IsNaN(float64(res.Cloud[i])) {
					t.Errorf("cloud confidence %v at %d", res.Cloud[i], i)
				}
				if res.Snow[i] < 0 || res.Snow[i] > 1 || math.IsNaN(float64(res.Snow[i])) {
					t.Errorf("snow confidence %v at %d", res.Snow[i], i)
				}
			}
			for _, id := range []types.BandID{types.SCL, types.SNW, types.CLD} {
				r, ok := src.stored[id]
				if !ok || r.Type != types.Uint8 || r.Rows != 16 {
					t.Errorf("%s not stored as 16x16 uint8", id)
				}
			}
		})
	}
}

func TestAllNoData(t *testing.T) {
	src := newFakeSource(3, 3)
	src.fill(spectrum(map[types.BandID]float32{types.B04: 0}))
	res, err := New(src, DefaultThresholds(), Options{Resolution: types.R20}, 3, 3, zap.NewNop().Sugar()).
		Process(context.Background())
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
	for i, c := range res.Mask {
		if c != types.NoData {
			t.Errorf("pixel %d = %s", i, c)
		}
	}
	if src.stored[types.SCL] == nil {
		t.Errorf("neutral mask not stored")
	}
}

func TestMissingBandFailsRun(t *testing.T) {
	src := newFakeSource(2, 2)
	src.fill(spectrum(nil))
	delete(src.bands, types.B12)
	_, err := New(src, DefaultThresholds(), Options{Resolution: types.R60}, 2, 2, zap.NewNop().Sugar()).
		Process(context.Background())
	if err == nil {
		t.Fatal("missing band not reported")
	}
}

func TestRamp(t *testing.T) {
	tests := []struct {
		v, t1, t2, want float32
	}{
		{0, 0.1, 0.2, 0},
		{0.1, 0.1, 0.2, 0},
		{0.15, 0.1, 0.2, 0.5},
		{0.2, 0.1, 0.2, 1},
		{5, 0.1, 0.2, 1},
		{-0.2, -0.24, -0.16, 0.5},
	}
	for _, tt := range tests {
		if got := ramp(tt.v, tt.t1, tt.t2); math.Abs(float64(got-tt.want)) > 1e-6 {
			t.Errorf("ramp(%v, %v, %v) = %v, want %v", tt.v, tt.t1, tt.t2, got, tt.want)
		}
	}
	if got := ratio(1, 0); got != 1/lowest {
		t.Errorf("ratio with zero denominator = %v", got)
	}
}

func TestShadowPassNeedsSunAngle(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		shadow bool
		warned bool
	}{
		{"sun up", Options{SolarZenith: 40, SolarAzimuth: 150}, true, false},
		{"zenith unknown", Options{}, false, true},
		{"sun below horizon", Options{SolarZenith: 95}, false, true},
		{"test mode", Options{SolarZenith: 40, TestMode: true}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			e := New(newFakeSource(2, 2), DefaultThresholds(), tt.opts, 2, 2, zap.New(core).Sugar())
			var shadow bool
			for _, p := range e.plan(context.Background()) {
				if p.name == "cloud shadow" {
					shadow = true
				}
			}
			if shadow != tt.shadow {
				t.Errorf("cloud shadow planned = %v, want %v", shadow, tt.shadow)
			}
			if warned := logs.Len() > 0; warned != tt.warned {
				t.Errorf("warning logged = %v, want %v", warned, tt.warned)
			}
		})
	}
}

func TestWaterRatioAttenuatesAssignedPixels(t *testing.T) {
	src := newFakeSource(1, 2)
	// B02/B11 = 3 lies between T21 and T22, the attenuation factor is 0.5.
	src.fill(map[types.BandID]float32{
		types.B02: 0.15, types.B04: 0.14, types.B8A: 0.05, types.B11: 0.05, types.B12: 0.05,
	})
	e := New(src, DefaultThresholds(), Options{}, 1, 2, zap.NewNop().Sugar())
	e.cm[1] = types.SnowIce
	e.cloud[0], e.cloud[1] = 0.8, 0.8
	if err := e.water(context.Background()); err != nil {
		t.Fatal(err)
	}
	for i, c := range []types.Class{types.NotClassified, types.SnowIce} {
		if e.cm[i] != c {
			t.Errorf("class[%d] = %s, want %s", i, e.cm[i], c)
		}
		if math.Abs(float64(e.cloud[i])-0.4) > 1e-5 {
			t.Errorf("cloud[%d] = %v, want 0.4", i, e.cloud[i])
		}
	}
}
