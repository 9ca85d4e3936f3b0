package terrain

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/remotesensing/internal/codec"
	"github.com/chrissnell/remotesensing/internal/types"
)

func plane(rows, cols int, perCol, perRow float32) *types.Raster {
	r := types.NewRaster(rows, cols, types.Float32)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r.Set(y, x, 500+float32(x)*perCol+float32(y)*perRow)
		}
	}
	return r
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name   string
		dem    *types.Raster
		slope  float32
		aspect float32
	}{
		{"flat", plane(5, 5, 0, 0), 0, 0},
		{"rising east faces west", plane(5, 5, 20, 0), 45, 270},
		{"rising south faces north", plane(5, 5, 0, 20), 45, 0},
		{"rising north faces south", plane(5, 5, 0, -20), 45, 180},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Derive(tt.dem, 20, 30, 180)
			if got := l.Slope.At(2, 2); got != tt.slope {
				t.Errorf("slope = %v, want %v", got, tt.slope)
			}
			if got := l.Aspect.At(2, 2); got != tt.aspect {
				t.Errorf("aspect = %v, want %v", got, tt.aspect)
			}
			if l.DEM.Type != types.Int16 || l.DEM.At(0, 0) != 500 {
				t.Errorf("DEM = %v %s", l.DEM.At(0, 0), l.DEM.Type)
			}
		})
	}
}

func TestDeriveHillShade(t *testing.T) {
	flat := Derive(plane(3, 3, 0, 0), 20, 30, 135)
	want := float32(math.Round(1 + 254*math.Sin(60*math.Pi/180)))
	if got := flat.Shadow.At(1, 1); got != want {
		t.Errorf("flat hill shade = %v, want %v", got, want)
	}
	// sun in the south, slope facing north is darker than slope facing south
	north := Derive(plane(5, 5, 0, 20), 20, 30, 180).Shadow.At(2, 2)
	south := Derive(plane(5, 5, 0, -20), 20, 30, 180).Shadow.At(2, 2)
	if north >= south {
		t.Errorf("north-facing shade %v not darker than south-facing %v", north, south)
	}
	for _, v := range flat.Shadow.Data {
		if v < 1 || v > 255 {
			t.Fatalf("hill shade %v outside 1..255", v)
		}
	}
}

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dem.img")
	if err := codec.Encode(path, plane(8, 8, 10, 0).Cast(types.Int16), codec.Options{}); err != nil {
		t.Fatal(err)
	}
	l, err := FileProvider{}.Layers(context.Background(), Request{TileID: "T1", Resolution: types.R20, Rows: 4, Cols: 4, DEMPath: path, SolarZenith: 40})
	if err != nil {
		t.Fatal(err)
	}
	if l.DEM.Rows != 4 || l.Slope.Cols != 4 {
		t.Errorf("layers not fitted to 4x4: %dx%d", l.DEM.Rows, l.Slope.Cols)
	}

	if _, err := (FileProvider{}).Layers(context.Background(), Request{TileID: "T1", Resolution: types.R20, Rows: 4, Cols: 4}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable without DEM path", err)
	}
}

func TestGDALDEMMissingBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dem.img")
	if err := codec.Encode(path, plane(4, 4, 1, 1).Cast(types.Int16), codec.Options{}); err != nil {
		t.Fatal(err)
	}
	g := GDALDEM{Binary: filepath.Join(t.TempDir(), "no-such-gdaldem"), Timeout: time.Second, WorkDir: t.TempDir()}
	_, err := g.Layers(context.Background(), Request{TileID: "T1", Resolution: types.R60, Rows: 4, Cols: 4, DEMPath: path})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestChain(t *testing.T) {
	var calls int
	failing := ProviderFunc(func(context.Context, Request) (*Layers, error) {
		calls++
		return nil, errors.New("tool crashed")
	})
	ok := ProviderFunc(func(context.Context, Request) (*Layers, error) {
		calls++
		return &Layers{}, nil
	})
	logger := zap.NewNop().Sugar()

	if _, err := Chain(logger, failing, ok).Layers(context.Background(), Request{}); err != nil {
		t.Errorf("chain with a working provider failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if _, err := Chain(logger, failing, Unavailable).Layers(context.Background(), Request{}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if _, err := Chain(logger, failing).Layers(context.Background(), Request{}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("plain failure not mapped to ErrUnavailable: %v", err)
	}
}
