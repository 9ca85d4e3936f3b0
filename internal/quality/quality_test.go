package quality

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/chrissnell/remotesensing/internal/types"
)

const epsilon = 1e-9

func TestCompute(t *testing.T) {
	mask := []types.Class{
		types.NoData, types.NoData,
		types.Vegetation, types.Vegetation, types.Vegetation,
		types.Water,
		types.CloudMediumProba, types.CloudHighProba,
	}
	q := Compute(mask)
	tests := []struct {
		name      string
		got, want float64
	}{
		{"nodata", q.NoData, 25},
		{"vegetation", q.Vegetation, 50},
		{"water", q.Water, 100.0 / 6},
		{"medium", q.MediumProba, 100.0 / 6},
		{"cloud", q.Cloud, 200.0 / 6},
		{"total", q.Total(), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.got-tt.want) > epsilon {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestComputeAllNoData(t *testing.T) {
	q := Compute([]types.Class{types.NoData, types.NoData})
	if q.NoData != 100 || q.Total() != 0 {
		t.Errorf("all no-data mask gives %+v", q)
	}
}

func TestTileReportRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := TilePath(t.TempDir(), "T32TMR")
	if filepath.Base(path) != "T32TMR_QI.yaml" {
		t.Fatalf("path = %s", path)
	}
	in := TileReport{Tile: "T32TMR", Resolution: 20, Indicators: Compute([]types.Class{types.Water, types.SnowIce})}
	if err := WriteTile(ctx, path, in); err != nil {
		t.Fatal(err)
	}
	out, err := ReadTile(path)
	if err != nil {
		t.Fatal(err)
	}
	if out.Tile != in.Tile || out.Indicators.Snow != 50 {
		t.Errorf("read back %+v", out)
	}
}

func TestUpdateUserRunningAverage(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "user", "L2A_QUALITY.yaml")
	for _, water := range []float64{10, 20, 60} {
		if _, err := UpdateUser(ctx, path, Indicators{Water: water}); err != nil {
			t.Fatal(err)
		}
	}
	var u UserReport
	if err := readYAML(path, &u); err != nil {
		t.Fatal(err)
	}
	if u.Tiles != 3 || math.Abs(u.Indicators.Water-30) > epsilon {
		t.Errorf("after three tiles: %+v", u)
	}
}

func TestUpdateUserConcurrent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "L2A_QUALITY.yaml")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := UpdateUser(ctx, path, Indicators{Cloud: 40}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	var u UserReport
	if err := readYAML(path, &u); err != nil {
		t.Fatal(err)
	}
	if u.Tiles != 8 || math.Abs(u.Indicators.Cloud-40) > epsilon {
		t.Errorf("lost updates: %+v", u)
	}
}
