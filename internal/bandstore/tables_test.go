package bandstore

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/chrissnell/remotesensing/internal/codec"
	"github.com/chrissnell/remotesensing/internal/geo"
	"github.com/chrissnell/remotesensing/internal/types"
)

func testTile(t *testing.T, dir string) *Tile {
	t.Helper()
	tile := NewTile(dir, "T32TMR", TileOptions{TestMode: true, DNScale: 10000, Store: Options{CacheSize: 8}}, zap.NewNop().Sugar())
	t.Cleanup(func() { tile.Close() })
	return tile
}

func tables(t *testing.T, tile *Tile, res types.Resolution) *Tables {
	t.Helper()
	tb, err := tile.Tables(context.Background(), res)
	if err != nil {
		t.Fatal(err)
	}
	return tb
}

func constRaster(n int, dt types.DataType, v float32) *types.Raster {
	r := types.NewRaster(n, n, dt)
	for i := range r.Data {
		r.Data[i] = v
	}
	return r
}

func TestTablesReflectanceScaling(t *testing.T) {
	ctx := context.Background()
	tb := tables(t, testTile(t, t.TempDir()), types.R20)
	n := tb.Extent()
	if n != 549 {
		t.Fatalf("test-mode extent = %d, want 549", n)
	}
	if err := tb.Set(ctx, types.B02, constRaster(n, types.Uint16, 5000)); err != nil {
		t.Fatal(err)
	}
	if err := tb.Set(ctx, types.SCL, constRaster(n, types.Uint8, 4)); err != nil {
		t.Fatal(err)
	}

	b02, err := tb.Get(ctx, types.B02)
	if err != nil {
		t.Fatal(err)
	}
	if b02.Type != types.Float32 || math.Abs(float64(b02.Data[0])-0.5) > 1e-6 {
		t.Errorf("B02 = %v %s, want 0.5 float32", b02.Data[0], b02.Type)
	}
	scl, err := tb.Get(ctx, types.SCL)
	if err != nil {
		t.Fatal(err)
	}
	if scl.Type != types.Uint8 || scl.Data[0] != 4 {
		t.Errorf("SCL = %v %s, want unscaled 4", scl.Data[0], scl.Type)
	}
	if !tb.Has(ctx, types.B02) || tb.Has(ctx, types.B03) {
		t.Errorf("Has disagrees with stored bands")
	}
}

func TestTablesSetRejectsExtent(t *testing.T) {
	tb := tables(t, testTile(t, t.TempDir()), types.R60)
	if err := tb.Set(context.Background(), types.B01, constRaster(10, types.Uint16, 1)); err == nil {
		t.Error("raster of the wrong extent accepted")
	}
}

func TestTablesNotFound(t *testing.T) {
	tb := tables(t, testTile(t, t.TempDir()), types.R20)
	if _, err := tb.Get(context.Background(), types.AOT); !IsNotFound(err) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTablesResampleOnceAndPersist(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tile := testTile(t, dir)
	t20 := tables(t, tile, types.R20)
	t60 := tables(t, tile, types.R60)

	src := types.NewRaster(t20.Extent(), t20.Extent(), types.Uint16)
	for y := 0; y < src.Rows; y++ {
		for x := 0; x < src.Cols; x++ {
			src.Set(y, x, float32((y/3)*10+(x%3)))
		}
	}
	if err := t20.Set(ctx, types.B05, src); err != nil {
		t.Fatal(err)
	}

	first, err := t60.Get(ctx, types.B05)
	if err != nil {
		t.Fatal(err)
	}
	second, err := t60.Get(ctx, types.B05)
	if err != nil {
		t.Fatal(err)
	}
	if t60.Resamples() != 1 {
		t.Errorf("resampled %d times, want 1", t60.Resamples())
	}
	if first.Rows != 183 || first.Cols != 183 || first.Resolution != types.R60 {
		t.Fatalf("got %s", first)
	}
	for i := range first.Data {
		if math.Float32bits(first.Data[i]) != math.Float32bits(second.Data[i]) {
			t.Fatalf("repeated Get differs at %d", i)
		}
	}
	// block means of (row/3)*10 + {0,1,2} are (row*10 + 1) DN
	if got, want := first.Data[2*183], float32(21)/10000; math.Abs(float64(got-want)) > 1e-7 {
		t.Errorf("row 2 mean = %v, want %v", got, want)
	}

	// a fresh process finds the persisted copy
	if err := tile.Close(); err != nil {
		t.Fatal(err)
	}
	reopened := tables(t, testTile(t, dir), types.R60)
	if _, err := reopened.Get(ctx, types.B05); err != nil {
		t.Fatal(err)
	}
	if reopened.Resamples() != 0 {
		t.Errorf("reopened tables resampled again")
	}
}

func TestTablesSetDropsStaleResample(t *testing.T) {
	ctx := context.Background()
	tile := testTile(t, t.TempDir())
	t20 := tables(t, tile, types.R20)
	t60 := tables(t, tile, types.R60)

	if err := t20.Set(ctx, types.AOT, constRaster(t20.Extent(), types.Uint16, 100)); err != nil {
		t.Fatal(err)
	}
	if _, err := t60.Get(ctx, types.AOT); err != nil {
		t.Fatal(err)
	}
	if err := t20.Set(ctx, types.AOT, constRaster(t20.Extent(), types.Uint16, 250)); err != nil {
		t.Fatal(err)
	}
	got, err := t60.Get(ctx, types.AOT)
	if err != nil {
		t.Fatal(err)
	}
	if got.Data[0] != 250 {
		t.Errorf("AOT at 60m = %v, want 250", got.Data[0])
	}
	if t60.Resamples() != 2 {
		t.Errorf("resampled %d times, want 2", t60.Resamples())
	}
}

func TestTablesUpsampleCategorical(t *testing.T) {
	ctx := context.Background()
	tile := testTile(t, t.TempDir())
	t20 := tables(t, tile, types.R20)
	t10 := tables(t, tile, types.R10)

	scl := constRaster(t20.Extent(), types.Uint8, float32(types.Water))
	scl.Set(0, 0, float32(types.Vegetation))
	if err := t20.Set(ctx, types.SCL, scl); err != nil {
		t.Fatal(err)
	}
	got, err := t10.Get(ctx, types.SCL)
	if err != nil {
		t.Fatal(err)
	}
	if got.Rows != 1098 || got.Type != types.Uint8 {
		t.Fatalf("got %s", got)
	}
	for _, rc := range [][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}} {
		if got.At(rc[0], rc[1]) != float32(types.Vegetation) {
			t.Errorf("pixel %v = %v, want vegetation", rc, got.At(rc[0], rc[1]))
		}
	}
	if got.At(0, 2) != float32(types.Water) {
		t.Errorf("pixel (0,2) = %v, want water", got.At(0, 2))
	}
	if !t10.HasAt(ctx, types.SCL, types.R20) {
		t.Errorf("HasAt does not see the 20m mask")
	}
}

func TestTablesTmpArea(t *testing.T) {
	ctx := context.Background()
	tb := tables(t, testTile(t, t.TempDir()), types.R20)
	if err := tb.SetTmp(ctx, types.TCI, constRaster(5, types.Uint8, 7)); err != nil {
		t.Fatal(err)
	}
	got, err := tb.GetTmp(ctx, types.TCI)
	if err != nil {
		t.Fatal(err)
	}
	if got.Rows != 5 || got.Data[0] != 7 {
		t.Errorf("tmp band = %s", got)
	}
	if tb.Has(ctx, types.TCI) {
		t.Errorf("temporaries leak into Has")
	}
	if err := tb.ClearTmp(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := tb.GetTmp(ctx, types.TCI); !IsNotFound(err) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestImportExportSource(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tb := tables(t, testTile(t, filepath.Join(dir, "stores")), types.R60)

	// a full tile cut to the test window on import
	full := types.NewRaster(types.R60.TileSize(), types.R60.TileSize(), types.Uint16)
	for i := range full.Data {
		full.Data[i] = float32(i % 1000)
	}
	src := filepath.Join(dir, "B01.img")
	if err := codec.Encode(src, full, codec.Options{}); err != nil {
		t.Fatal(err)
	}
	if err := tb.ImportFromSource(ctx, types.B01, src); err != nil {
		t.Fatal(err)
	}
	raw, err := tb.Raw(ctx, types.B01)
	if err != nil {
		t.Fatal(err)
	}
	if raw.Rows != 183 || raw.At(1, 0) != float32((1830)%1000) {
		t.Errorf("imported %s, pixel (1,0) = %v", raw, raw.At(1, 0))
	}

	out := filepath.Join(dir, "out", "B01.tif")
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := tb.ExportToSource(ctx, types.B01, out, geo.Context{}); err != nil {
		t.Fatal(err)
	}
	back, err := codec.Decode(out)
	if err != nil {
		t.Fatal(err)
	}
	for i := range back.Data {
		if back.Data[i] != raw.Data[i] {
			t.Fatalf("exported sample %d = %v, want %v", i, back.Data[i], raw.Data[i])
		}
	}
}
