package bandstore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/chrissnell/remotesensing/internal/types"
)

func testStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "20m_res.db"), types.R20, opts, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func rampBand(id types.BandID, rows, cols int, dt types.DataType) *types.Band {
	r := types.NewRaster(rows, cols, dt)
	for i := range r.Data {
		r.Data[i] = float32(i % 251)
	}
	return &types.Band{ID: id, Resolution: types.R20, Raster: r}
}

func TestStoreRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		dt   types.DataType
	}{
		{"uint16 one chunk", Options{CacheSize: 4}, types.Uint16},
		{"uint8 many chunks", Options{ChunkRows: 2}, types.Uint8},
		{"float32 uncached", Options{ChunkRows: 3}, types.Float32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := testStore(t, tt.opts)
			want := rampBand(types.B05, 7, 5, tt.dt)
			if err := s.Write(ctx, AreaArrays, want); err != nil {
				t.Fatal(err)
			}
			got, err := s.Read(ctx, AreaArrays, types.B05)
			if err != nil {
				t.Fatal(err)
			}
			if got.Rows != 7 || got.Cols != 5 || got.Type != tt.dt || got.Resolution != types.R20 {
				t.Fatalf("got %s", got)
			}
			for i := range want.Data {
				if got.Data[i] != want.Data[i] {
					t.Fatalf("sample %d: got %v, want %v", i, got.Data[i], want.Data[i])
				}
			}
			// returned bands are copies
			got.Data[0] = 99
			again, err := s.Read(ctx, AreaArrays, types.B05)
			if err != nil {
				t.Fatal(err)
			}
			if again.Data[0] != want.Data[0] {
				t.Errorf("cached band was mutated through a returned copy")
			}
		})
	}
}

func TestStoreMissingMetadata(t *testing.T) {
	s := testStore(t, Options{})
	_, err := s.Read(context.Background(), AreaArrays, types.B11)
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if IsCorrupt(err) {
		t.Errorf("missing band reported as corrupt")
	}
}

func TestStoreAreasAndRemove(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, Options{CacheSize: 8})
	for _, area := range []Area{AreaArrays, AreaResampled, AreaTmp} {
		if err := s.Write(ctx, area, rampBand(types.SCL, 3, 3, types.Uint8)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Write(ctx, AreaArrays, rampBand(types.CLD, 3, 3, types.Uint8)); err != nil {
		t.Fatal(err)
	}

	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("listed %d bands, want 4", len(all))
	}
	for _, info := range all {
		if info.Rows != 3 || info.Cols != 3 || info.Count != 1 || info.Type != types.Uint8 {
			t.Errorf("unexpected metadata %+v", info)
		}
	}

	if err := s.RemoveArea(ctx, AreaArrays); err != nil {
		t.Fatal(err)
	}
	if s.Has(ctx, AreaArrays, types.SCL) || s.Has(ctx, AreaArrays, types.CLD) {
		t.Errorf("arrays area not emptied")
	}
	if !s.Has(ctx, AreaResampled, types.SCL) || !s.Has(ctx, AreaTmp, types.SCL) {
		t.Errorf("other areas affected by RemoveArea")
	}
	if err := s.Remove(ctx, AreaTmp, types.SCL); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read(ctx, AreaTmp, types.SCL); !IsNotFound(err) {
		t.Errorf("err = %v, want ErrNotFound after Remove", err)
	}
	if err := s.Remove(ctx, AreaTmp, types.SCL); err != nil {
		t.Errorf("removing an absent band: %v", err)
	}
}

func TestStoreCorruptChunkReinitializes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	logger := zap.NewNop().Sugar()
	corrupt, err := Open(ctx, filepath.Join(dir, "20m_img.db"), types.R20, Options{}, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer corrupt.Close()
	companion, err := Open(ctx, filepath.Join(dir, "20m_res.db"), types.R20, Options{}, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer companion.Close()

	for _, s := range []*Store{corrupt, companion} {
		if err := s.Write(ctx, AreaArrays, rampBand(types.B02, 4, 4, types.Uint16)); err != nil {
			t.Fatal(err)
		}
	}

	db, err := sql.Open("sqlite", corrupt.Path())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("UPDATE chunks SET data = x'00010203'"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if corrupt.Probe(ctx, types.B02) {
		t.Fatal("probe passed on a corrupt store")
	}
	if _, err := corrupt.Read(ctx, AreaArrays, types.B02); !IsNotFound(err) {
		t.Errorf("err = %v, want ErrNotFound after reinit", err)
	}
	if err := corrupt.Write(ctx, AreaArrays, rampBand(types.B03, 2, 2, types.Uint16)); err != nil {
		t.Errorf("store unusable after reinit: %v", err)
	}
	if _, err := companion.Read(ctx, AreaArrays, types.B02); err != nil {
		t.Errorf("companion store lost its band: %v", err)
	}
}

func TestOpenReplacesGarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "60m_img.db")
	if err := os.WriteFile(path, []byte("this is not a database file at all, not even close"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(context.Background(), path, types.R60, Options{}, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	infos, err := s.List(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 0 {
		t.Errorf("reinitialized store lists %d bands", len(infos))
	}
}

func TestStoreRejectsBadRaster(t *testing.T) {
	s := testStore(t, Options{})
	b := rampBand(types.B02, 2, 2, types.Uint16)
	b.Data = b.Data[:3]
	if err := s.Write(context.Background(), AreaArrays, b); err == nil {
		t.Error("short raster accepted")
	}
}
