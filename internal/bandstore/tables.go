package bandstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chrissnell/remotesensing/internal/codec"
	"github.com/chrissnell/remotesensing/internal/geo"
	"github.com/chrissnell/remotesensing/internal/resample"
	"github.com/chrissnell/remotesensing/internal/types"
)

// Tables is the band store of one tile at one resolution. Reflectance bands
// live in the img store at their delivered values; every other band lives in
// the res store, which also holds resampled copies and temporaries.
type Tables struct {
	tile       *Tile
	resolution types.Resolution
	testMode   bool
	dnScale    float32
	logger     *zap.SugaredLogger

	img *Store
	res *Store

	resamples atomic.Int64
}

// Resolution returns the grid spacing served by t.
func (t *Tables) Resolution() types.Resolution {
	return t.resolution
}

// Extent returns the per-side pixel count every band of t has.
func (t *Tables) Extent() int {
	return t.resolution.Extent(t.testMode)
}

// DNScale returns the divisor applied to reflectance bands by Get.
func (t *Tables) DNScale() float32 {
	return t.dnScale
}

// Resamples returns how many bands t has derived from another resolution.
func (t *Tables) Resamples() int64 {
	return t.resamples.Load()
}

func (t *Tables) primary(id types.BandID) *Store {
	if id.IsReflectance() {
		return t.img
	}
	return t.res
}

// Get returns id at t's resolution. Reflectance bands are divided by the DN
// scale and returned as float32; other bands are returned unscaled. A band
// missing here is resampled from another resolution of the same tile and the
// result persisted, so repeated calls do not resample again.
func (t *Tables) Get(ctx context.Context, id types.BandID) (*types.Band, error) {
	b, err := t.Raw(ctx, id)
	if err != nil {
		return nil, err
	}
	if id.IsReflectance() {
		return t.scale(b), nil
	}
	return b, nil
}

// Raw is Get without reflectance scaling.
func (t *Tables) Raw(ctx context.Context, id types.BandID) (*types.Band, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("get band %d: invalid band id", int(id))
	}
	n := t.Extent()

	var sources []*types.Band
	b, err := t.primary(id).Read(ctx, AreaArrays, id)
	switch {
	case err == nil && b.Rows == n && b.Cols == n:
		return b, nil
	case err == nil:
		sources = append(sources, b)
	case !IsNotFound(err):
		return nil, err
	}

	b, err = t.res.Read(ctx, AreaResampled, id)
	switch {
	case err == nil && b.Rows == n && b.Cols == n:
		return b, nil
	case err != nil && !IsNotFound(err):
		return nil, err
	}

	for _, r := range types.Ladder {
		if r == t.resolution {
			continue
		}
		peer, err := t.tile.peer(ctx, r)
		if err != nil {
			return nil, err
		}
		if peer == nil {
			continue
		}
		b, err := peer.primary(id).Read(ctx, AreaArrays, id)
		if err == nil {
			sources = append(sources, b)
			continue
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}

	for _, src := range sources {
		out, err := resample.Band(src, t.resolution, n, n)
		if errors.Is(err, resample.ErrRatio) {
			t.logger.Debugf("cannot derive %s at %s from %dx%d: %v", id, t.resolution, src.Rows, src.Cols, err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resample %s to %s: %w", id, t.resolution, err)
		}
		t.resamples.Add(1)
		t.logger.Debugf("resampled %s from %s to %s", id, src.Resolution, t.resolution)
		if err := t.res.Write(ctx, AreaResampled, out); err != nil {
			return nil, fmt.Errorf("persist resampled %s: %w", id, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s at %s of tile %s", ErrNotFound, id, t.resolution, t.tile.ID)
}

func (t *Tables) scale(b *types.Band) *types.Band {
	out := types.NewRaster(b.Rows, b.Cols, types.Float32)
	for i, v := range b.Data {
		out.Data[i] = v / t.dnScale
	}
	return &types.Band{ID: b.ID, Resolution: b.Resolution, Raster: out}
}

// Set stores r as id at t's resolution. Stale resampled copies of id at any
// resolution are dropped.
func (t *Tables) Set(ctx context.Context, id types.BandID, r *types.Raster) error {
	if !id.Valid() {
		return fmt.Errorf("set band %d: invalid band id", int(id))
	}
	if n := t.Extent(); r.Rows != n || r.Cols != n {
		return fmt.Errorf("set %s at %s: extent %dx%d, want %dx%d", id, t.resolution, r.Rows, r.Cols, n, n)
	}
	if err := t.primary(id).Write(ctx, AreaArrays, &types.Band{ID: id, Resolution: t.resolution, Raster: r}); err != nil {
		return err
	}
	return t.dropResampled(ctx, id)
}

func (t *Tables) dropResampled(ctx context.Context, id types.BandID) error {
	err := t.res.Remove(ctx, AreaResampled, id)
	for _, r := range types.Ladder {
		if r == t.resolution {
			continue
		}
		peer, perr := t.tile.peer(ctx, r)
		if perr != nil {
			err = multierr.Append(err, perr)
			continue
		}
		if peer != nil {
			err = multierr.Append(err, peer.res.Remove(ctx, AreaResampled, id))
		}
	}
	return err
}

// Has reports whether id is stored at t's resolution, natively or resampled.
func (t *Tables) Has(ctx context.Context, id types.BandID) bool {
	return t.primary(id).Has(ctx, AreaArrays, id) || t.res.Has(ctx, AreaResampled, id)
}

// HasAt reports whether the tile holds id at res.
func (t *Tables) HasAt(ctx context.Context, id types.BandID, res types.Resolution) bool {
	if res == t.resolution {
		return t.Has(ctx, id)
	}
	peer, err := t.tile.peer(ctx, res)
	if err != nil || peer == nil {
		return false
	}
	return peer.Has(ctx, id)
}

// Remove deletes id and its resampled copy at t's resolution.
func (t *Tables) Remove(ctx context.Context, id types.BandID) error {
	return multierr.Combine(
		t.primary(id).Remove(ctx, AreaArrays, id),
		t.res.Remove(ctx, AreaResampled, id),
	)
}

// RemoveAll empties both stores of t, temporaries included.
func (t *Tables) RemoveAll(ctx context.Context) error {
	return multierr.Combine(
		t.img.RemoveArea(ctx, AreaArrays),
		t.res.RemoveArea(ctx, AreaArrays),
		t.res.RemoveArea(ctx, AreaResampled),
		t.res.RemoveArea(ctx, AreaTmp),
	)
}

// GetTmp returns an intermediate stored with SetTmp. Values are unscaled.
func (t *Tables) GetTmp(ctx context.Context, id types.BandID) (*types.Band, error) {
	return t.res.Read(ctx, AreaTmp, id)
}

// SetTmp stores an intermediate. Temporaries may have any extent.
func (t *Tables) SetTmp(ctx context.Context, id types.BandID, r *types.Raster) error {
	return t.res.Write(ctx, AreaTmp, &types.Band{ID: id, Resolution: t.resolution, Raster: r})
}

// RemoveTmp deletes one intermediate.
func (t *Tables) RemoveTmp(ctx context.Context, id types.BandID) error {
	return t.res.Remove(ctx, AreaTmp, id)
}

// ClearTmp deletes every intermediate.
func (t *Tables) ClearTmp(ctx context.Context) error {
	return t.res.RemoveArea(ctx, AreaTmp)
}

// ImportFromSource decodes a single-band raster file and stores it as id at
// t's resolution. In test mode the raster is cut to the test window first.
// An all-zero raster is stored and logged.
func (t *Tables) ImportFromSource(ctx context.Context, id types.BandID, path string) error {
	r, err := codec.Decode(path)
	if err != nil {
		return fmt.Errorf("import %s from %s: %w", id, path, err)
	}
	if t.testMode {
		w := t.resolution.TestWindow()
		r = r.Window(w, w)
	}
	if n := t.Extent(); r.Rows != n || r.Cols != n {
		return fmt.Errorf("import %s from %s: extent %dx%d does not match %s tile extent %d", id, path, r.Rows, r.Cols, t.resolution, n)
	}
	if r.AllZero() {
		t.logger.Warnf("band %s of tile %s at %s contains only no-data", id, t.tile.ID, t.resolution)
	}
	if err := t.Set(ctx, id, r); err != nil {
		return fmt.Errorf("import %s from %s: %w", id, path, err)
	}
	t.logger.Debugf("imported %s at %s from %s", id, t.resolution, path)
	return nil
}

// ExportToSource encodes the unscaled id band to path. The format follows the
// file extension; g places the raster on the ground.
func (t *Tables) ExportToSource(ctx context.Context, id types.BandID, path string, g geo.Context) error {
	b, err := t.Raw(ctx, id)
	if err != nil {
		return fmt.Errorf("export %s: %w", id, err)
	}
	return t.export(b.Raster, path, g)
}

// ExportTmp encodes an intermediate to path.
func (t *Tables) ExportTmp(ctx context.Context, id types.BandID, path string, g geo.Context) error {
	b, err := t.GetTmp(ctx, id)
	if err != nil {
		return fmt.Errorf("export tmp %s: %w", id, err)
	}
	return t.export(b.Raster, path, g)
}

func (t *Tables) export(r *types.Raster, path string, g geo.Context) error {
	if g.Valid() {
		g = g.At(t.resolution, r.Rows, r.Cols)
	}
	if err := codec.Encode(path, r, codec.Options{Resolution: t.resolution, Geo: g}); err != nil {
		return fmt.Errorf("export to %s: %w", path, err)
	}
	return nil
}

// Probe checks both stores with a known reflectance band.
func (t *Tables) Probe(ctx context.Context) {
	t.img.Probe(ctx, types.B02)
	t.res.Probe(ctx, types.SCL)
}

func (t *Tables) close() error {
	return multierr.Combine(t.img.Close(), t.res.Close())
}
