// Package bandstore persists tile bands in compressed SQLite array files and
// derives missing resolutions on demand.
package bandstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/remotesensing/internal/filelock"
	"github.com/chrissnell/remotesensing/internal/types"
)

// Area partitions the bands held in one store file.
type Area string

const (
	// AreaArrays holds bands at the store's own resolution as written or
	// imported.
	AreaArrays Area = "arrays"
	// AreaResampled holds bands derived from another resolution.
	AreaResampled Area = "resampled"
	// AreaTmp holds intermediates of multi-step computations.
	AreaTmp Area = "tmp"
)

const schema = `
CREATE TABLE IF NOT EXISTS metadata (
	area       TEXT    NOT NULL,
	band       TEXT    NOT NULL,
	resolution INTEGER NOT NULL,
	dtype      TEXT    NOT NULL,
	nrows      INTEGER NOT NULL,
	ncols      INTEGER NOT NULL,
	count      INTEGER NOT NULL,
	PRIMARY KEY (area, band)
);
CREATE TABLE IF NOT EXISTS chunks (
	area  TEXT    NOT NULL,
	band  TEXT    NOT NULL,
	seq   INTEGER NOT NULL,
	nrows INTEGER NOT NULL,
	data  BLOB    NOT NULL,
	PRIMARY KEY (area, band, seq)
);
`

// Options tune a store.
type Options struct {
	// CompressionLevel is a zstd level between 1 and 22.
	CompressionLevel int
	// CacheSize is the number of decoded bands kept in memory. Zero disables
	// the cache.
	CacheSize int
	// ChunkRows is the number of raster rows per compressed blob.
	ChunkRows int
}

// DefaultOptions are used for zero fields.
var DefaultOptions = Options{CompressionLevel: 3, CacheSize: 16, ChunkRows: 256}

func (o Options) withDefaults() Options {
	if o.CompressionLevel <= 0 {
		o.CompressionLevel = DefaultOptions.CompressionLevel
	}
	if o.ChunkRows <= 0 {
		o.ChunkRows = DefaultOptions.ChunkRows
	}
	if o.CacheSize < 0 {
		o.CacheSize = 0
	}
	return o
}

// Info describes one persisted band.
type Info struct {
	Area       Area
	Band       types.BandID
	Resolution types.Resolution
	Type       types.DataType
	Rows       int
	Cols       int
	Count      int
}

type cacheKey struct {
	area Area
	band types.BandID
}

// Store is one array database file. All bands in it share a resolution.
type Store struct {
	path       string
	resolution types.Resolution
	opts       Options
	logger     *zap.SugaredLogger

	db    *sql.DB
	enc   *zstd.Encoder
	dec   *zstd.Decoder
	cache *lru.Cache[cacheKey, *types.Band]
}

// Open opens or creates the store at path. A file that cannot be opened as a
// store is replaced with an empty one.
func Open(ctx context.Context, path string, res types.Resolution, opts Options, logger *zap.SugaredLogger) (*Store, error) {
	opts = opts.withDefaults()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.CompressionLevel)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	s := &Store{
		path:       path,
		resolution: res,
		opts:       opts,
		logger:     logger,
		enc:        enc,
		dec:        dec,
	}
	if opts.CacheSize > 0 {
		s.cache, err = lru.New[cacheKey, *types.Band](opts.CacheSize)
		if err != nil {
			s.closeCodecs()
			return nil, fmt.Errorf("failed to create band cache: %w", err)
		}
	}

	release, err := filelock.Acquire(ctx, path)
	if err != nil {
		s.closeCodecs()
		return nil, err
	}
	defer release()

	if err := s.openDB(); err != nil {
		s.logger.Warnf("band store %s unusable (%v), reinitializing", path, err)
		if err := s.resetLocked(); err != nil {
			s.closeCodecs()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) openDB() error {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open band store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping band store: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("failed to create band store schema: %w", err)
	}
	s.db = db
	return nil
}

// resetLocked drops the file and recreates an empty store. The caller holds
// the exclusive lock.
func (s *Store) resetLocked() error {
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	if s.cache != nil {
		s.cache.Purge()
	}
	for _, p := range []string{s.path, s.path + "-journal", s.path + "-wal", s.path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return s.openDB()
}

// Reinit discards every band in the store.
func (s *Store) Reinit(ctx context.Context) error {
	return filelock.With(ctx, s.path, func() error {
		s.logger.Warnf("reinitializing band store %s", s.path)
		return s.resetLocked()
	})
}

// Path returns the store file location.
func (s *Store) Path() string {
	return s.path
}

// Resolution returns the grid spacing of the bands in the store.
func (s *Store) Resolution() types.Resolution {
	return s.resolution
}

// Write stores b in area, replacing any previous copy. Data and metadata are
// committed in one transaction.
func (s *Store) Write(ctx context.Context, area Area, b *types.Band) error {
	if b == nil || b.Raster == nil {
		return fmt.Errorf("write %s: nil band", area)
	}
	if b.Type.Size() == 0 {
		return fmt.Errorf("write %s/%s: unsupported data type %s", area, b.ID, b.Type)
	}
	if b.Rows*b.Cols != len(b.Data) {
		return fmt.Errorf("write %s/%s: %dx%d raster holds %d samples", area, b.ID, b.Rows, b.Cols, len(b.Data))
	}

	release, err := filelock.Acquire(ctx, s.path)
	if err != nil {
		return err
	}
	defer release()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	name := b.ID.String()
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE area = ? AND band = ?", string(area), name); err != nil {
		return fmt.Errorf("failed to clear chunks of %s/%s: %w", area, name, err)
	}

	seq := 0
	for y := 0; y < b.Rows; y += s.opts.ChunkRows {
		n := s.opts.ChunkRows
		if y+n > b.Rows {
			n = b.Rows - y
		}
		raw := b.Type.Encode(b.Data[y*b.Cols : (y+n)*b.Cols])
		blob := s.enc.EncodeAll(raw, nil)
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chunks (area, band, seq, nrows, data) VALUES (?, ?, ?, ?, ?)",
			string(area), name, seq, n, blob); err != nil {
			return fmt.Errorf("failed to insert chunk %d of %s/%s: %w", seq, area, name, err)
		}
		seq++
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO metadata (area, band, resolution, dtype, nrows, ncols, count)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT (area, band) DO UPDATE SET
			resolution = excluded.resolution,
			dtype = excluded.dtype,
			nrows = excluded.nrows,
			ncols = excluded.ncols,
			count = excluded.count`,
		string(area), name, int(b.Resolution), b.Type.String(), b.Rows, b.Cols); err != nil {
		return fmt.Errorf("failed to update metadata of %s/%s: %w", area, name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s/%s: %w", area, name, err)
	}

	if s.cache != nil {
		stored := &types.Band{ID: b.ID, Resolution: b.Resolution, Raster: b.Raster.Cast(b.Type)}
		s.cache.Add(cacheKey{area, b.ID}, stored)
	}
	return nil
}

// Read returns a copy of the band. A missing metadata record yields
// ErrNotFound. An undecodable band reinitializes the store and yields both
// ErrNotFound and ErrCorrupt.
func (s *Store) Read(ctx context.Context, area Area, id types.BandID) (*types.Band, error) {
	key := cacheKey{area, id}
	if s.cache != nil {
		if b, ok := s.cache.Get(key); ok {
			return cloneBand(b), nil
		}
	}

	b, err := s.read(ctx, area, id)
	if errors.Is(err, ErrCorrupt) && ctx.Err() == nil {
		s.logger.Warnf("band %s/%s in %s is corrupt: %v", area, id, s.path, err)
		if rerr := s.Reinit(ctx); rerr != nil {
			return nil, multierr.Append(err, rerr)
		}
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Add(key, b)
	}
	return cloneBand(b), nil
}

func (s *Store) read(ctx context.Context, area Area, id types.BandID) (*types.Band, error) {
	release, err := filelock.AcquireShared(ctx, s.path)
	if err != nil {
		return nil, err
	}
	defer release()

	info, err := s.infoLocked(ctx, area, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT nrows, data FROM chunks WHERE area = ? AND band = ? ORDER BY seq", string(area), id.String())
	if err != nil {
		return nil, fmt.Errorf("%w: query chunks of %s/%s: %v", ErrCorrupt, area, id, err)
	}
	defer rows.Close()

	data := make([]float32, 0, info.Rows*info.Cols)
	for rows.Next() {
		var n int
		var blob []byte
		if err := rows.Scan(&n, &blob); err != nil {
			return nil, fmt.Errorf("%w: scan chunk of %s/%s: %v", ErrCorrupt, area, id, err)
		}
		raw, err := s.dec.DecodeAll(blob, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: decompress chunk of %s/%s: %v", ErrCorrupt, area, id, err)
		}
		values, err := info.Type.Decode(raw)
		if err != nil || len(values) != n*info.Cols {
			return nil, fmt.Errorf("%w: chunk of %s/%s has %d samples, want %d", ErrCorrupt, area, id, len(values), n*info.Cols)
		}
		data = append(data, values...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunks of %s/%s: %w", area, id, err)
	}
	if len(data) != info.Rows*info.Cols {
		return nil, fmt.Errorf("%w: %s/%s has %d samples, metadata says %dx%d", ErrCorrupt, area, id, len(data), info.Rows, info.Cols)
	}

	return &types.Band{
		ID:         id,
		Resolution: info.Resolution,
		Raster:     &types.Raster{Rows: info.Rows, Cols: info.Cols, Type: info.Type, Data: data},
	}, nil
}

func (s *Store) infoLocked(ctx context.Context, area Area, id types.BandID) (Info, error) {
	var (
		res       int
		dtype     string
		nrows     int
		ncols     int
		bandCount int
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT resolution, dtype, nrows, ncols, count FROM metadata WHERE area = ? AND band = ?",
		string(area), id.String()).Scan(&res, &dtype, &nrows, &ncols, &bandCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Info{}, fmt.Errorf("%w: %s/%s in %s", ErrNotFound, area, id, s.path)
	}
	if err != nil {
		return Info{}, fmt.Errorf("%w: metadata of %s/%s: %v", ErrCorrupt, area, id, err)
	}
	dt, err := types.ParseDataType(dtype)
	if err != nil {
		return Info{}, fmt.Errorf("%w: metadata of %s/%s: %v", ErrCorrupt, area, id, err)
	}
	return Info{
		Area:       area,
		Band:       id,
		Resolution: types.Resolution(res),
		Type:       dt,
		Rows:       nrows,
		Cols:       ncols,
		Count:      bandCount,
	}, nil
}

// Has reports whether area holds a metadata record for id.
func (s *Store) Has(ctx context.Context, area Area, id types.BandID) bool {
	if s.cache != nil && s.cache.Contains(cacheKey{area, id}) {
		return true
	}
	release, err := filelock.AcquireShared(ctx, s.path)
	if err != nil {
		return false
	}
	defer release()
	_, err = s.infoLocked(ctx, area, id)
	return err == nil
}

// Remove deletes one band. Removing an absent band is not an error.
func (s *Store) Remove(ctx context.Context, area Area, id types.BandID) error {
	return s.remove(ctx, area, &id)
}

// RemoveArea deletes every band in area.
func (s *Store) RemoveArea(ctx context.Context, area Area) error {
	return s.remove(ctx, area, nil)
}

func (s *Store) remove(ctx context.Context, area Area, id *types.BandID) error {
	return filelock.With(ctx, s.path, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		where, args := "area = ?", []any{string(area)}
		if id != nil {
			where, args = "area = ? AND band = ?", []any{string(area), id.String()}
		}
		for _, table := range []string{"chunks", "metadata"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE "+where, args...); err != nil {
				return fmt.Errorf("failed to delete from %s: %w", table, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit removal: %w", err)
		}

		if s.cache != nil {
			if id != nil {
				s.cache.Remove(cacheKey{area, *id})
			} else {
				for _, k := range s.cache.Keys() {
					if k.area == area {
						s.cache.Remove(k)
					}
				}
			}
		}
		return nil
	})
}

// List returns the metadata of every band in area, or of every band when area
// is empty.
func (s *Store) List(ctx context.Context, area Area) ([]Info, error) {
	release, err := filelock.AcquireShared(ctx, s.path)
	if err != nil {
		return nil, err
	}
	defer release()

	query := "SELECT area, band, resolution, dtype, nrows, ncols, count FROM metadata"
	var args []any
	if area != "" {
		query += " WHERE area = ?"
		args = append(args, string(area))
	}
	query += " ORDER BY area, band"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var (
			a, name, dtype string
			info           Info
			res            int
		)
		if err := rows.Scan(&a, &name, &res, &dtype, &info.Rows, &info.Cols, &info.Count); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		id, err := types.ParseBandID(name)
		if err != nil {
			s.logger.Warnf("skipping unknown band %q in %s", name, s.path)
			continue
		}
		dt, err := types.ParseDataType(dtype)
		if err != nil {
			s.logger.Warnf("skipping band %s with data type %q in %s", name, dtype, s.path)
			continue
		}
		info.Area, info.Band, info.Resolution, info.Type = Area(a), id, types.Resolution(res), dt
		out = append(out, info)
	}
	return out, rows.Err()
}

// Probe reads id from the arrays area and reports whether the file is intact.
// A band that is listed but cannot be decoded reinitializes the store.
func (s *Store) Probe(ctx context.Context, id types.BandID) bool {
	if s.cache != nil {
		s.cache.Remove(cacheKey{AreaArrays, id})
	}
	_, err := s.Read(ctx, AreaArrays, id)
	switch {
	case err == nil:
		return true
	case IsCorrupt(err):
		return false
	case IsNotFound(err):
		return true
	}
	s.logger.Warnf("probe of %s failed: %v", s.path, err)
	return false
}

// Close releases the database handle and codecs.
func (s *Store) Close() error {
	var err error
	if s.db != nil {
		err = multierr.Append(err, s.db.Close())
		s.db = nil
	}
	s.closeCodecs()
	return err
}

func (s *Store) closeCodecs() {
	s.enc.Close()
	s.dec.Close()
}

func cloneBand(b *types.Band) *types.Band {
	return &types.Band{ID: b.ID, Resolution: b.Resolution, Raster: b.Raster.Clone()}
}
