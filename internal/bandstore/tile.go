package bandstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chrissnell/remotesensing/internal/types"
)

// TileOptions configure the stores of one tile.
type TileOptions struct {
	// TestMode truncates imports to the test window of each resolution.
	TestMode bool
	// DNScale converts reflectance digital numbers to [0,1].
	DNScale float32
	Store   Options
}

// Tile groups the per-resolution tables of one tile. Tables at other
// resolutions serve as resampling sources for each other.
type Tile struct {
	ID  string
	dir string

	opts   TileOptions
	logger *zap.SugaredLogger

	mu     sync.Mutex
	tables map[types.Resolution]*Tables
}

// NewTile prepares the stores of tile id under dir. No file is opened until
// Tables is called.
func NewTile(dir, id string, opts TileOptions, logger *zap.SugaredLogger) *Tile {
	if opts.DNScale <= 0 {
		opts.DNScale = 10000
	}
	return &Tile{
		ID:     id,
		dir:    filepath.Join(dir, id),
		opts:   opts,
		logger: logger,
		tables: make(map[types.Resolution]*Tables),
	}
}

// StorePaths returns the img and res store files of res.
func (t *Tile) StorePaths(res types.Resolution) (img, derived string) {
	base := filepath.Join(t.dir, fmt.Sprintf("%dm", int(res)))
	return base + "_img.db", base + "_res.db"
}

// Tables opens, or returns the already open, stores at res.
func (t *Tile) Tables(ctx context.Context, res types.Resolution) (*Tables, error) {
	if !res.Valid() {
		return nil, fmt.Errorf("tile %s: invalid resolution %d", t.ID, int(res))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.openLocked(ctx, res)
}

func (t *Tile) openLocked(ctx context.Context, res types.Resolution) (*Tables, error) {
	if tb, ok := t.tables[res]; ok {
		return tb, nil
	}
	imgPath, resPath := t.StorePaths(res)
	img, err := Open(ctx, imgPath, res, t.opts.Store, t.logger)
	if err != nil {
		return nil, fmt.Errorf("tile %s: %w", t.ID, err)
	}
	derived, err := Open(ctx, resPath, res, t.opts.Store, t.logger)
	if err != nil {
		img.Close()
		return nil, fmt.Errorf("tile %s: %w", t.ID, err)
	}
	tb := &Tables{
		tile:       t,
		resolution: res,
		testMode:   t.opts.TestMode,
		dnScale:    t.opts.DNScale,
		logger:     t.logger,
		img:        img,
		res:        derived,
	}
	tb.Probe(ctx)
	t.tables[res] = tb
	return tb, nil
}

// peer returns the tables at res when they are open or have files on disk, and
// nil otherwise.
func (t *Tile) peer(ctx context.Context, res types.Resolution) (*Tables, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tb, ok := t.tables[res]; ok {
		return tb, nil
	}
	imgPath, resPath := t.StorePaths(res)
	if !exists(imgPath) && !exists(resPath) {
		return nil, nil
	}
	return t.openLocked(ctx, res)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Close closes every open store.
func (t *Tile) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var err error
	for res, tb := range t.tables {
		err = multierr.Append(err, tb.close())
		delete(t.tables, res)
	}
	return err
}

// Destroy closes the tile and removes its store files.
func (t *Tile) Destroy() error {
	return multierr.Append(t.Close(), os.RemoveAll(t.dir))
}
