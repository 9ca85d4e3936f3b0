// Package snapshot persists the state a later process needs to resume a tile.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/remotesensing/internal/sceneclass"
	"github.com/chrissnell/remotesensing/internal/types"
)

// Version is the snapshot layout written by Save.
const Version = 1

// ErrVersion is returned for snapshots of an unknown layout.
var ErrVersion = errors.New("unsupported snapshot version")

// Snapshot is the resumable state of one tile. It holds no logger or other
// process-bound state.
type Snapshot struct {
	Version   int                   `msgpack:"version"`
	Tile      string                `msgpack:"tile"`
	Completed []int                 `msgpack:"completed"`
	SCOnly    bool                  `msgpack:"sc_only"`
	Zenith    float64               `msgpack:"solar_zenith"`
	Azimuth   float64               `msgpack:"solar_azimuth"`
	Thresh    sceneclass.Thresholds `msgpack:"thresholds"`
	// Files maps band names to their source files.
	Files     map[string]string `msgpack:"files"`
	StoreDir  string            `msgpack:"store_dir"`
	OutputDir string            `msgpack:"output_dir"`
	Started   time.Time         `msgpack:"started"`
	Updated   time.Time         `msgpack:"updated"`
	Processed int               `msgpack:"processed"`
}

// New returns an empty snapshot of tile.
func New(tile string) *Snapshot {
	now := time.Now().UTC()
	return &Snapshot{Version: Version, Tile: tile, Files: map[string]string{}, Started: now, Updated: now}
}

// Path returns the snapshot file of tile inside dir.
func Path(dir, tile string) string {
	return filepath.Join(dir, tile+".snapshot")
}

// Done reports whether res has completed.
func (s *Snapshot) Done(res types.Resolution) bool {
	return slices.Contains(s.Completed, int(res))
}

// MarkDone records res as completed.
func (s *Snapshot) MarkDone(res types.Resolution) {
	if !s.Done(res) {
		s.Completed = append(s.Completed, int(res))
		s.Processed++
	}
	s.Updated = time.Now().UTC()
}

// Save writes s to path through a uniquely named temporary file so that
// readers never see a partial snapshot.
func Save(path string, s *Snapshot) error {
	s.Version = Version
	data, err := msgpack.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot of %s: %w", s.Tile, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	tmp := filepath.Join(filepath.Dir(path), "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot written by Save.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	if s.Version != Version {
		return nil, fmt.Errorf("%w: %d in %s", ErrVersion, s.Version, path)
	}
	return &s, nil
}

// Remove deletes the snapshot at path. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
