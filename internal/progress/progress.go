// Package progress keeps the per-resolution processing time estimates and the
// weighted progress status shared by all tile workers.
package progress

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/chrissnell/remotesensing/internal/filelock"
	"github.com/chrissnell/remotesensing/internal/types"
)

// Estimates maps t_est_<res> keys to seconds per tile.
type Estimates map[string]float64

var defaultEstimates = Estimates{
	"t_est_60": 60,
	"t_est_20": 600,
	"t_est_10": 240,
}

// Key returns the estimate key of res.
func Key(res types.Resolution) string {
	return fmt.Sprintf("t_est_%d", int(res))
}

// Seconds returns the estimate for res, falling back to a built-in value.
func (e Estimates) Seconds(res types.Resolution) float64 {
	if v, ok := e[Key(res)]; ok && v > 0 {
		return v
	}
	return defaultEstimates[Key(res)]
}

// LoadEstimates reads the estimates file at path. A missing file yields the
// built-in estimates.
func LoadEstimates(ctx context.Context, path string) (Estimates, error) {
	release, err := filelock.AcquireShared(ctx, path)
	if err != nil {
		return nil, err
	}
	defer release()
	return readEstimates(path)
}

func readEstimates(path string) (Estimates, error) {
	est := Estimates{}
	for k, v := range defaultEstimates {
		est[k] = v
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return est, nil
	}
	if err != nil {
		return nil, err
	}
	var stored Estimates
	if err := yaml.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse estimates %s: %w", path, err)
	}
	for k, v := range stored {
		est[k] = v
	}
	return est, nil
}

// UpdateEstimate averages the measured duration of res into the estimates
// file and returns the new estimate in seconds.
func UpdateEstimate(ctx context.Context, path string, res types.Resolution, measured time.Duration) (float64, error) {
	var out float64
	err := filelock.With(ctx, path, func() error {
		est, err := readEstimates(path)
		if err != nil {
			return err
		}
		out = (est.Seconds(res) + measured.Seconds()) / 2
		est[Key(res)] = out
		data, err := yaml.Marshal(est)
		if err != nil {
			return err
		}
		return writeFile(path, data)
	})
	return out, err
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// Status is the content of the progress status file.
type Status struct {
	Percent float64   `yaml:"progress"`
	Done    int       `yaml:"completed_units"`
	Total   int       `yaml:"total_units"`
	Updated time.Time `yaml:"updated"`
}

// Tracker accumulates completed tile resolutions of one run. Each unit is
// weighted with the time estimate of its resolution. It is safe for
// concurrent use.
type Tracker struct {
	path   string
	est    Estimates
	logger *zap.SugaredLogger

	mu     sync.Mutex
	total  float64
	done   float64
	units  int
	closed int
}

// NewTracker plans tiles units at each resolution of plan and writes status
// updates to path. An empty path disables the status file.
func NewTracker(path string, est Estimates, plan []types.Resolution, tiles int, logger *zap.SugaredLogger) *Tracker {
	t := &Tracker{path: path, est: est, logger: logger}
	for _, r := range plan {
		t.total += est.Seconds(r) * float64(tiles)
		t.units += tiles
	}
	return t
}

// Done records one completed unit at res and returns the progress percentage.
func (t *Tracker) Done(ctx context.Context, res types.Resolution) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done += t.est.Seconds(res)
	t.closed++
	st := Status{Done: t.closed, Total: t.units, Updated: time.Now().UTC()}
	if t.total > 0 {
		st.Percent = min(100*t.done/t.total, 100)
	}

	t.logger.Infof("progress %.1f%% (%d of %d)", st.Percent, st.Done, st.Total)
	if t.path == "" {
		return st.Percent, nil
	}
	err := filelock.With(ctx, t.path, func() error {
		data, err := yaml.Marshal(st)
		if err != nil {
			return err
		}
		return writeFile(t.path, data)
	})
	return st.Percent, err
}
