package terrain

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/chrissnell/remotesensing/internal/codec"
	"github.com/chrissnell/remotesensing/internal/types"
)

// GDALDEM derives slope, aspect and hill shade with the gdaldem tool. Each
// invocation is bounded by Timeout.
type GDALDEM struct {
	// Binary defaults to "gdaldem" on PATH.
	Binary  string
	Timeout time.Duration
	// WorkDir holds intermediates. It defaults to the system temp dir.
	WorkDir string
}

func (g GDALDEM) Layers(ctx context.Context, req Request) (*Layers, error) {
	dem, err := loadDEM(req)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(g.WorkDir, "gdaldem-"+uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "dem.img")
	if err := codec.Encode(in, dem.Cast(types.Float32), codec.Options{Resolution: req.Resolution}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	slope, err := g.run(ctx, dir, "slope", in, "-compute_edges", "-s", "1")
	if err != nil {
		return nil, err
	}
	aspect, err := g.run(ctx, dir, "aspect", in, "-compute_edges", "-zero_for_flat")
	if err != nil {
		return nil, err
	}
	shade, err := g.run(ctx, dir, "hillshade", in, "-compute_edges",
		"-az", strconv.FormatFloat(req.SolarAzimuth, 'f', 4, 64),
		"-alt", strconv.FormatFloat(90-req.SolarZenith, 'f', 4, 64))
	if err != nil {
		return nil, err
	}

	for i, v := range shade.Data {
		if v < 1 {
			shade.Data[i] = 1
		}
	}
	return &Layers{
		DEM:    dem.Cast(types.Int16),
		Slope:  slope.Cast(types.Uint8),
		Aspect: aspect.Cast(types.Uint16),
		Shadow: shade.Cast(types.Uint8),
	}, nil
}

func (g GDALDEM) run(ctx context.Context, dir, mode, in string, extra ...string) (*types.Raster, error) {
	bin := g.Binary
	if bin == "" {
		bin = "gdaldem"
	}
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := filepath.Join(dir, mode+".img")
	args := append([]string{mode, in, out, "-of", "ENVI"}, extra...)
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: gdaldem %s timed out after %s", ErrUnavailable, mode, timeout)
		}
		return nil, fmt.Errorf("%w: gdaldem %s: %v: %s", ErrUnavailable, mode, err, bytes.TrimSpace(stderr.Bytes()))
	}
	r, err := codec.Decode(out)
	if err != nil {
		return nil, fmt.Errorf("%w: read gdaldem %s output: %v", ErrUnavailable, mode, err)
	}
	return r, nil
}
