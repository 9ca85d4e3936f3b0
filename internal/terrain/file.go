package terrain

import (
	"context"
	"fmt"

	"github.com/chrissnell/remotesensing/internal/codec"
	"github.com/chrissnell/remotesensing/internal/resample"
	"github.com/chrissnell/remotesensing/internal/types"
)

// FileProvider reads the elevation raster named by the request and derives
// the other layers in process.
type FileProvider struct{}

func (FileProvider) Layers(ctx context.Context, req Request) (*Layers, error) {
	dem, err := loadDEM(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Derive(dem, float64(req.Resolution), req.SolarZenith, req.SolarAzimuth), nil
}

func loadDEM(req Request) (*types.Raster, error) {
	if req.DEMPath == "" {
		return nil, fmt.Errorf("%w: no DEM configured for tile %s", ErrUnavailable, req.TileID)
	}
	dem, err := codec.Decode(req.DEMPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return fit(dem, req.Rows, req.Cols), nil
}

// fit brings r onto the requested grid. Larger rasters that are a test-window
// superset are cut, others are resized bilinearly.
func fit(r *types.Raster, rows, cols int) *types.Raster {
	if r.Rows == rows && r.Cols == cols {
		return r
	}
	if res, ok := types.ResolutionForRows(r.Rows); ok && r.Rows == res.TileSize() && rows == res.TestWindow() {
		return r.Window(rows, cols)
	}
	return resample.Resize(r, rows, cols, types.Bilinear)
}
