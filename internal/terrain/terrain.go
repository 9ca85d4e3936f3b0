// Package terrain supplies elevation and its derivatives for a tile. Providers
// that cannot deliver return ErrUnavailable and processing continues without
// terrain layers.
package terrain

import (
	"context"
	"errors"
	"math"

	"github.com/chrissnell/remotesensing/internal/types"
)

// ErrUnavailable means no terrain could be produced for the request.
var ErrUnavailable = errors.New("terrain unavailable")

// Request names the grid the layers must cover.
type Request struct {
	TileID     string
	Resolution types.Resolution
	Rows       int
	Cols       int
	// DEMPath is the elevation raster. It may be at another resolution.
	DEMPath string
	// Solar angles in degrees, used for hill shade.
	SolarZenith  float64
	SolarAzimuth float64
}

// Layers are the terrain bands of one tile resolution.
type Layers struct {
	// DEM is elevation in metres, int16.
	DEM *types.Raster
	// Slope is in degrees, uint8.
	Slope *types.Raster
	// Aspect is degrees clockwise from north, uint16. Flat pixels are 0.
	Aspect *types.Raster
	// Shadow is hill shade 1-255 with 0 reserved for no data, uint8.
	Shadow *types.Raster
}

// Provider delivers terrain layers.
type Provider interface {
	Layers(ctx context.Context, req Request) (*Layers, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) (*Layers, error)

func (f ProviderFunc) Layers(ctx context.Context, req Request) (*Layers, error) {
	return f(ctx, req)
}

// Unavailable always fails.
var Unavailable Provider = ProviderFunc(func(context.Context, Request) (*Layers, error) {
	return nil, ErrUnavailable
})

// Derive computes slope, aspect and hill shade from dem with Horn's 3x3
// gradient. Borders replicate the outermost pixels. pixel is the grid spacing
// in metres.
func Derive(dem *types.Raster, pixel, zenith, azimuth float64) *Layers {
	rows, cols := dem.Rows, dem.Cols
	slope := types.NewRaster(rows, cols, types.Uint8)
	aspect := types.NewRaster(rows, cols, types.Uint16)
	shadow := types.NewRaster(rows, cols, types.Uint8)

	at := func(y, x int) float64 {
		y = clamp(y, 0, rows-1)
		x = clamp(x, 0, cols-1)
		return float64(dem.Data[y*cols+x])
	}

	alt := (90 - zenith) * math.Pi / 180
	az := azimuth * math.Pi / 180

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			a, b, c := at(y-1, x-1), at(y-1, x), at(y-1, x+1)
			d, f := at(y, x-1), at(y, x+1)
			g, h, i := at(y+1, x-1), at(y+1, x), at(y+1, x+1)

			dx := ((c + 2*f + i) - (a + 2*d + g)) / (8 * pixel)
			dy := ((g + 2*h + i) - (a + 2*b + c)) / (8 * pixel)
			k := y*cols + x

			s := math.Atan(math.Hypot(dx, dy))
			slope.Data[k] = float32(math.Round(s * 180 / math.Pi))

			asp := 0.0
			if dx != 0 || dy != 0 {
				asp = math.Atan2(dy, -dx) * 180 / math.Pi
				if asp > 90 {
					asp = 450 - asp
				} else {
					asp = 90 - asp
				}
				if asp >= 360 {
					asp -= 360
				}
			}
			aspect.Data[k] = float32(math.Round(asp))

			cang := math.Sin(alt)*math.Cos(s) +
				math.Cos(alt)*math.Sin(s)*math.Cos(az-asp*math.Pi/180)
			if cang < 0 {
				cang = 0
			}
			shadow.Data[k] = float32(math.Round(1 + 254*cang))
		}
	}
	return &Layers{DEM: dem.Cast(types.Int16), Slope: slope, Aspect: aspect, Shadow: shadow}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
