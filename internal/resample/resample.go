// Package resample converts band rasters between steps of the resolution
// ladder. Every function is pure and deterministic.
package resample

import (
	"errors"
	"fmt"
	"math"

	"github.com/chrissnell/remotesensing/internal/ndimage"
	"github.com/chrissnell/remotesensing/internal/types"
)

var (
	// ErrIdentity is returned when source and target extents are equal.
	// Callers are expected to short-circuit before asking for a resample.
	ErrIdentity = errors.New("source and target extents are identical")
	// ErrRatio is returned for downsampling ratios outside the ladder.
	ErrRatio = errors.New("resampling ratio is not a ladder factor")
)

// Band resamples src to a rows x cols grid at res. Coarsening uses block
// statistics, refinement uses the band's interpolation order.
func Band(src *types.Band, res types.Resolution, rows, cols int) (*types.Band, error) {
	if src.Rows == rows && src.Cols == cols {
		return nil, ErrIdentity
	}

	var out *types.Raster
	switch {
	case rows < src.Rows:
		factor, ok := types.BlockFactor(src.Rows, rows)
		if !ok || src.Cols%factor != 0 || src.Cols/factor != cols {
			return nil, fmt.Errorf("%s %dx%d to %dx%d: %w", src.ID, src.Rows, src.Cols, rows, cols, ErrRatio)
		}
		if src.ID.IsCategorical() {
			out = DownsampleCategorical(src.Raster, factor)
		} else {
			out = Downsample(src.Raster, factor)
		}
	default:
		out = Resize(src.Raster, rows, cols, src.ID.Interpolation())
	}
	return &types.Band{ID: src.ID, Resolution: res, Raster: out}, nil
}

// Downsample mean-pools factor x factor blocks, rounds half up and casts back
// to the source element type. Trailing rows and columns that do not fill a
// block are dropped.
func Downsample(src *types.Raster, factor int) *types.Raster {
	rows, cols := src.Rows/factor, src.Cols/factor
	out := types.NewRaster(rows, cols, src.Type)
	n := float64(factor * factor)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			var sum float64
			for dy := 0; dy < factor; dy++ {
				row := (y*factor + dy) * src.Cols
				for dx := 0; dx < factor; dx++ {
					sum += float64(src.Data[row+x*factor+dx])
				}
			}
			mean := sum / n
			if src.Type.IsInteger() {
				mean = math.Floor(mean + 0.5)
			}
			out.Data[y*cols+x] = src.Type.Convert(float32(mean))
		}
	}
	return out
}

// DownsampleCategorical smooths class codes with a 3x3 median and then picks
// the nearest source sample for each output cell, so no code is ever averaged.
func DownsampleCategorical(src *types.Raster, factor int) *types.Raster {
	smoothed := &types.Raster{
		Rows: src.Rows,
		Cols: src.Cols,
		Type: src.Type,
		Data: ndimage.Median(src.Data, src.Rows, src.Cols, 3),
	}
	return Resize(smoothed, src.Rows/factor, src.Cols/factor, types.Nearest)
}

// Resize interpolates src onto a rows x cols grid. Interpolated samples are
// clipped to the value range of src, then rounded and clamped to the source
// element type.
func Resize(src *types.Raster, rows, cols int, order types.Interpolation) *types.Raster {
	out := types.NewRaster(rows, cols, src.Type)
	lo, hi := valueRange(src.Data)
	sy := float64(src.Rows) / float64(rows)
	sx := float64(src.Cols) / float64(cols)

	for y := 0; y < rows; y++ {
		fy := (float64(y)+0.5)*sy - 0.5
		for x := 0; x < cols; x++ {
			fx := (float64(x)+0.5)*sx - 0.5
			var v float64
			switch order {
			case types.Nearest:
				v = float64(sample(src, int(math.Round(fy)), int(math.Round(fx))))
			case types.Bilinear:
				v = bilinear(src, fy, fx)
			default:
				v = bicubic(src, fy, fx)
			}
			if order != types.Nearest && lo <= hi {
				v = math.Min(math.Max(v, lo), hi)
			}
			if src.Type.IsInteger() {
				v = math.Round(v)
			}
			out.Data[y*cols+x] = src.Type.Convert(float32(v))
		}
	}
	return out
}

// valueRange returns the smallest and largest non-NaN value of data. lo > hi
// when there is none.
func valueRange(data []float32) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range data {
		if math.IsNaN(float64(v)) {
			continue
		}
		lo = math.Min(lo, float64(v))
		hi = math.Max(hi, float64(v))
	}
	return lo, hi
}

// sample reads src with edge replication.
func sample(src *types.Raster, y, x int) float32 {
	if y < 0 {
		y = 0
	} else if y >= src.Rows {
		y = src.Rows - 1
	}
	if x < 0 {
		x = 0
	} else if x >= src.Cols {
		x = src.Cols - 1
	}
	return src.Data[y*src.Cols+x]
}

func bilinear(src *types.Raster, fy, fx float64) float64 {
	y0, x0 := int(math.Floor(fy)), int(math.Floor(fx))
	wy, wx := fy-float64(y0), fx-float64(x0)
	top := float64(sample(src, y0, x0))*(1-wx) + float64(sample(src, y0, x0+1))*wx
	bottom := float64(sample(src, y0+1, x0))*(1-wx) + float64(sample(src, y0+1, x0+1))*wx
	return top*(1-wy) + bottom*wy
}

// cubicWeight is the Keys cubic convolution kernel with a = -0.5.
func cubicWeight(t float64) float64 {
	const a = -0.5
	t = math.Abs(t)
	switch {
	case t <= 1:
		return (a+2)*t*t*t - (a+3)*t*t + 1
	case t < 2:
		return a*t*t*t - 5*a*t*t + 8*a*t - 4*a
	}
	return 0
}

func bicubic(src *types.Raster, fy, fx float64) float64 {
	y0, x0 := int(math.Floor(fy)), int(math.Floor(fx))
	var acc float64
	for m := -1; m <= 2; m++ {
		wy := cubicWeight(fy - float64(y0+m))
		if wy == 0 {
			continue
		}
		for n := -1; n <= 2; n++ {
			wx := cubicWeight(fx - float64(x0+n))
			acc += wy * wx * float64(sample(src, y0+m, x0+n))
		}
	}
	return acc
}
