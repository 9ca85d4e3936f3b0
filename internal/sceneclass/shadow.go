package sceneclass

import (
	"context"
	"fmt"
	"math"

	"github.com/chrissnell/remotesensing/internal/ndimage"
	"github.com/chrissnell/remotesensing/internal/types"
)

// shadowReference is the reflectance spectrum of a typical cloud shadow for
// B02, B03, B04, B8A, B11 and B12.
var shadowReference = [...]float32{0.12, 0.08, 0.06, 0.10, 0.0545, 0.0255}

const shadowThreshold = 0.05

// cloudShadow combines a radiometric shadow score with the projection of the
// cloud mask along the sun direction.
func (e *Engine) cloudShadow(ctx context.Context) error {
	radio, err := e.shadowRadiometry(ctx)
	if err != nil {
		return fmt.Errorf("cloud shadow radiometry: %w", err)
	}
	geom, err := e.shadowGeometry()
	if err != nil {
		return fmt.Errorf("cloud shadow geometry: %w", err)
	}
	var n int
	for i := range e.cm {
		if e.cm[i] == types.NoData {
			continue
		}
		if radio[i]*geom[i] > shadowThreshold {
			e.cm[i] = types.CloudShadows
			n++
		}
	}
	e.logger.Debugf("cloud shadow detection flagged %d pixels", n)
	return nil
}

func (e *Engine) shadowRadiometry(ctx context.Context) ([]float32, error) {
	b, err := e.bands(ctx, types.B02, types.B03, types.B04, types.B8A, types.B11, types.B12)
	if err != nil {
		return nil, err
	}
	n := len(e.cm)
	dark := make([]float32, n)
	dist := make([]float32, n)
	for i := 0; i < n; i++ {
		var below, sum float32
		for k, ref := range shadowReference {
			d := b[k][i] - ref
			if d < 0 {
				below++
			}
			sum += float32(math.Abs(float64(d)))
		}
		dark[i] = below / float32(len(shadowReference))
		dist[i] = sum / float32(len(shadowReference))
	}
	dark = ndimage.Median(dark, e.rows, e.cols, 3)
	dist = ndimage.Median(dist, e.rows, e.cols, 3)

	b02, b11 := b[0], b[4]
	for i := range dist {
		s := 1 - dist[i]
		if s < 1-e.th.TB02B12 {
			s = 0
		}
		if dark[i] == 1 {
			s = 1
		}
		if b02[i] > 6*b11[i] || e.cm[i] == types.ThinCirrus {
			s = 0
		}
		dist[i] = s
	}
	return dist, nil
}

// shadowKernel is the shadow intensity profile along the sun direction at
// 30m sampling: a steep rise up to the cloud edge followed by a slow decay.
func shadowKernel() []float64 {
	out := make([]float64, 0, 201)
	for k := 50; k >= 0; k-- {
		out = append(out, 1/(1+math.Pow(float64(k)/30, 10)))
	}
	for k := 0; k < 150; k++ {
		out = append(out, 1/(1+math.Pow(float64(k)/90, 10)))
	}
	return out
}

func (e *Engine) shadowGeometry() ([]float32, error) {
	rows, cols := e.rows, e.cols
	pr := int(1.5*float64(rows) + 0.5)
	pc := int(1.5*float64(cols) + 0.5)

	conf := ndimage.Median(e.cloud, rows, cols, 3)
	mask := make([]bool, len(conf))
	for i, v := range conf {
		mask[i] = v > 0.33
	}
	mask = ndimage.BinaryDilation(mask, rows, cols, ndimage.Cross)
	clouds := make([]float64, pr*pc)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if mask[y*cols+x] {
				clouds[y*pc+x] = 1
			}
		}
	}

	elevation := math.Floor(90 - e.opts.SolarZenith + 0.5)
	if elevation < 1 {
		elevation = 1
	}
	azimuth := math.Floor(e.opts.SolarAzimuth + 0.5)
	profile := ndimage.Zoom1D(shadowKernel(), 30/float64(e.opts.Resolution))
	profile = ndimage.Zoom1D(profile, 1/math.Tan(elevation*math.Pi/180))

	filter := make([]float64, pr*pc)
	for y := 0; y < len(profile) && y < pr; y++ {
		filter[y*pc] = profile[y]
	}
	ys, xs := pr/2, pc/2
	filter = ndimage.Roll(filter, pr, pc, ys, xs)
	filter = ndimage.Rotate(filter, pr, pc, -azimuth)
	az := math.Mod(azimuth, 360)
	if az < 0 {
		az += 360
	}
	switch {
	case az < 90:
		filter = ndimage.Roll(filter, pr, pc, -ys, xs)
	case az < 180:
		filter = ndimage.Roll(filter, pr, pc, ys, xs)
	case az < 270:
		filter = ndimage.Roll(filter, pr, pc, ys, -xs)
	default:
		filter = ndimage.Roll(filter, pr, pc, -ys, -xs)
	}

	proj, err := ndimage.CircularConvolve(clouds, filter, pr, pc)
	if err != nil {
		return nil, err
	}
	out := make([]float32, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := math.Min(math.Max(proj[y*pc+x], 0), 1) - clouds[y*pc+x]
			out[y*cols+x] = float32(math.Max(v, 0))
		}
	}
	out = ndimage.Gaussian(out, rows, cols, 3)
	for i := range out {
		if e.cm[i] == types.NoData {
			out[i] = 0
		}
	}
	return out, nil
}
