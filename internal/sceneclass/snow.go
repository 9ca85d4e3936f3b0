package sceneclass

import (
	"context"

	"github.com/chrissnell/remotesensing/internal/auxdata"
	"github.com/chrissnell/remotesensing/internal/ndimage"
	"github.com/chrissnell/remotesensing/internal/types"
)

func (e *Engine) snowIndex(ctx context.Context) error {
	b, err := e.bands(ctx, types.B03, types.B11)
	if err != nil {
		return err
	}
	veto, err := e.snowConditionVeto(ctx)
	if err != nil {
		return err
	}
	for i := range e.cm {
		s := ramp(ndsi(b[0][i], b[1][i]), e.th.T1NDSISnow, e.th.T2NDSISnow)
		if e.cloud[i] == 0 && e.cm[i] != types.NoData {
			s = 0
		}
		if veto != nil && veto[i] {
			s = 0
		}
		if s == 0 && e.open(i) {
			e.cm[i] = types.NotSnow
		}
		e.snow[i] = s
	}
	return nil
}

// snowConditionVeto returns the permanently snow-free water pixels of the
// snow-condition layer, or nil when the layer is missing or too snowy for
// the veto to apply.
func (e *Engine) snowConditionVeto(ctx context.Context) ([]bool, error) {
	snc, err := e.optional(ctx, types.SNC)
	if err != nil || snc == nil {
		return nil, err
	}
	var sum float64
	var n int
	for _, v := range snc {
		if v != auxdata.SnowConditionWater {
			sum += float64(v)
			n++
		}
	}
	if sum == 0 || sum/float64(n) >= 10 {
		return nil, nil
	}
	veto := make([]bool, len(snc))
	for i, v := range snc {
		veto[i] = v == auxdata.SnowConditionWater
	}
	return veto, nil
}

// snowRedEdge removes snow where B05/B8A is below 0.85.
func (e *Engine) snowRedEdge(ctx context.Context) error {
	b, err := e.bands(ctx, types.B05, types.B8A)
	if err != nil {
		return err
	}
	for i := range e.cm {
		if ratio(b[0][i], b[1][i]) < 0.85 {
			e.snow[i] = 0
		}
		if e.snow[i] == 0 && e.open(i) {
			e.cm[i] = types.NotSnow
		}
	}
	return nil
}

func (e *Engine) snowNIR(ctx context.Context) error {
	return e.snowFilter(ctx, e.th.T1B8A, e.th.T2B8A, func(b [][]float32, i int) float32 {
		return b[0][i]
	}, types.B8A)
}

func (e *Engine) snowBlue(ctx context.Context) error {
	return e.snowFilter(ctx, e.th.T1B02, e.th.T2B02, func(b [][]float32, i int) float32 {
		return b[0][i]
	}, types.B02)
}

func (e *Engine) snowBlueRed(ctx context.Context) error {
	return e.snowFilter(ctx, e.th.T1RatioB02B04, e.th.T2RatioB02B04, func(b [][]float32, i int) float32 {
		return ratio(b[0][i], b[1][i])
	}, types.B02, types.B04)
}

// snowFilter multiplies the snow confidence by the ramp of v and demotes open
// pixels the ramp rejects.
func (e *Engine) snowFilter(ctx context.Context, t1, t2 float32, v func([][]float32, int) float32, ids ...types.BandID) error {
	b, err := e.bands(ctx, ids...)
	if err != nil {
		return err
	}
	for i := range e.cm {
		s := ramp(v(b, i), t1, t2)
		if s == 0 && e.open(i) {
			e.cm[i] = types.NotSnow
		}
		e.snow[i] *= s
	}
	return nil
}

// snowBoundary promotes the confident snow core and removes cloud
// confidence from its dark-SWIR boundary ring. Not-snow pixels are opened
// again afterwards.
func (e *Engine) snowBoundary(ctx context.Context) error {
	b12, err := e.get(ctx, types.B12)
	if err != nil {
		return err
	}
	core := make([]bool, len(e.cm))
	for i := range e.cm {
		core[i] = e.snow[i] > e.th.T1Snow && e.cm[i] != types.NoData
		if core[i] {
			e.cm[i] = types.SnowIce
		}
	}
	dilated := ndimage.BinaryDilation(core, e.rows, e.cols, ndimage.Diamond(3))
	for i := range e.cm {
		ring := dilated[i] && !core[i]
		if (ring && b12[i] < e.th.T2Snow) || e.cm[i] == types.SnowIce {
			e.cloud[i] = 0
		}
		if e.cm[i] == types.NotSnow {
			e.cm[i] = types.NotClassified
		}
	}
	return nil
}

// snowCondition turns snow on snow-free water of the snow-condition layer
// into medium probability cloud.
func (e *Engine) snowCondition(ctx context.Context) error {
	veto, err := e.snowConditionVeto(ctx)
	if err != nil || veto == nil {
		return err
	}
	for i, v := range veto {
		if v && e.cm[i] == types.SnowIce {
			e.cm[i] = types.CloudMediumProba
		}
	}
	return nil
}
