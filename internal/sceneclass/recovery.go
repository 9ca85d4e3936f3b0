package sceneclass

import (
	"context"
	"math"

	"github.com/chrissnell/remotesensing/internal/auxdata"
	"github.com/chrissnell/remotesensing/internal/ndimage"
	"github.com/chrissnell/remotesensing/internal/types"
)

const (
	urbanRingThreshold = 35
	cirrusMaxElevation = 1500
	// minB10Threshold bounds the land recovery cirrus threshold from below.
	minB10Threshold = 0.0015
)

func (e *Engine) is(i int, classes ...types.Class) bool {
	for _, c := range classes {
		if e.cm[i] == c {
			return true
		}
	}
	return false
}

func (e *Engine) darkVegetationRecovery(ctx context.Context) error {
	b, err := e.bands(ctx, types.B03, types.B04, types.B8A)
	if err != nil {
		return err
	}
	b03, b04, b8a := b[0], b[1], b[2]
	for i := range e.cm {
		if !e.is(i, types.DarkFeatures, types.NotClassified) {
			continue
		}
		if ndvi(b8a[i], b04[i]) > e.th.T2NDVI || ratio(b8a[i], b03[i]) > e.th.T2RatioB8AB03 {
			e.cm[i] = types.Vegetation
		}
	}
	return nil
}

func (e *Engine) waterRecovery(ctx context.Context) error {
	b, err := e.bands(ctx, types.B02, types.B04, types.B8A, types.B11)
	if err != nil {
		return err
	}
	b02, b04, b8a, b11 := b[0], b[1], b[2], b[3]
	for i := range e.cm {
		if ratio(b02[i], b11[i]) <= e.th.T22RatioB02B11 || b8a[i] >= b04[i] {
			continue
		}
		if e.cm[i] == types.DarkFeatures || (e.open(i) && b8a[i] < 0.3) {
			e.cm[i] = types.Water
		}
	}
	return nil
}

func (e *Engine) waterBodiesRecovery(ctx context.Context) error {
	wbi, err := e.optional(ctx, types.WBI)
	if err != nil {
		return err
	}
	if wbi == nil {
		e.logger.Debugf("no water bodies layer, water bodies recovery skipped")
		return nil
	}
	for i := range e.cm {
		if wbi[i] == auxdata.WaterBodyWater &&
			e.is(i, types.DarkFeatures, types.CloudShadows, types.NotClassified, types.LowProbaClouds) {
			e.cm[i] = types.Water
		}
	}
	return nil
}

// terrainLayers returns the hill-shade and slope layers; either is nil when
// the store lacks it.
func (e *Engine) terrainLayers(ctx context.Context) (sdw, slp []float32, err error) {
	if sdw, err = e.optional(ctx, types.SDW); err != nil {
		return nil, nil, err
	}
	if slp, err = e.optional(ctx, types.SLP); err != nil {
		return nil, nil, err
	}
	return sdw, slp, nil
}

// waterCleaningDEM demotes water on steep shaded slopes to dark features.
func (e *Engine) waterCleaningDEM(ctx context.Context) error {
	sdw, slp, err := e.terrainLayers(ctx)
	if err != nil || sdw == nil || slp == nil {
		return err
	}
	for i := range e.cm {
		if sdw[i] < 128 && slp[i] > 15 && e.cm[i] == types.Water {
			e.cm[i] = types.DarkFeatures
		}
	}
	return nil
}

// cloudShadowCleaningDEM demotes cloud shadow inside deep terrain shadow.
func (e *Engine) cloudShadowCleaningDEM(ctx context.Context) error {
	sdw, _, err := e.terrainLayers(ctx)
	if err != nil || sdw == nil {
		return err
	}
	for i := range e.cm {
		if sdw[i] < 32 && sdw[i] != 0 && e.cm[i] == types.CloudShadows {
			e.cm[i] = types.DarkFeatures
		}
	}
	return nil
}

func (e *Engine) topographicShadow(ctx context.Context) error {
	sdw, _, err := e.terrainLayers(ctx)
	if err != nil || sdw == nil {
		return err
	}
	wbi, err := e.optional(ctx, types.WBI)
	if err != nil || wbi == nil {
		return err
	}
	b, err := e.bands(ctx, types.B02, types.B04, types.B8A)
	if err != nil {
		return err
	}
	b02, b04, b8a := b[0], b[1], b[2]
	for i := range e.cm {
		if sdw[i] < 128 && wbi[i] != auxdata.WaterBodyWater &&
			b02[i]-b04[i] > 0.034 && b8a[i] < b04[i] && b02[i] > 0.2 &&
			e.is(i, types.NotClassified, types.LowProbaClouds, types.CloudMediumProba) {
			e.cm[i] = types.DarkFeatures
		}
	}
	return nil
}

// snowRecovery extends snow to open neighbours with snow-like SWIR.
func (e *Engine) snowRecovery(ctx context.Context) error {
	snow := make([]bool, len(e.cm))
	var found bool
	for i, c := range e.cm {
		snow[i] = c == types.SnowIce
		found = found || snow[i]
	}
	if !found {
		return nil
	}
	b, err := e.bands(ctx, types.B03, types.B11)
	if err != nil {
		return err
	}
	near := ndimage.BinaryDilation(snow, e.rows, e.cols, ndimage.Diamond(3))
	for i := range e.cm {
		if near[i] && b[1][i] < b[0][i] && e.open(i) {
			e.cm[i] = types.SnowIce
		}
	}
	return nil
}

func (e *Engine) soilRecovery(ctx context.Context) error {
	b, err := e.bands(ctx, types.B02, types.B11)
	if err != nil {
		return err
	}
	for i := range e.cm {
		if e.cm[i] == types.DarkFeatures && ratio(b[0][i], b[1][i]) < 0.65 {
			e.cm[i] = types.NotVegetated
		}
	}
	return nil
}

func (e *Engine) land(i int) bool {
	return e.cm[i] == types.NotVegetated || e.cm[i] == types.Vegetation
}

// landRecovery turns cloud over land-like pixels with low cirrus signal back
// into bare land.
func (e *Engine) landRecovery(ctx context.Context) error {
	lcm, err := e.optional(ctx, types.LCM)
	if err != nil {
		return err
	}
	if lcm == nil {
		e.logger.Debugf("no land cover layer, land recovery skipped")
		return nil
	}
	var valid, landN, hpcN int
	for i, c := range e.cm {
		if c == types.NoData {
			continue
		}
		valid++
		if e.land(i) {
			landN++
		}
		if c == types.CloudHighProba {
			hpcN++
		}
	}
	res := float64(e.opts.Resolution)
	if percentOf(landN, valid) < 5 || float64(landN) < 121e6/(res*res) {
		e.logger.Debugf("land share too small, land recovery skipped")
		return nil
	}

	b, err := e.bands(ctx, types.B8A, types.B09, types.B10)
	if err != nil {
		return err
	}
	b8a, b09, b10 := b[0], b[1], b[2]

	landB10 := selected(b10, e.land)
	landMean, _ := meanStd(landB10)
	e.describe("land B10", landB10)

	var t float64
	switch hpc := percentOf(hpcN, valid); {
	case hpc > 20:
		hpcMean, hpcStd := meanStd(selected(b10, func(i int) bool { return e.cm[i] == types.CloudHighProba }))
		t = math.Max(minB10Threshold, math.Min(landMean, hpcMean-2*hpcStd))
	case hpc < 2:
		t = landMean
	default:
		t = e.blobThreshold(b10, landMean)
	}
	t = math.Min(t, landMean)

	rb := make([]float32, len(b09))
	for i := range rb {
		rb[i] = ratio(b09[i], b8a[i])
	}
	rMean, rStd := meanStd(selected(rb, e.land))
	tr := float32(rMean + rStd)
	tb := float32(t)
	e.logger.Debugf("land recovery thresholds B10 %.5f B09/B8A %.4f", t, tr)

	for i := range e.cm {
		if lcm[i] != auxdata.LandCoverWater &&
			e.is(i, types.CloudMediumProba, types.CloudHighProba) &&
			b10[i] < tb && rb[i] < tr {
			e.cm[i] = types.NotVegetated
		}
	}
	return nil
}

// blobThreshold derives the B10 threshold from the large high probability
// cloud blobs.
func (e *Engine) blobThreshold(b10 []float32, landMean float64) float64 {
	mask := make([]bool, len(e.cm))
	for i, c := range e.cm {
		mask[i] = c == types.CloudHighProba
	}
	labels, n := ndimage.Label(mask, e.rows, e.cols)
	counts := ndimage.Histogram(labels, n)
	minSize := 300 / float64(e.opts.Resolution)
	minSize *= minSize
	blobMean, blobStd := meanStd(selected(b10, func(i int) bool {
		return labels[i] != 0 && float64(counts[labels[i]]) > minSize
	}))
	return math.Max(minB10Threshold, nanMin(minB10Threshold, landMean, blobMean-2*blobStd))
}

// cirrusRecovery assigns thin cirrus to land and water pixels whose B10
// signal exceeds the statistics of their own class.
func (e *Engine) cirrusRecovery(ctx context.Context) error {
	lcm, err := e.optional(ctx, types.LCM)
	if err != nil || lcm == nil {
		return err
	}
	b10, err := e.get(ctx, types.B10)
	if err != nil {
		return err
	}
	dem, err := e.optional(ctx, types.DEM)
	if err != nil {
		return err
	}

	isNotVeg := func(i int) bool { return e.cm[i] == types.NotVegetated }
	isWater := func(i int) bool { return e.cm[i] == types.Water }
	landSet := selected(b10, isNotVeg)
	waterSet := selected(b10, isWater)
	m, s := meanStd(landSet)
	tLand := math.Max(m+3*s, 0.003)
	m, s = meanStd(waterSet)
	tWater := math.Max(m+s, 0.002)

	low := func(i int) bool { return dem == nil || dem[i] < cirrusMaxElevation }
	for i := range e.cm {
		if e.cm[i] == types.NoData || !low(i) {
			continue
		}
		switch {
		case len(landSet) > 0 && e.land(i) && float64(b10[i]) > tLand:
			e.cm[i] = types.ThinCirrus
		case len(waterSet) > 0 && isWater(i) && float64(b10[i]) > tWater:
			e.cm[i] = types.ThinCirrus
		}
	}
	return nil
}

// urbanBareRecovery restores urban and bare areas of the land cover layer
// that the cloud tests flagged, unless they are mostly surrounded by cloud.
func (e *Engine) urbanBareRecovery(ctx context.Context) error {
	lcm, err := e.optional(ctx, types.LCM)
	if err != nil || lcm == nil {
		return err
	}
	for _, in := range []func(v float32) bool{
		func(v float32) bool { return v == auxdata.LandCoverUrban },
		func(v float32) bool { return v >= auxdata.LandCoverBareFirst && v <= auxdata.LandCoverBareLast },
	} {
		mask := make([]bool, len(e.cm))
		for i := range e.cm {
			if !in(lcm[i]) {
				continue
			}
			if e.open(i) {
				e.cm[i] = types.NotVegetated
			}
			mask[i] = e.is(i, types.LowProbaClouds, types.CloudMediumProba)
		}
		for i, l := range fineMorpho(mask, e.cm, e.rows, e.cols, urbanRingThreshold) {
			if l != 0 {
				e.cm[i] = types.NotVegetated
			}
		}
	}
	return nil
}
