package sceneclass

import (
	"context"

	"github.com/chrissnell/remotesensing/internal/types"
)

// brightness seeds the cloud confidence from the red band and marks dark
// features.
func (e *Engine) brightness(ctx context.Context) error {
	b, err := e.bands(ctx, types.B04, types.B8A)
	if err != nil {
		return err
	}
	b04, b8a := b[0], b[1]
	for i := range e.cm {
		c := ramp(b04[i], e.th.T1B04, e.th.T2B04)
		e.cloud[i] = c * c
		if b04[i] < 0.1 && b8a[i] > 0.04 && b8a[i] < 0.15 && e.open(i) {
			e.cm[i] = types.DarkFeatures
		}
		if e.cm[i] == types.DarkFeatures {
			e.cloud[i] = 0
		}
	}
	return nil
}

func ndsi(b03, b11 float32) float32 {
	return ratio(b03-b11, b03+b11)
}

// cloudSnowIndex gates the confidence with the snow index. A fully gated pixel
// is opened again, dark features included.
func (e *Engine) cloudSnowIndex(ctx context.Context) error {
	b, err := e.bands(ctx, types.B03, types.B11)
	if err != nil {
		return err
	}
	for i := range e.cm {
		c := ramp(ndsi(b[0][i], b[1][i]), e.th.T1NDSICloud, e.th.T2NDSICloud)
		if c == 0 && e.cm[i] != types.NoData {
			e.cm[i] = types.NotClassified
		}
		e.cloud[i] *= c
	}
	return nil
}

func ndvi(b8a, b04 float32) float32 {
	return ratio(b8a-b04, b8a+b04)
}

func (e *Engine) vegetationNDVI(ctx context.Context) error {
	b, err := e.bands(ctx, types.B02, types.B04, types.B8A)
	if err != nil {
		return err
	}
	b02, b04, b8a := b[0], b[1], b[2]
	for i := range e.cm {
		c := ramp(ndvi(b8a[i], b04[i]), e.th.T1NDVI, e.th.T2NDVI)
		e.vegetation(i, c, c == 1 && b02[i] < 0.15)
	}
	return nil
}

func (e *Engine) vegetationSenescing(ctx context.Context) error {
	b, err := e.bands(ctx, types.B03, types.B8A)
	if err != nil {
		return err
	}
	for i := range e.cm {
		c := ramp(ratio(b[1][i], b[0][i]), e.th.T1RatioB8AB03, e.th.T2RatioB8AB03)
		e.vegetation(i, c, c == 1)
	}
	return nil
}

// vegetation applies one vegetation ramp value c at pixel i. Certain
// vegetation clears the confidence, a partial ramp attenuates it.
func (e *Engine) vegetation(i int, c float32, certain bool) {
	if certain && e.open(i) {
		e.cm[i] = types.Vegetation
	}
	if e.cm[i] == types.Vegetation {
		e.cloud[i] = 0
		return
	}
	if c > 0 && c < 1 {
		e.cloud[i] *= 1 - c
	}
}

func (e *Engine) bareSoil(ctx context.Context) error {
	b, err := e.bands(ctx, types.B02, types.B11)
	if err != nil {
		return err
	}
	b02, b11 := b[0], b[1]
	t := e.th
	for i := range e.cm {
		r := clip(ratio(b02[i], b11[i]), 0, 100)
		ft := clip(r*t.T11B02+t.T12B02, 0.15, 0.32)
		if b02[i] < ft && r < t.T11RatioB02B11 && e.open(i) {
			e.cm[i] = types.NotVegetated
		}
		if e.cm[i] == types.NotVegetated {
			e.cloud[i] = 0
			continue
		}
		if r > t.T11RatioB02B11 && r < t.T12RatioB02B11 && b02[i] < ft && e.open(i) {
			e.cloud[i] *= ramp(r, t.T11RatioB02B11, t.T12RatioB02B11)
		}
	}
	return nil
}

func (e *Engine) water(ctx context.Context) error {
	b, err := e.bands(ctx, types.B02, types.B04, types.B8A, types.B11, types.B12)
	if err != nil {
		return err
	}
	b02, b04, b8a, b11, b12 := b[0], b[1], b[2], b[3], b[4]
	t := e.th
	a := -1 / (t.T22RatioB02B11 - t.T21RatioB02B11)
	c := -t.T21RatioB02B11*a + 1
	for i := range e.cm {
		r := ratio(b02[i], b11[i])
		ft := clip(r*t.T21B12+t.T22B12, 0.07, 0.21)
		common := b12[i] < ft && b8a[i] < b04[i] && b02[i] < 0.2
		if r > t.T22RatioB02B11 && common && e.open(i) {
			e.cm[i] = types.Water
		}
		if e.cm[i] == types.Water {
			e.cloud[i] = 0
		} else if r >= t.T21RatioB02B11 && r < t.T22RatioB02B11 && common {
			e.cloud[i] *= clip(a*r+c, 0, 1)
		}

		turbid := b02[i]-b04[i] > 0.034 && b8a[i] < b04[i] && b02[i] < 0.2
		if turbid && e.open(i) {
			e.cm[i] = types.Water
		}
		if turbid && e.cm[i] == types.Water {
			e.cloud[i] = 0
		}
	}
	return nil
}

func (e *Engine) rocksAndSand(ctx context.Context) error {
	b, err := e.bands(ctx, types.B02, types.B8A, types.B11)
	if err != nil {
		return err
	}
	b02, b8a, b11 := b[0], b[1], b[2]
	t := e.th
	for i := range e.cm {
		r := ratio(b8a[i], b11[i])
		ft := clip(-0.25*r+0.475, 0.16, 0.35)
		if b02[i] < ft && r < t.T1RatioB8AB11 && b02[i] < 0.8*b11[i] && e.open(i) {
			e.cm[i] = types.NotVegetated
		}
		if e.cm[i] == types.NotVegetated {
			e.cloud[i] = 0
			continue
		}
		if r > t.T1RatioB8AB11 && r < t.T2RatioB8AB11 && b02[i] < ft && e.open(i) {
			e.cloud[i] *= ramp(r, t.T1RatioB8AB11, t.T2RatioB8AB11)
		}
	}
	return nil
}

// redSWIRRatio vetoes cloud on pixels with a high B04/B11 ratio.
func (e *Engine) redSWIRRatio(ctx context.Context) error {
	b, err := e.bands(ctx, types.B04, types.B11)
	if err != nil {
		return err
	}
	for i := range e.cm {
		c := ramp(ratio(b[0][i], b[1][i]), 3, 6)
		switch {
		case c == 1 && e.open(i):
			e.cloud[i] = 0
		case c > 0 && c < 1:
			e.cloud[i] *= 1 - c
		}
	}
	return nil
}

// binning turns the confidence of open pixels into cloud classes and applies
// the cirrus band.
func (e *Engine) binning(ctx context.Context) error {
	b, err := e.bands(ctx, types.B02, types.B10)
	if err != nil {
		return err
	}
	dem, err := e.optional(ctx, types.DEM)
	if err != nil {
		return err
	}
	b02, b10 := b[0], b[1]
	t := e.th
	for i := range e.cm {
		conf := e.cloud[i]
		if e.open(i) {
			switch {
			case conf >= t.CloudHP:
				e.cm[i] = types.CloudHighProba
			case conf >= t.CloudMP:
				e.cm[i] = types.CloudMediumProba
			case conf > t.CloudLP:
				e.cm[i] = types.LowProbaClouds
			}
		}
		if e.cm[i] == types.NoData {
			continue
		}
		low := dem == nil || dem[i] < 1500
		if b10[i] > t.T1B10 && b10[i] < t.T2B10 && b02[i] < 0.5 && low && conf < t.CloudMP {
			e.cm[i] = types.ThinCirrus
		}
		if b10[i] >= t.T2B10 && conf < t.CloudHP {
			e.cm[i] = types.CloudMediumProba
		}
	}
	return nil
}
