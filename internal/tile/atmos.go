package tile

import (
	"context"

	"github.com/chrissnell/remotesensing/internal/bandstore"
	"github.com/chrissnell/remotesensing/internal/sceneclass"
	"github.com/chrissnell/remotesensing/internal/types"
)

// AtmosphericCorrector turns the classified top-of-atmosphere tables into
// surface reflectance and stores the AOT, WVP and VIS bands.
type AtmosphericCorrector interface {
	Correct(ctx context.Context, tb *bandstore.Tables, scene *sceneclass.Result) error
}

// Neutral atmosphere written by Passthrough, in stored units.
const (
	NeutralAOT = 100
	NeutralWVP = 2000
	NeutralVIS = 40
)

// Passthrough leaves the reflectance untouched and stores a neutral
// atmosphere, so that later resolutions find the bands they depend on.
type Passthrough struct{}

func (Passthrough) Correct(ctx context.Context, tb *bandstore.Tables, _ *sceneclass.Result) error {
	n := tb.Extent()
	for _, b := range []struct {
		id types.BandID
		v  float32
	}{{types.AOT, NeutralAOT}, {types.WVP, NeutralWVP}, {types.VIS, NeutralVIS}} {
		if tb.Has(ctx, b.id) {
			continue
		}
		r := types.NewRaster(n, n, types.Uint16)
		for i := range r.Data {
			r.Data[i] = b.v
		}
		if err := tb.Set(ctx, b.id, r); err != nil {
			return err
		}
	}
	return nil
}
