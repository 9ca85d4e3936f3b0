package auxdata

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chrissnell/remotesensing/internal/bandstore"
	"github.com/chrissnell/remotesensing/internal/codec"
	"github.com/chrissnell/remotesensing/internal/resample"
	"github.com/chrissnell/remotesensing/internal/types"
)

// Water body and land cover codes tested by the classifier.
const (
	WaterBodyWater = 2

	LandCoverUrban     = 190
	LandCoverBareFirst = 200
	LandCoverBareLast  = 202
	LandCoverWater     = 210

	// SnowConditionWater marks permanent water in the snow-condition product.
	SnowConditionWater = 254
)

// Paths locate the per-tile reference rasters. Empty paths are skipped.
type Paths struct {
	WaterBodies   string
	LandCover     string
	SnowCondition string
}

// Import stores the reference layers that exist into tb. Missing files are
// logged and skipped so classification runs without them. Only undecodable
// files or store failures are returned.
func Import(ctx context.Context, tb *bandstore.Tables, p Paths, logger *zap.SugaredLogger) error {
	var err error
	for _, l := range []struct {
		id   types.BandID
		path string
	}{
		{types.WBI, p.WaterBodies},
		{types.LCM, p.LandCover},
		{types.SNC, p.SnowCondition},
	} {
		if l.path == "" {
			continue
		}
		if _, statErr := os.Stat(l.path); statErr != nil {
			logger.Warnf("reference layer %s not found at %s, continuing without it", l.id, l.path)
			continue
		}
		err = multierr.Append(err, importLayer(ctx, tb, l.id, l.path))
	}
	return err
}

func importLayer(ctx context.Context, tb *bandstore.Tables, id types.BandID, path string) error {
	r, err := codec.Decode(path)
	if err != nil {
		return fmt.Errorf("reference layer %s: %w", id, err)
	}
	n := tb.Extent()
	switch {
	case r.Rows == n && r.Cols == n:
	case r.Rows == tb.Resolution().TileSize() && r.Cols == r.Rows:
		r = r.Window(n, n)
	default:
		r = resample.Resize(r, n, n, types.Nearest)
	}
	return tb.Set(ctx, id, r.Cast(types.Uint8))
}
