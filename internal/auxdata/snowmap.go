// Package auxdata reads the a-priori reference layers: the global snow
// climatology, water bodies, land cover and weekly snow condition.
package auxdata

import (
	"fmt"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/chrissnell/remotesensing/internal/codec"
	"github.com/chrissnell/remotesensing/internal/geo"
	"github.com/chrissnell/remotesensing/internal/types"
)

// SnowMap is a global equirectangular raster whose nonzero pixels mark places
// that have seen snow. Row 0 is 90N, column 0 is 180W.
type SnowMap struct {
	raster *types.Raster
	ppd    float64
}

// LoadSnowMap decodes the climatology raster. Its width must be a whole
// number of pixels per degree of longitude and its height half its width.
func LoadSnowMap(path string) (*SnowMap, error) {
	r, err := codec.Decode(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load snow map: %w", err)
	}
	return NewSnowMap(r)
}

// NewSnowMap wraps a decoded climatology raster.
func NewSnowMap(r *types.Raster) (*SnowMap, error) {
	if r.Cols == 0 || r.Cols%360 != 0 || r.Rows*2 != r.Cols {
		return nil, fmt.Errorf("snow map is %dx%d, want 2:1 with whole pixels per degree", r.Rows, r.Cols)
	}
	return &SnowMap{raster: r, ppd: float64(r.Cols) / 360}, nil
}

// CouldHaveSnow reports whether any climatology pixel under the box spanned by
// the lower-left and upper-right corners is nonzero. A box whose east edge is
// west of its west edge crosses the antimeridian.
func (m *SnowMap) CouldHaveSnow(ll, ur orb.Point) bool {
	cols, rows := m.raster.Cols, m.raster.Rows
	xMin := clamp(int((ll[0]+180)*m.ppd+0.5), 0, cols)
	xMax := clamp(int((ur[0]+180)*m.ppd+0.5), 0, cols)
	yMin := clamp(rows-int((ur[1]+90)*m.ppd+0.5), 0, rows)
	yMax := clamp(rows-int((ll[1]+90)*m.ppd+0.5), 0, rows)
	if yMax <= yMin {
		yMax = min(yMin+1, rows)
		yMin = yMax - 1
	}

	type span struct{ from, to int }
	spans := []span{{xMin, xMax}}
	if xMin >= xMax {
		spans = []span{{xMin, cols}, {0, xMax}}
	}
	for y := yMin; y < yMax; y++ {
		row := m.raster.Data[y*cols : (y+1)*cols]
		for _, s := range spans {
			for x := s.from; x < s.to; x++ {
				if row[x] > 0 {
					return true
				}
			}
		}
	}
	return false
}

// SceneCouldHaveSnow checks the tile described by g against the map at path.
// A missing or unreadable map is logged and treated as "snow possible".
func SceneCouldHaveSnow(path string, g geo.Context, logger *zap.SugaredLogger) bool {
	if path == "" {
		logger.Warnf("no snow climatology configured, snow detection enabled for tile %s", g.TileID)
		return true
	}
	m, err := LoadSnowMap(path)
	if err != nil {
		logger.Errorf("snow climatology %s unavailable: %v", path, err)
		return true
	}
	ll, ur, err := g.Corners()
	if err != nil {
		logger.Warnf("tile %s has no geocoding, snow detection enabled: %v", g.TileID, err)
		return true
	}
	return m.CouldHaveSnow(ll, ur)
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
