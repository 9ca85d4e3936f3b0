// Package geo carries the per-tile georeferencing the pipeline is given: the
// projected upper-left corner, pixel spacing and UTM zone of each resolution.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/chrissnell/remotesensing/internal/types"
)

var ErrNoGeocoding = errors.New("tile has no geocoding")

// Context describes the grid of one tile at one resolution.
type Context struct {
	TileID     string
	Resolution types.Resolution
	ULX        float64
	ULY        float64
	Rows       int
	Cols       int
	EPSG       int
	HCSName    string
	Zone       int
	North      bool
}

// NewContext builds a context from the horizontal coordinate system name, for
// example "WGS84 / UTM zone 32N".
func NewContext(tileID string, res types.Resolution, ulx, uly float64, rows, cols, epsg int, hcsName string) (Context, error) {
	zone, north, err := ParseHCSName(hcsName)
	if err != nil {
		return Context{}, err
	}
	return Context{
		TileID:     tileID,
		Resolution: res,
		ULX:        ulx,
		ULY:        uly,
		Rows:       rows,
		Cols:       cols,
		EPSG:       epsg,
		HCSName:    hcsName,
		Zone:       zone,
		North:      north,
	}, nil
}

// At returns the same tile at another resolution and extent.
func (c Context) At(res types.Resolution, rows, cols int) Context {
	c.Resolution = res
	c.Rows = rows
	c.Cols = cols
	return c
}

// Valid reports whether the context was populated.
func (c Context) Valid() bool {
	return c.Zone > 0 && c.Rows > 0 && c.Cols > 0 && c.Resolution.Valid()
}

// GeoTransform returns the affine transform in GDAL order.
func (c Context) GeoTransform() [6]float64 {
	px := float64(c.Resolution)
	return [6]float64{c.ULX, px, 0, c.ULY, 0, -px}
}

// Bound returns the projected extent.
func (c Context) Bound() orb.Bound {
	px := float64(c.Resolution)
	return orb.Bound{
		Min: orb.Point{c.ULX, c.ULY - float64(c.Rows)*px},
		Max: orb.Point{c.ULX + float64(c.Cols)*px, c.ULY},
	}
}

// WGS84Bound returns the geographic envelope of the four projected corners.
func (c Context) WGS84Bound() (orb.Bound, error) {
	if !c.Valid() {
		return orb.Bound{}, ErrNoGeocoding
	}
	b := c.Bound()
	corners := []orb.Point{
		b.Min,
		{b.Min[0], b.Max[1]},
		b.Max,
		{b.Max[0], b.Min[1]},
	}
	var out orb.Bound
	for i, p := range corners {
		lon, lat := UTMToWGS84(p[0], p[1], c.Zone, c.North)
		if i == 0 {
			out = orb.Point{lon, lat}.Bound()
			continue
		}
		out = out.Extend(orb.Point{lon, lat})
	}
	return out, nil
}

// Corners returns the lower-left and upper-right corners in WGS84 with
// longitudes normalized to [-180, 180). A tile spanning the antimeridian has
// ur[0] < ll[0].
func (c Context) Corners() (ll, ur orb.Point, err error) {
	if !c.Valid() {
		return ll, ur, ErrNoGeocoding
	}
	b := c.Bound()
	lon, lat := UTMToWGS84(b.Min[0], b.Min[1], c.Zone, c.North)
	ll = orb.Point{normalizeLon(lon), lat}
	lon, lat = UTMToWGS84(b.Max[0], b.Max[1], c.Zone, c.North)
	ur = orb.Point{normalizeLon(lon), lat}
	return ll, ur, nil
}

func normalizeLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// Footprint returns the tile outline as a GeoJSON feature collection in WGS84.
func (c Context) Footprint() (*geojson.FeatureCollection, error) {
	b, err := c.WGS84Bound()
	if err != nil {
		return nil, err
	}
	f := geojson.NewFeature(b.ToPolygon())
	f.Properties["tile_id"] = c.TileID
	f.Properties["resolution"] = int(c.Resolution)
	f.Properties["epsg"] = c.EPSG
	f.Properties["hcs_name"] = c.HCSName
	f.Properties["ulx"] = c.ULX
	f.Properties["uly"] = c.ULY

	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	return fc, nil
}

// ParseHCSName extracts zone and hemisphere from names like
// "WGS84 / UTM zone 32N".
func ParseHCSName(name string) (zone int, north bool, err error) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return 0, false, fmt.Errorf("empty horizontal coordinate system name")
	}
	z := strings.ToUpper(fields[len(fields)-1])
	if len(z) < 2 {
		return 0, false, fmt.Errorf("cannot parse UTM zone from %q", name)
	}
	hemi := z[len(z)-1]
	zone, err = strconv.Atoi(z[:len(z)-1])
	if err != nil || zone < 1 || zone > 60 {
		return 0, false, fmt.Errorf("cannot parse UTM zone from %q", name)
	}
	switch {
	case hemi == 'N':
		north = true
	case hemi == 'S':
		north = false
	case hemi >= 'N' && hemi <= 'X':
		// MGRS latitude band letters
		north = true
	case hemi >= 'C' && hemi < 'N':
		north = false
	default:
		return 0, false, fmt.Errorf("cannot parse hemisphere from %q", name)
	}
	return zone, north, nil
}

// UTMToWGS84 inverts the transverse Mercator projection on the WGS84
// ellipsoid.
func UTMToWGS84(easting, northing float64, zone int, north bool) (lon, lat float64) {
	const (
		a  = 6378137.0
		f  = 1 / 298.257223563
		k0 = 0.9996
	)
	e2 := f * (2 - f)
	ep2 := e2 / (1 - e2)
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))

	x := easting - 500000
	y := northing
	if !north {
		y -= 10000000
	}

	m := y / k0
	mu := m / (a * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))
	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sin1, cos1, tan1 := math.Sin(phi1), math.Cos(phi1), math.Tan(phi1)
	n1 := a / math.Sqrt(1-e2*sin1*sin1)
	t1 := tan1 * tan1
	c1 := ep2 * cos1 * cos1
	r1 := a * (1 - e2) / math.Pow(1-e2*sin1*sin1, 1.5)
	d := x / (n1 * k0)

	latRad := phi1 - (n1*tan1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)
	lonRad := (d - (1+2*t1+c1)*math.Pow(d, 3)/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120) / cos1

	lon0 := float64((zone-1)*6-180+3) * math.Pi / 180
	return (lon0 + lonRad) * 180 / math.Pi, latRad * 180 / math.Pi
}
