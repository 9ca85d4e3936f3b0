//go:build gdal

package codec

import (
	"fmt"
	"os"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/google/uuid"

	"github.com/chrissnell/remotesensing/internal/types"
)

var registerOnce sync.Once

func init() {
	Register(".jp2", JP2{})
}

// JP2 reads and writes JPEG2000 through GDAL's OpenJPEG driver.
type JP2 struct{}

func gdalType(dt types.DataType) godal.DataType {
	switch dt {
	case types.Uint8, types.Int8:
		return godal.Byte
	case types.Int16:
		return godal.Int16
	case types.Uint32:
		return godal.UInt32
	case types.Int32:
		return godal.Int32
	case types.Float32:
		return godal.Float32
	case types.Float64:
		return godal.Float64
	}
	return godal.UInt16
}

func fromGDALType(dt godal.DataType) types.DataType {
	switch dt {
	case godal.Byte:
		return types.Uint8
	case godal.Int16:
		return types.Int16
	case godal.UInt32:
		return types.Uint32
	case godal.Int32:
		return types.Int32
	case godal.Float32:
		return types.Float32
	case godal.Float64:
		return types.Float64
	}
	return types.Uint16
}

func (JP2) Decode(path string) (*types.Raster, error) {
	registerOnce.Do(godal.RegisterAll)

	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, fmt.Errorf("%s has no raster band", path)
	}
	st := bands[0].Structure()
	r := types.NewRaster(st.SizeY, st.SizeX, fromGDALType(st.DataType))
	if err := bands[0].Read(0, 0, r.Data, st.SizeX, st.SizeY); err != nil {
		return nil, err
	}
	return r, nil
}

// jp2Layout returns tile, codeblock and precinct sizes per resolution.
func jp2Layout(res types.Resolution) (tile, codeblock, precinct int) {
	switch res {
	case types.R60:
		return 192, 4, 64
	case types.R20:
		return 640, 8, 128
	}
	return 1024, 64, 256
}

func (JP2) Encode(path string, r *types.Raster, opts Options) error {
	registerOnce.Do(godal.RegisterAll)

	tmp := fmt.Sprintf("%s.%s.tif", path, uuid.NewString())
	defer os.Remove(tmp)

	src, err := godal.Create(godal.GTiff, tmp, 1, gdalType(r.Type), r.Cols, r.Rows)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := src.Bands()[0].Write(0, 0, r.Data, r.Cols, r.Rows); err != nil {
		return err
	}
	if g := opts.Geo; g.Valid() {
		if err := src.SetGeoTransform(g.GeoTransform()); err != nil {
			return fmt.Errorf("set geotransform: %w", err)
		}
		if g.EPSG > 0 {
			sr, err := godal.NewSpatialRefFromEPSG(g.EPSG)
			if err != nil {
				return fmt.Errorf("spatial ref EPSG:%d: %w", g.EPSG, err)
			}
			defer sr.Close()
			if err := src.SetSpatialRef(sr); err != nil {
				return fmt.Errorf("set spatial ref: %w", err)
			}
		}
	}

	tile, cb, prec := jp2Layout(opts.Resolution)
	switches := []string{
		"-of", "JP2OpenJPEG",
		"-co", "QUALITY=100",
		"-co", "REVERSIBLE=YES",
		"-co", "PROGRESSION=LRCP",
		"-co", fmt.Sprintf("BLOCKXSIZE=%d", tile),
		"-co", fmt.Sprintf("BLOCKYSIZE=%d", tile),
		"-co", fmt.Sprintf("CODEBLOCK_WIDTH=%d", cb),
		"-co", fmt.Sprintf("CODEBLOCK_HEIGHT=%d", cb),
		"-co", fmt.Sprintf("PRECINCTS={%d,%d}", prec, prec),
		"-co", "GMLJP2=YES",
	}
	out, err := src.Translate(path, switches)
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if opts.Geo.Valid() {
		return WriteFootprint(trimExt(path)+".geojson", opts.Geo)
	}
	return nil
}
