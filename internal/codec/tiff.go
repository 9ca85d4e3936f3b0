package codec

import (
	"fmt"
	"image"
	"os"

	"golang.org/x/image/tiff"

	"github.com/chrissnell/remotesensing/internal/types"
)

// TIFF handles 8 and 16 bit greyscale TIFF files. Georeferencing travels in a
// world file and a GeoJSON footprint next to the image.
type TIFF struct{}

func (TIFF) Decode(path string) (*types.Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, err
	}
	return fromImage(img)
}

func fromImage(img image.Image) (*types.Raster, error) {
	b := img.Bounds()
	rows, cols := b.Dy(), b.Dx()
	switch m := img.(type) {
	case *image.Gray:
		r := types.NewRaster(rows, cols, types.Uint8)
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				r.Data[y*cols+x] = float32(m.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return r, nil
	case *image.Gray16:
		r := types.NewRaster(rows, cols, types.Uint16)
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				r.Data[y*cols+x] = float32(m.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return r, nil
	case *image.Paletted:
		// palette indices are class codes
		r := types.NewRaster(rows, cols, types.Uint8)
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				r.Data[y*cols+x] = float32(m.ColorIndexAt(b.Min.X+x, b.Min.Y+y))
			}
		}
		return r, nil
	}
	return nil, fmt.Errorf("tiff color model %T: %w", img, ErrUnsupportedFormat)
}

func toImage(r *types.Raster) image.Image {
	rect := image.Rect(0, 0, r.Cols, r.Rows)
	if r.Type == types.Uint8 || r.Type == types.Int8 {
		img := image.NewGray(rect)
		for i, v := range r.Data {
			img.Pix[i] = uint8(types.Uint8.Convert(v))
		}
		return img
	}
	img := image.NewGray16(rect)
	for i, v := range r.Data {
		u := uint16(types.Uint16.Convert(v))
		img.Pix[2*i] = uint8(u >> 8)
		img.Pix[2*i+1] = uint8(u)
	}
	return img
}

func (TIFF) Encode(path string, r *types.Raster, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tiff.Encode(f, toImage(r), &tiff.Options{Compression: tiff.Deflate}); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if opts.Geo.Valid() {
		if err := WriteWorldFile(trimExt(path)+".tfw", opts.Geo); err != nil {
			return err
		}
		if err := WriteFootprint(trimExt(path)+".geojson", opts.Geo); err != nil {
			return err
		}
	}
	return nil
}
