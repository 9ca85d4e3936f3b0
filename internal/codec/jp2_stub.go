//go:build !gdal

package codec

import (
	"fmt"

	"github.com/chrissnell/remotesensing/internal/types"
)

func init() {
	Register(".jp2", JP2{})
}

// JP2 without GDAL support always fails so callers can fall back to TIFF or
// raw output. Build with -tags gdal to enable it.
type JP2 struct{}

func (JP2) Decode(path string) (*types.Raster, error) {
	return nil, fmt.Errorf("jp2 needs the gdal build tag: %w", ErrUnsupportedFormat)
}

func (JP2) Encode(path string, r *types.Raster, opts Options) error {
	return fmt.Errorf("jp2 needs the gdal build tag: %w", ErrUnsupportedFormat)
}
