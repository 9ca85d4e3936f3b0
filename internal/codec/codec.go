// Package codec reads and writes single-band source rasters. The format is
// chosen from the file extension.
package codec

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chrissnell/remotesensing/internal/geo"
	"github.com/chrissnell/remotesensing/internal/types"
)

var ErrUnsupportedFormat = errors.New("unsupported raster format")

// Options carries what an encoder needs beyond the samples.
type Options struct {
	Resolution types.Resolution
	// Geo, when valid, is embedded in the file or written to sidecars.
	Geo geo.Context
}

// Codec decodes and encodes one raster format.
type Codec interface {
	Decode(path string) (*types.Raster, error)
	Encode(path string, r *types.Raster, opts Options) error
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Codec{}
)

// Register binds a codec to a lower-case file extension including the dot.
func Register(ext string, c Codec) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(ext)] = c
}

func init() {
	Register(".tif", TIFF{})
	Register(".tiff", TIFF{})
	Register(".img", Raw{})
	Register(".raw", Raw{})
}

// ForPath returns the codec registered for the file's extension.
func ForPath(path string) (Codec, error) {
	ext := strings.ToLower(filepath.Ext(path))
	registryMu.RLock()
	c, ok := registry[ext]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	return c, nil
}

// Decode reads path with the codec for its extension.
func Decode(path string) (*types.Raster, error) {
	c, err := ForPath(path)
	if err != nil {
		return nil, err
	}
	r, err := c.Decode(path)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return r, nil
}

// Encode writes r to path with the codec for its extension.
func Encode(path string, r *types.Raster, opts Options) error {
	c, err := ForPath(path)
	if err != nil {
		return err
	}
	if err := c.Encode(path, r, opts); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

func trimExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}
