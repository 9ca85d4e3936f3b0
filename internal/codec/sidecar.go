package codec

import (
	"fmt"
	"os"

	"github.com/chrissnell/remotesensing/internal/geo"
)

// WriteWorldFile writes the six-line ESRI world file for the grid. The
// reference point is the centre of the upper-left pixel.
func WriteWorldFile(path string, g geo.Context) error {
	gt := g.GeoTransform()
	body := fmt.Sprintf("%.10f\n%.10f\n%.10f\n%.10f\n%.10f\n%.10f\n",
		gt[1], gt[4], gt[2], gt[5], gt[0]+gt[1]/2, gt[3]+gt[5]/2)
	return os.WriteFile(path, []byte(body), 0o644)
}

// WriteFootprint writes the tile outline as a GeoJSON feature collection.
func WriteFootprint(path string, g geo.Context) error {
	fc, err := g.Footprint()
	if err != nil {
		return err
	}
	body, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal footprint: %w", err)
	}
	return os.WriteFile(path, body, 0o644)
}
