package tile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/remotesensing/internal/bandstore"
	"github.com/chrissnell/remotesensing/internal/geo"
	"github.com/chrissnell/remotesensing/internal/types"
)

var products = []types.BandID{types.SCL, types.SNW, types.CLD, types.AOT, types.WVP, types.VIS}

func extension(format string) string {
	switch format {
	case "jp2":
		return ".jp2"
	case "raw":
		return ".img"
	}
	return ".tif"
}

// ProductPath returns the exported file of band id of tile at res.
func ProductPath(dir, tile string, id types.BandID, res types.Resolution, format string) string {
	return filepath.Join(dir, tile, fmt.Sprintf("R%dm", int(res)),
		fmt.Sprintf("%s_%s_%dm%s", tile, id, int(res), extension(format)))
}

// export writes the reflectance bands, the classification products and the
// true colour image of tb. Products the tables cannot provide are skipped.
func (c *Controller) export(ctx context.Context, tb *bandstore.Tables, job Job, g geo.Context) error {
	res := tb.Resolution()
	if err := os.MkdirAll(filepath.Dir(ProductPath(c.opts.OutputDir, job.Tile, types.SCL, res, c.opts.OutputFormat)), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	ids := append(types.ReflectanceBands(res), products...)
	var n int
	for _, id := range ids {
		path := ProductPath(c.opts.OutputDir, job.Tile, id, res, c.opts.OutputFormat)
		err := tb.ExportToSource(ctx, id, path, g)
		if bandstore.IsNotFound(err) && !id.IsReflectance() {
			continue
		}
		if err != nil {
			return err
		}
		n++
	}
	if err := c.exportTCI(ctx, tb, job); err != nil {
		return err
	}
	c.logger.Debugf("exported %d bands of %s at %s", n, job.Tile, res)
	return nil
}

// tciScale maps reflectance DN to the 1-255 display range; 0 stays no data.
func tciScale(v float32) float32 {
	if v <= 0 {
		return 0
	}
	if v > 2500 {
		v = 2500
	}
	return float32(uint8(v*254/2500 + 1))
}

// exportTCI builds the B04/B03/B02 composite through the temporary area. The
// result is stored band sequentially: red rows, then green, then blue.
func (c *Controller) exportTCI(ctx context.Context, tb *bandstore.Tables, job Job) error {
	channels := []types.BandID{types.B04, types.B03, types.B02}
	for _, id := range channels {
		b, err := tb.Raw(ctx, id)
		if err != nil {
			return fmt.Errorf("true colour %s: %w", id, err)
		}
		scaled := types.NewRaster(b.Rows, b.Cols, types.Uint8)
		for i, v := range b.Data {
			scaled.Data[i] = tciScale(v)
		}
		if err := tb.SetTmp(ctx, id, scaled); err != nil {
			return err
		}
	}

	var tci *types.Raster
	for k, id := range channels {
		b, err := tb.GetTmp(ctx, id)
		if err != nil {
			return err
		}
		if tci == nil {
			tci = types.NewRaster(3*b.Rows, b.Cols, types.Uint8)
		}
		copy(tci.Data[k*b.Len():], b.Data)
		if err := tb.RemoveTmp(ctx, id); err != nil {
			return err
		}
	}
	if err := tb.SetTmp(ctx, types.TCI, tci); err != nil {
		return err
	}
	path := ProductPath(c.opts.OutputDir, job.Tile, types.TCI, tb.Resolution(), c.opts.OutputFormat)
	return tb.ExportTmp(ctx, types.TCI, path, geo.Context{})
}
