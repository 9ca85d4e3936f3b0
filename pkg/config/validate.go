package config

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/chrissnell/remotesensing/internal/sceneclass"
	"github.com/chrissnell/remotesensing/internal/types"
)

// AcquiredLayout is the date format of TileData.Acquired.
const AcquiredLayout = "2006-01-02"

func defaultThresholds() ThresholdsYAML {
	return ThresholdsYAML(FromSceneClass(sceneclass.DefaultThresholds()))
}

// FromSceneClass converts classifier thresholds to their configuration form.
func FromSceneClass(t sceneclass.Thresholds) ThresholdsData {
	return ThresholdsData(t)
}

// SceneClass converts the configured thresholds for the classifier.
func (t ThresholdsData) SceneClass() sceneclass.Thresholds {
	return sceneclass.Thresholds(t)
}

func invalid(key string, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, key, fmt.Sprintf(format, args...))
}

// Validate checks the whole configuration and reports every problem found.
func (c *ConfigData) Validate() error {
	var err error
	err = multierr.Append(err, c.Processing.validate())
	err = multierr.Append(err, c.Thresholds.validate())
	for i, tile := range c.Tiles {
		err = multierr.Append(err, tile.validate(i, c.Processing.Resolution))
	}
	return err
}

func (p ProcessingData) validate() error {
	var err error
	switch p.Resolution {
	case 0, 10, 20, 60:
	default:
		err = multierr.Append(err, invalid("processing.resolution", "%d is not one of 0, 10, 20, 60", p.Resolution))
	}
	if p.DNScale <= 0 {
		err = multierr.Append(err, invalid("processing.dn_scale", "must be positive"))
	}
	if p.MedianFilter < 0 || (p.MedianFilter > 0 && p.MedianFilter%2 == 0) {
		err = multierr.Append(err, invalid("processing.median_filter", "%d must be 0 or odd", p.MedianFilter))
	}
	if p.CompressionLevel < 1 || p.CompressionLevel > 22 {
		err = multierr.Append(err, invalid("processing.compression_level", "%d is outside 1-22", p.CompressionLevel))
	}
	if p.CacheSize < 0 {
		err = multierr.Append(err, invalid("processing.cache_size", "must not be negative"))
	}
	if p.ChunkRows <= 0 {
		err = multierr.Append(err, invalid("processing.chunk_rows", "must be positive"))
	}
	switch p.OutputFormat {
	case "jp2", "tif", "raw":
	default:
		err = multierr.Append(err, invalid("processing.output_format", "%q is not one of jp2, tif, raw", p.OutputFormat))
	}
	if p.Workers < 0 {
		err = multierr.Append(err, invalid("processing.workers", "must not be negative"))
	}
	if p.ExternalTimeout <= 0 {
		err = multierr.Append(err, invalid("processing.external_timeout", "must be positive"))
	}
	if p.StorageDir == "" {
		err = multierr.Append(err, invalid("processing.storage_dir", "is required"))
	}
	if p.OutputDir == "" {
		err = multierr.Append(err, invalid("processing.output_dir", "is required"))
	}
	return err
}

func (t ThresholdsData) validate() error {
	var err error
	pairs := []struct {
		key    string
		t1, t2 float32
	}{
		{"t2_b02", t.T1B02, t.T2B02},
		{"t2_b04", t.T1B04, t.T2B04},
		{"t2_b8a", t.T1B8A, t.T2B8A},
		{"t2_b10", t.T1B10, t.T2B10},
		{"t2_ndsi_cld", t.T1NDSICloud, t.T2NDSICloud},
		{"t2_ndsi_snw", t.T1NDSISnow, t.T2NDSISnow},
		{"t2_ndvi", t.T1NDVI, t.T2NDVI},
		{"t2_r_b02_b04", t.T1RatioB02B04, t.T2RatioB02B04},
		{"t2_r_b8a_b03", t.T1RatioB8AB03, t.T2RatioB8AB03},
		{"t2_r_b8a_b11", t.T1RatioB8AB11, t.T2RatioB8AB11},
		{"t12_r_b02_b11", t.T11RatioB02B11, t.T12RatioB02B11},
		{"t22_r_b02_b11", t.T21RatioB02B11, t.T22RatioB02B11},
		{"t2_snow", t.T1Snow, t.T2Snow},
	}
	for _, p := range pairs {
		if p.t2 <= p.t1 {
			err = multierr.Append(err, invalid("thresholds."+p.key, "%v must exceed %v", p.t2, p.t1))
		}
	}
	if !(t.CloudLP <= t.CloudMP && t.CloudMP <= t.CloudHP) {
		err = multierr.Append(err, invalid("thresholds.cloud_mp", "cloud probabilities %v, %v, %v are not ascending", t.CloudLP, t.CloudMP, t.CloudHP))
	}
	if t.CloudHP > 1 {
		err = multierr.Append(err, invalid("thresholds.cloud_hp", "%v exceeds 1", t.CloudHP))
	}
	if t.TB02B12 <= 0 {
		err = multierr.Append(err, invalid("thresholds.t_b02_b12_dist", "must be positive"))
	}
	return err
}

// RequiredBands returns the reflectance bands a run at res reads.
func RequiredBands(res int) []types.BandID {
	plan := []types.Resolution{types.Resolution(res)}
	if res == 0 {
		plan = []types.Resolution{types.R20, types.R10}
	}
	seen := make(map[types.BandID]bool)
	var out []types.BandID
	for _, r := range plan {
		for _, id := range types.ReflectanceBands(r) {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func (t TileData) validate(i int, res int) error {
	key := fmt.Sprintf("tiles[%d]", i)
	if t.ID == "" {
		return invalid(key+".id", "is required")
	}
	key = fmt.Sprintf("tiles[%s]", t.ID)

	var err error
	for name := range t.Bands {
		if _, perr := types.ParseBandID(name); perr != nil {
			err = multierr.Append(err, invalid(key+".bands", "%v", perr))
		}
	}
	for _, id := range RequiredBands(res) {
		if t.Bands[id.String()] == "" {
			err = multierr.Append(err, invalid(key+".bands", "no source for %s", id))
		}
	}
	if t.SolarZenith < 0 || t.SolarZenith > 180 {
		err = multierr.Append(err, invalid(key+".solar_zenith", "%v is outside 0-180", t.SolarZenith))
	}
	if t.Acquired != "" {
		if _, perr := time.Parse(AcquiredLayout, t.Acquired); perr != nil {
			err = multierr.Append(err, invalid(key+".acquired", "%q is not YYYY-MM-DD", t.Acquired))
		}
	}
	if t.Geo.HCSName != "" && t.Geo.EPSG == 0 {
		err = multierr.Append(err, invalid(key+".geo.epsg", "is required with hcs_name"))
	}
	return err
}
