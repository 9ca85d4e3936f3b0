// Package quality derives per-class coverage percentages from a finished
// classification mask and keeps them in YAML side files.
package quality

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v2"

	"github.com/chrissnell/remotesensing/internal/filelock"
	"github.com/chrissnell/remotesensing/internal/types"
)

// Indicators are coverage percentages of one mask. NoData is relative to all
// pixels, every other class to the valid pixels.
type Indicators struct {
	NoData             float64 `yaml:"nodata_pixel_percentage"`
	SaturatedDefective float64 `yaml:"saturated_defective_pixel_percentage"`
	DarkFeatures       float64 `yaml:"dark_features_percentage"`
	CloudShadow        float64 `yaml:"cloud_shadow_percentage"`
	Vegetation         float64 `yaml:"vegetation_percentage"`
	NotVegetated       float64 `yaml:"not_vegetated_percentage"`
	Water              float64 `yaml:"water_percentage"`
	Unclassified       float64 `yaml:"unclassified_percentage"`
	MediumProba        float64 `yaml:"medium_proba_clouds_percentage"`
	HighProba          float64 `yaml:"high_proba_clouds_percentage"`
	ThinCirrus         float64 `yaml:"thin_cirrus_percentage"`
	Snow               float64 `yaml:"snow_ice_percentage"`
	// Cloud is the sum of medium and high probability cloud and cirrus.
	Cloud float64 `yaml:"cloudy_pixel_percentage"`
}

// Compute counts the classes of mask.
func Compute(mask []types.Class) Indicators {
	var counts [types.SnowIce + 1]int
	for _, c := range mask {
		if c <= types.SnowIce {
			counts[c]++
		}
	}
	valid := len(mask) - counts[types.NoData]
	pct := func(c types.Class) float64 {
		if valid == 0 {
			return 0
		}
		return 100 * float64(counts[c]) / float64(valid)
	}
	q := Indicators{
		SaturatedDefective: pct(types.SaturatedDefective),
		DarkFeatures:       pct(types.DarkFeatures),
		CloudShadow:        pct(types.CloudShadows),
		Vegetation:         pct(types.Vegetation),
		NotVegetated:       pct(types.NotVegetated),
		Water:              pct(types.Water),
		Unclassified:       pct(types.Unclassified),
		MediumProba:        pct(types.CloudMediumProba),
		HighProba:          pct(types.CloudHighProba),
		ThinCirrus:         pct(types.ThinCirrus),
		Snow:               pct(types.SnowIce),
	}
	if len(mask) > 0 {
		q.NoData = 100 * float64(counts[types.NoData]) / float64(len(mask))
	}
	q.Cloud = clip(q.MediumProba + q.HighProba + q.ThinCirrus)
	return q
}

func (q Indicators) classes() []float64 {
	return []float64{
		q.SaturatedDefective, q.DarkFeatures, q.CloudShadow, q.Vegetation,
		q.NotVegetated, q.Water, q.Unclassified, q.MediumProba, q.HighProba,
		q.ThinCirrus, q.Snow,
	}
}

// Total returns the sum of the class percentages, no-data and the cloud
// aggregate excluded. It is 100 for any mask with valid pixels.
func (q Indicators) Total() float64 {
	return floats.Sum(q.classes())
}

func clip(v float64) float64 {
	return math.Min(math.Max(v, 0), 100)
}

// TileReport is the content of a tile quality file.
type TileReport struct {
	Tile       string     `yaml:"tile"`
	Resolution int        `yaml:"resolution"`
	Generated  time.Time  `yaml:"generated"`
	Indicators Indicators `yaml:"indicators"`
}

// TilePath returns the quality file of tile inside dir.
func TilePath(dir, tile string) string {
	return filepath.Join(dir, tile+"_QI.yaml")
}

// WriteTile stores r at path, replacing any earlier report.
func WriteTile(ctx context.Context, path string, r TileReport) error {
	return filelock.With(ctx, path, func() error {
		return writeYAML(path, r)
	})
}

// ReadTile loads a report written by WriteTile.
func ReadTile(path string) (TileReport, error) {
	var r TileReport
	err := readYAML(path, &r)
	return r, err
}

// UserReport is the running average over every tile processed with one
// user-level quality file.
type UserReport struct {
	Tiles      int        `yaml:"tiles"`
	Updated    time.Time  `yaml:"updated"`
	Indicators Indicators `yaml:"indicators"`
}

// UpdateUser folds q into the running average stored at path and returns the
// new average. The file is created when missing.
func UpdateUser(ctx context.Context, path string, q Indicators) (UserReport, error) {
	var out UserReport
	err := filelock.With(ctx, path, func() error {
		var cur UserReport
		if err := readYAML(path, &cur); err != nil && !os.IsNotExist(err) {
			return err
		}
		out = cur.fold(q)
		return writeYAML(path, out)
	})
	return out, err
}

func (u UserReport) fold(q Indicators) UserReport {
	n := float64(u.Tiles + 1)
	avg := func(old, v float64) float64 {
		return clip((old*(n-1) + v) / n)
	}
	o := u.Indicators
	return UserReport{
		Tiles:   u.Tiles + 1,
		Updated: time.Now().UTC(),
		Indicators: Indicators{
			NoData:             avg(o.NoData, q.NoData),
			SaturatedDefective: avg(o.SaturatedDefective, q.SaturatedDefective),
			DarkFeatures:       avg(o.DarkFeatures, q.DarkFeatures),
			CloudShadow:        avg(o.CloudShadow, q.CloudShadow),
			Vegetation:         avg(o.Vegetation, q.Vegetation),
			NotVegetated:       avg(o.NotVegetated, q.NotVegetated),
			Water:              avg(o.Water, q.Water),
			Unclassified:       avg(o.Unclassified, q.Unclassified),
			MediumProba:        avg(o.MediumProba, q.MediumProba),
			HighProba:          avg(o.HighProba, q.HighProba),
			ThinCirrus:         avg(o.ThinCirrus, q.ThinCirrus),
			Snow:               avg(o.Snow, q.Snow),
			Cloud:              avg(o.Cloud, q.Cloud),
		},
	}
}

func readYAML(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func writeYAML(path string, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}
