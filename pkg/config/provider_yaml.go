package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads, defaults and validates the configuration file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	if y.config != nil {
		return y.config, nil
	}
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}
	config, err := Parse(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", y.filename, err)
	}
	y.config = config
	return config, nil
}

// Parse decodes a YAML document into validated configuration data. Keys that
// are absent take their defaults.
func Parse(doc []byte) (*ConfigData, error) {
	yamlConfig := struct {
		Processing ProcessingYAML `yaml:"processing"`
		Aux        AuxYAML        `yaml:"aux,omitempty"`
		Thresholds ThresholdsYAML `yaml:"thresholds,omitempty"`
		Logging    LoggingYAML    `yaml:"logging,omitempty"`
		Tiles      []TileYAML     `yaml:"tiles"`
	}{
		Processing: defaultProcessing(),
		Thresholds: defaultThresholds(),
		Logging:    LoggingYAML{MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30},
	}
	if err := yaml.UnmarshalStrict(doc, &yamlConfig); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	p := yamlConfig.Processing
	config := &ConfigData{
		Processing: ProcessingData{
			Resolution:          p.Resolution,
			TestMode:            p.TestMode,
			SCOnly:              p.SCOnly,
			MedianFilter:        p.MedianFilter,
			SenescingVegetation: p.SenescingVegetation,
			DNScale:             p.DNScale,
			CompressionLevel:    p.CompressionLevel,
			CacheSize:           p.CacheSize,
			ChunkRows:           p.ChunkRows,
			OutputFormat:        p.OutputFormat,
			Downsample60:        p.Downsample60,
			Workers:             p.Workers,
			ExternalTimeout:     p.ExternalTimeout,
			StorageDir:          p.StorageDir,
			OutputDir:           p.OutputDir,
			EstimatesFile:       p.EstimatesFile,
			StatusFile:          p.StatusFile,
			UserQualityFile:     p.UserQualityFile,
		},
		Aux: AuxData{
			SnowMap:          yamlConfig.Aux.SnowMap,
			DEMDir:           yamlConfig.Aux.DEMDir,
			GDALDEM:          yamlConfig.Aux.GDALDEM,
			WaterBodies:      yamlConfig.Aux.WaterBodies,
			LandCover:        yamlConfig.Aux.LandCover,
			SnowConditionDir: yamlConfig.Aux.SnowConditionDir,
		},
		Thresholds: ThresholdsData(yamlConfig.Thresholds),
		Logging: LoggingData{
			Debug:      yamlConfig.Logging.Debug,
			File:       yamlConfig.Logging.File,
			MaxSizeMB:  yamlConfig.Logging.MaxSizeMB,
			MaxBackups: yamlConfig.Logging.MaxBackups,
			MaxAgeDays: yamlConfig.Logging.MaxAgeDays,
		},
		Tiles: make([]TileData, len(yamlConfig.Tiles)),
	}

	for i, tile := range yamlConfig.Tiles {
		config.Tiles[i] = TileData{
			ID:           tile.ID,
			Bands:        tile.Bands,
			DEM:          tile.DEM,
			SolarZenith:  tile.SolarZenith,
			SolarAzimuth: tile.SolarAzimuth,
			Acquired:     tile.Acquired,
			Geo: GeoData{
				ULX:     tile.Geo.ULX,
				ULY:     tile.Geo.ULY,
				EPSG:    tile.Geo.EPSG,
				HCSName: tile.Geo.HCSName,
			},
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

func defaultProcessing() ProcessingYAML {
	return ProcessingYAML{
		DNScale:          10000,
		CompressionLevel: 3,
		CacheSize:        16,
		ChunkRows:        256,
		OutputFormat:     "tif",
		Downsample60:     true,
		ExternalTimeout:  300,
		StorageDir:       "./l2a-store",
		OutputDir:        "./l2a-out",
	}
}

// YAML-specific structs with proper YAML tags
type ProcessingYAML struct {
	Resolution          int     `yaml:"resolution"`
	TestMode            bool    `yaml:"test_mode,omitempty"`
	SCOnly              bool    `yaml:"sc_only,omitempty"`
	MedianFilter        int     `yaml:"median_filter,omitempty"`
	SenescingVegetation bool    `yaml:"senescing_vegetation,omitempty"`
	DNScale             float32 `yaml:"dn_scale"`
	CompressionLevel    int     `yaml:"compression_level"`
	CacheSize           int     `yaml:"cache_size"`
	ChunkRows           int     `yaml:"chunk_rows"`
	OutputFormat        string  `yaml:"output_format"`
	Downsample60        bool    `yaml:"downsample_60"`
	Workers             int     `yaml:"workers,omitempty"`
	ExternalTimeout     int     `yaml:"external_timeout"`
	StorageDir          string  `yaml:"storage_dir"`
	OutputDir           string  `yaml:"output_dir"`
	EstimatesFile       string  `yaml:"estimates_file,omitempty"`
	StatusFile          string  `yaml:"status_file,omitempty"`
	UserQualityFile     string  `yaml:"user_quality_file,omitempty"`
}

type AuxYAML struct {
	SnowMap          string `yaml:"snow_map,omitempty"`
	DEMDir           string `yaml:"dem_dir,omitempty"`
	GDALDEM          string `yaml:"gdaldem,omitempty"`
	WaterBodies      string `yaml:"water_bodies,omitempty"`
	LandCover        string `yaml:"land_cover,omitempty"`
	SnowConditionDir string `yaml:"snow_condition_dir,omitempty"`
}

type ThresholdsYAML struct {
	T1B02          float32 `yaml:"t1_b02"`
	T2B02          float32 `yaml:"t2_b02"`
	T1B04          float32 `yaml:"t1_b04"`
	T2B04          float32 `yaml:"t2_b04"`
	T1B8A          float32 `yaml:"t1_b8a"`
	T2B8A          float32 `yaml:"t2_b8a"`
	T1B10          float32 `yaml:"t1_b10"`
	T2B10          float32 `yaml:"t2_b10"`
	T1NDSICloud    float32 `yaml:"t1_ndsi_cld"`
	T2NDSICloud    float32 `yaml:"t2_ndsi_cld"`
	T1NDSISnow     float32 `yaml:"t1_ndsi_snw"`
	T2NDSISnow     float32 `yaml:"t2_ndsi_snw"`
	T1NDVI         float32 `yaml:"t1_ndvi"`
	T2NDVI         float32 `yaml:"t2_ndvi"`
	T1RatioB02B04  float32 `yaml:"t1_r_b02_b04"`
	T2RatioB02B04  float32 `yaml:"t2_r_b02_b04"`
	T1RatioB8AB03  float32 `yaml:"t1_r_b8a_b03"`
	T2RatioB8AB03  float32 `yaml:"t2_r_b8a_b03"`
	T1RatioB8AB11  float32 `yaml:"t1_r_b8a_b11"`
	T2RatioB8AB11  float32 `yaml:"t2_r_b8a_b11"`
	T11B02         float32 `yaml:"t11_b02"`
	T12B02         float32 `yaml:"t12_b02"`
	T11RatioB02B11 float32 `yaml:"t11_r_b02_b11"`
	T12RatioB02B11 float32 `yaml:"t12_r_b02_b11"`
	T21B12         float32 `yaml:"t21_b12"`
	T22B12         float32 `yaml:"t22_b12"`
	T21RatioB02B11 float32 `yaml:"t21_r_b02_b11"`
	T22RatioB02B11 float32 `yaml:"t22_r_b02_b11"`
	CloudLP        float32 `yaml:"cloud_lp"`
	CloudMP        float32 `yaml:"cloud_mp"`
	CloudHP        float32 `yaml:"cloud_hp"`
	T1Snow         float32 `yaml:"t1_snow"`
	T2Snow         float32 `yaml:"t2_snow"`
	TB02B12        float32 `yaml:"t_b02_b12_dist"`
}

type LoggingYAML struct {
	Debug      bool   `yaml:"debug,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

type TileYAML struct {
	ID           string            `yaml:"id"`
	Bands        map[string]string `yaml:"bands"`
	DEM          string            `yaml:"dem,omitempty"`
	SolarZenith  float64           `yaml:"solar_zenith"`
	SolarAzimuth float64           `yaml:"solar_azimuth"`
	Acquired     string            `yaml:"acquired,omitempty"`
	Geo          GeoYAML           `yaml:"geo,omitempty"`
}

type GeoYAML struct {
	ULX     float64 `yaml:"ulx"`
	ULY     float64 `yaml:"uly"`
	EPSG    int     `yaml:"epsg"`
	HCSName string  `yaml:"hcs_name"`
}
