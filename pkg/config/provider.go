package config

import "errors"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Processing ProcessingData `json:"processing"`
	Aux        AuxData        `json:"aux,omitempty"`
	Thresholds ThresholdsData `json:"thresholds"`
	Logging    LoggingData    `json:"logging,omitempty"`
	Tiles      []TileData     `json:"tiles"`
}

// ProcessingData holds the run-wide processing settings
type ProcessingData struct {
	Resolution          int     `json:"resolution"`
	TestMode            bool    `json:"test_mode,omitempty"`
	SCOnly              bool    `json:"sc_only,omitempty"`
	MedianFilter        int     `json:"median_filter,omitempty"`
	SenescingVegetation bool    `json:"senescing_vegetation,omitempty"`
	DNScale             float32 `json:"dn_scale"`
	CompressionLevel    int     `json:"compression_level"`
	CacheSize           int     `json:"cache_size"`
	ChunkRows           int     `json:"chunk_rows"`
	OutputFormat        string  `json:"output_format"`
	Downsample60        bool    `json:"downsample_60,omitempty"`
	Workers             int     `json:"workers,omitempty"`
	// ExternalTimeout bounds each external tool invocation, in seconds.
	ExternalTimeout int    `json:"external_timeout"`
	StorageDir      string `json:"storage_dir"`
	OutputDir       string `json:"output_dir"`
	EstimatesFile   string `json:"estimates_file,omitempty"`
	StatusFile      string `json:"status_file,omitempty"`
	UserQualityFile string `json:"user_quality_file,omitempty"`
}

// AuxData locates the a-priori reference layers. Every entry is optional.
type AuxData struct {
	SnowMap          string `json:"snow_map,omitempty"`
	DEMDir           string `json:"dem_dir,omitempty"`
	GDALDEM          string `json:"gdaldem,omitempty"`
	WaterBodies      string `json:"water_bodies,omitempty"`
	LandCover        string `json:"land_cover,omitempty"`
	SnowConditionDir string `json:"snow_condition_dir,omitempty"`
}

// ThresholdsData holds every scene classification threshold
type ThresholdsData struct {
	T1B02          float32 `json:"t1_b02"`
	T2B02          float32 `json:"t2_b02"`
	T1B04          float32 `json:"t1_b04"`
	T2B04          float32 `json:"t2_b04"`
	T1B8A          float32 `json:"t1_b8a"`
	T2B8A          float32 `json:"t2_b8a"`
	T1B10          float32 `json:"t1_b10"`
	T2B10          float32 `json:"t2_b10"`
	T1NDSICloud    float32 `json:"t1_ndsi_cld"`
	T2NDSICloud    float32 `json:"t2_ndsi_cld"`
	T1NDSISnow     float32 `json:"t1_ndsi_snw"`
	T2NDSISnow     float32 `json:"t2_ndsi_snw"`
	T1NDVI         float32 `json:"t1_ndvi"`
	T2NDVI         float32 `json:"t2_ndvi"`
	T1RatioB02B04  float32 `json:"t1_r_b02_b04"`
	T2RatioB02B04  float32 `json:"t2_r_b02_b04"`
	T1RatioB8AB03  float32 `json:"t1_r_b8a_b03"`
	T2RatioB8AB03  float32 `json:"t2_r_b8a_b03"`
	T1RatioB8AB11  float32 `json:"t1_r_b8a_b11"`
	T2RatioB8AB11  float32 `json:"t2_r_b8a_b11"`
	T11B02         float32 `json:"t11_b02"`
	T12B02         float32 `json:"t12_b02"`
	T11RatioB02B11 float32 `json:"t11_r_b02_b11"`
	T12RatioB02B11 float32 `json:"t12_r_b02_b11"`
	T21B12         float32 `json:"t21_b12"`
	T22B12         float32 `json:"t22_b12"`
	T21RatioB02B11 float32 `json:"t21_r_b02_b11"`
	T22RatioB02B11 float32 `json:"t22_r_b02_b11"`
	CloudLP        float32 `json:"cloud_lp"`
	CloudMP        float32 `json:"cloud_mp"`
	CloudHP        float32 `json:"cloud_hp"`
	T1Snow         float32 `json:"t1_snow"`
	T2Snow         float32 `json:"t2_snow"`
	TB02B12        float32 `json:"t_b02_b12_dist"`
}

// LoggingData configures the log sinks
type LoggingData struct {
	Debug      bool   `json:"debug,omitempty"`
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
}

// TileData describes one tile to process
type TileData struct {
	ID string `json:"id"`
	// Bands maps band names such as "B8A" to source files at their native
	// resolution.
	Bands        map[string]string `json:"bands"`
	DEM          string            `json:"dem,omitempty"`
	SolarZenith  float64           `json:"solar_zenith"`
	SolarAzimuth float64           `json:"solar_azimuth"`
	// Acquired is the sensing date, YYYY-MM-DD.
	Acquired string  `json:"acquired,omitempty"`
	Geo      GeoData `json:"geo,omitempty"`
}

// GeoData places a tile on the ground
type GeoData struct {
	ULX     float64 `json:"ulx"`
	ULY     float64 `json:"uly"`
	EPSG    int     `json:"epsg"`
	HCSName string  `json:"hcs_name"`
}
