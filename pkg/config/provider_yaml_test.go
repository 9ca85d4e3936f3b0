package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chrissnell/remotesensing/internal/sceneclass"
)

const bandsYAML = `
    bands:
      B01: /src/B01_60m.jp2
      B02: /src/B02_10m.jp2
      B03: /src/B03_10m.jp2
      B04: /src/B04_10m.jp2
      B05: /src/B05_20m.jp2
      B06: /src/B06_20m.jp2
      B07: /src/B07_20m.jp2
      B08: /src/B08_10m.jp2
      B8A: /src/B8A_20m.jp2
      B09: /src/B09_60m.jp2
      B10: /src/B10_60m.jp2
      B11: /src/B11_20m.jp2
      B12: /src/B12_20m.jp2
`

func tileDoc(extra string) string {
	return `processing:
  storage_dir: /data/store
  output_dir: /data/out
` + extra + `
tiles:
  - id: T32TMR
    solar_zenith: 35.2
    solar_azimuth: 160.1
    acquired: "2023-07-14"
    geo:
      ulx: 600000
      uly: 5300040
      epsg: 32632
      hcs_name: WGS84 / UTM zone 32N` + bandsYAML
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(tileDoc("")))
	if err != nil {
		t.Fatal(err)
	}
	p := cfg.Processing
	if p.Resolution != 0 || p.DNScale != 10000 || p.CompressionLevel != 3 || p.OutputFormat != "tif" {
		t.Errorf("unexpected processing defaults: %+v", p)
	}
	if cfg.Thresholds.SceneClass() != sceneclass.DefaultThresholds() {
		t.Errorf("thresholds not defaulted: %+v", cfg.Thresholds)
	}
	if len(cfg.Tiles) != 1 || cfg.Tiles[0].Geo.EPSG != 32632 || cfg.Tiles[0].Bands["B8A"] == "" {
		t.Errorf("unexpected tiles: %+v", cfg.Tiles)
	}
	if cfg.Logging.MaxSizeMB != 100 {
		t.Errorf("logging max size = %d", cfg.Logging.MaxSizeMB)
	}
}

func TestParseOverridesOneThreshold(t *testing.T) {
	cfg, err := Parse([]byte(tileDoc("thresholds:\n  t2_b02: 0.30\n")))
	if err != nil {
		t.Fatal(err)
	}
	want := sceneclass.DefaultThresholds()
	want.T2B02 = 0.30
	if cfg.Thresholds.SceneClass() != want {
		t.Errorf("thresholds = %+v", cfg.Thresholds)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		key  string
	}{
		{"resolution", tileDoc("  resolution: 30\n"), "processing.resolution"},
		{"median", tileDoc("  median_filter: 4\n"), "processing.median_filter"},
		{"format", tileDoc("  output_format: png\n"), "processing.output_format"},
		{"dn scale", tileDoc("  dn_scale: 0\n"), "processing.dn_scale"},
		{"ramp order", tileDoc("thresholds:\n  t2_b04: 0.01\n"), "thresholds.t2_b04"},
		{"cloud order", tileDoc("thresholds:\n  cloud_mp: 0.9\n"), "thresholds.cloud_mp"},
		{"date", strings.Replace(tileDoc(""), "2023-07-14", "14/07/2023", 1), "tiles[T32TMR].acquired"},
		{"missing band", strings.Replace(tileDoc(""), "      B11: /src/B11_20m.jp2\n", "", 1), "no source for B11"},
		{"unknown band", strings.Replace(tileDoc(""), "B01:", "B13:", 1), "unknown band name"},
		{"unknown key", tileDoc("  colour: blue\n"), "colour"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error %q does not mention %q", err, tt.key)
			}
		})
	}
}

func TestSixtyMetreRunNeedsOnlyItsBands(t *testing.T) {
	doc := strings.Replace(tileDoc("  resolution: 60\n"), "      B08: /src/B08_10m.jp2\n", "", 1)
	if _, err := Parse([]byte(doc)); err != nil {
		t.Fatalf("B08 required at 60m: %v", err)
	}
	if _, err := Parse([]byte(strings.Replace(doc, "resolution: 60", "resolution: 10", 1))); err == nil {
		t.Fatal("10m run without B08 accepted")
	}
}

func TestYAMLProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "l2a.yaml")
	if err := os.WriteFile(path, []byte(tileDoc("  workers: 2\n")), 0o644); err != nil {
		t.Fatal(err)
	}
	p := NewYAMLProvider(path)
	defer p.Close()
	cfg, err := p.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Processing.Workers != 2 || !p.IsReadOnly() {
		t.Errorf("workers = %d, read only = %v", cfg.Processing.Workers, p.IsReadOnly())
	}

	if _, err := NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml")).LoadConfig(); !os.IsNotExist(err) {
		t.Errorf("missing file error = %v", err)
	}
}
