package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"lod-engine/src/helpers"
	"lod-engine/src/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimal = `
name: test
host: 127.0.0.1
port: 8000
storage:
  db_type: sqlite
  db_path: test.db
series:
  - id: btc
  - id: eth
    kind: candles
    pane: crypto
`

func TestNewConfig_AppliesDefaults(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, minimal))
	if err != nil {
		t.Fatal(err)
	}

	e := cfg.Engine
	if e.PrefetchRatio != DefaultPrefetchRatio || e.LodHysteresisRatio != DefaultLodHysteresisRatio {
		t.Fatalf("engine defaults not applied: %+v", e)
	}
	if e.GuardMarginRatio != DefaultGuardMarginRatio || e.RenderWindowTolerance != DefaultRenderWindowTolerance {
		t.Fatalf("window defaults not applied: %+v", e)
	}
	if cfg.Series[0].Kind != models.SeriesLine || cfg.Series[0].Pane != "main" || cfg.Series[0].WidthPx != DefaultWidthPx {
		t.Fatalf("series defaults not applied: %+v", cfg.Series[0])
	}
	if cfg.Series[1].Pane != "crypto" {
		t.Fatalf("explicit pane overwritten: %+v", cfg.Series[1])
	}
}

func TestNewConfig_ClampsHysteresis(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, minimal+"engine:\n  lod_hysteresis_ratio: 0.9\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine.LodHysteresisRatio != 0.5 {
		t.Fatalf("hysteresis = %v, want 0.5", cfg.Engine.LodHysteresisRatio)
	}
}

func TestNewConfig_EnvOverride(t *testing.T) {
	t.Setenv("LOD_DB_PATH", "/tmp/override.db")
	cfg, err := NewConfig(writeConfig(t, minimal))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.DBPath != "/tmp/override.db" {
		t.Fatalf("db path = %s", cfg.Storage.DBPath)
	}
}

func TestNewConfig_ValidationErrors(t *testing.T) {
	cases := map[string]string{
		"duplicate series": minimal + "  - id: btc\n",
		"unknown kind":     "name: t\nhost: h\nport: 8000\nstorage:\n  db_type: sqlite\n  db_path: x\nseries:\n  - id: a\n    kind: pie\n",
		"bad port":         "name: t\nhost: h\nport: 80\nstorage:\n  db_type: sqlite\n  db_path: x\n",
		"postgres no dsn":  "name: t\nhost: h\nport: 8000\nstorage:\n  db_type: postgres\n",
	}
	for name, body := range cases {
		_, err := NewConfig(writeConfig(t, body))
		var cfgErr *helpers.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Errorf("%s: expected a ConfigurationError, got %v", name, err)
		}
	}
}

func TestSave_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Series = []models.MSeriesConfig{{ID: "x", Kind: models.SeriesArea, Pane: "p", WidthPx: 640}}

	path := filepath.Join(t.TempDir(), "saved.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := NewConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Name != cfg.Name || len(loaded.Series) != 1 || loaded.Series[0].WidthPx != 640 {
		t.Fatalf("round trip mismatch: %+v", loaded.MConfig)
	}
}
