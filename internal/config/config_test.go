package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fkcurrie/dma-matrix/pkg/ledmatrix"
)

func TestLoadConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "matrix.yaml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Backend != BackendSim {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendSim)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config perms = %o, want 600", perm)
	}

	again, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if again.Panel != cfg.Panel || again.Brightness != cfg.Brightness {
		t.Errorf("reloaded config differs: %+v vs %+v", again.Panel, cfg.Panel)
	}
}

func TestLoadConfigPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matrix.yaml")
	yaml := "panel:\n  rows: 16\n  columns: 32\nbackend: gpiocdev\ngpio:\n  address: [20, 21, 26, 16]\nschedule:\n  - cron: \"0 22 * * *\"\n    brightness: 0.1\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Panel.Rows != 16 || cfg.Panel.Columns != 32 {
		t.Errorf("panel = %dx%d, want 32x16", cfg.Panel.Columns, cfg.Panel.Rows)
	}
	if cfg.Panel.BitDepth != ledmatrix.DefaultBitDepth || cfg.Render.FPS != 30 {
		t.Errorf("defaults not filled: %+v %+v", cfg.Panel, cfg.Render)
	}
	if len(cfg.Schedule) != 1 || cfg.Schedule[0].Brightness != 0.1 {
		t.Errorf("Schedule = %+v", cfg.Schedule)
	}
	if _, err := cfg.Geometry(); err != nil {
		t.Errorf("Geometry() error = %v", err)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(""); err == nil {
		t.Error("LoadConfig(\"\") error = nil")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("panel: [1, 2"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig() of malformed YAML error = nil")
	}
}

func TestGeometry(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr error
	}{
		{"default", func(c *Config) {}, nil},
		{"bit out of port", func(c *Config) { c.Wiring.Clock = 8 }, ledmatrix.ErrWiring},
		{"shared bit", func(c *Config) { c.Wiring.Blue = 0 }, ledmatrix.ErrWiring},
		{"unknown order", func(c *Config) { c.Wiring.ColumnOrder = "zigzag" }, ledmatrix.ErrWiring},
		{"too fast", func(c *Config) { c.Panel.RefreshHz = 10000000 }, ledmatrix.ErrRefreshTooFast},
		{"clock beyond data lines", func(c *Config) { c.Wiring.Clock = 6 }, ledmatrix.ErrWiring},
		{"rows beyond address lines", func(c *Config) { c.Panel.Rows = 16 }, ledmatrix.ErrWiring},
		{"shifted address beyond lines", func(c *Config) { c.Wiring.AddressShift = 1 }, ledmatrix.ErrWiring},
		{"periph without pins", func(c *Config) { c.Backend = BackendPeriph }, ledmatrix.ErrWiring},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(c)
			g, err := c.Geometry()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Geometry() error = %v", err)
				}
				if g != ledmatrix.DefaultGeometry() {
					t.Errorf("Geometry() = %+v, want the default", g)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Geometry() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
