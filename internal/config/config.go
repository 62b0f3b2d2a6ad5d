package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math/bits"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fkcurrie/dma-matrix/pkg/ledmatrix"
)

// Backends selectable in Config.Backend.
const (
	BackendSim      = "sim"
	BackendGPIOCdev = "gpiocdev"
	BackendPeriph   = "periph"
	BackendMem      = "mem"
)

// PanelConfig is the panel geometry and scan timing.
type PanelConfig struct {
	Rows          int    `yaml:"rows"`
	Columns       int    `yaml:"columns"`
	BitDepth      int    `yaml:"bit_depth"`
	Pages         int    `yaml:"pages"`
	AddressRepeat int    `yaml:"address_repeat"`
	TimerHz       uint32 `yaml:"timer_hz"`
	RefreshHz     uint32 `yaml:"refresh_hz"`
	TimerMax      uint32 `yaml:"timer_max"`
}

// WiringConfig gives the data port bit of each signal.
type WiringConfig struct {
	Red          int    `yaml:"red"`
	Green        int    `yaml:"green"`
	Blue         int    `yaml:"blue"`
	Clock        int    `yaml:"clock"`
	AddressShift uint   `yaml:"address_shift"`
	ColumnOrder  string `yaml:"column_order"`
}

// GPIOConfig selects the lines of each port. Chip and offsets are used by
// the gpiocdev backend, pin names by periph, and BCM numbers with MemBase
// by mem.
type GPIOConfig struct {
	Chip            string `yaml:"chip"`
	Data            []int  `yaml:"data"`
	Address         []int  `yaml:"address"`
	Enable          int    `yaml:"enable"`
	EnableActiveLow bool   `yaml:"enable_active_low"`

	DataPins    []string `yaml:"data_pins,omitempty"`
	AddressPins []string `yaml:"address_pins,omitempty"`
	EnablePin   string   `yaml:"enable_pin,omitempty"`

	MemBase uint64 `yaml:"mem_base,omitempty"`
}

// RenderConfig selects what the daemon draws.
type RenderConfig struct {
	// Source is one of "pattern", "svg", "image" or "text".
	Source   string  `yaml:"source"`
	Pattern  string  `yaml:"pattern,omitempty"`
	Path     string  `yaml:"path,omitempty"`
	Text     string  `yaml:"text,omitempty"`
	Font     string  `yaml:"font,omitempty"`
	FontSize float64 `yaml:"font_size,omitempty"`
	Color    string  `yaml:"color,omitempty"`
	// Speed is the text scroll rate in pixels per second.
	Speed float64 `yaml:"speed,omitempty"`
	FPS   int     `yaml:"fps"`
}

// ScheduleEntry sets the brightness whenever Cron fires.
type ScheduleEntry struct {
	Cron       string  `yaml:"cron"`
	Brightness float32 `yaml:"brightness"`
}

// Config represents the application configuration
type Config struct {
	Panel      PanelConfig     `yaml:"panel"`
	Wiring     WiringConfig    `yaml:"wiring"`
	Brightness float32         `yaml:"brightness"`
	Backend    string          `yaml:"backend"`
	GPIO       GPIOConfig      `yaml:"gpio"`
	Render     RenderConfig    `yaml:"render"`
	Schedule   []ScheduleEntry `yaml:"schedule"`
	Timezone   string          `yaml:"timezone"`
	LogLevel   string          `yaml:"log_level"`
}

// DefaultConfig returns the configuration of the reference 8x8 board on the
// simulated backend
func DefaultConfig() *Config {
	g := ledmatrix.DefaultGeometry()
	return &Config{
		Panel: PanelConfig{
			Rows:          g.Rows,
			Columns:       g.Columns,
			BitDepth:      g.BitDepth,
			Pages:         g.Pages,
			AddressRepeat: g.AddressRepeat,
			TimerHz:       g.TimerHz,
			RefreshHz:     g.RefreshHz,
			TimerMax:      g.TimerMax,
		},
		Wiring: WiringConfig{
			Red:         0,
			Green:       1,
			Blue:        2,
			Clock:       3,
			ColumnOrder: ledmatrix.LastColumnFirst.String(),
		},
		Brightness: ledmatrix.DefaultBrightness,
		Backend:    BackendSim,
		GPIO: GPIOConfig{
			Chip:            "gpiochip0",
			Data:            []int{5, 6, 13, 19},
			Address:         []int{20, 21, 26},
			Enable:          18,
			EnableActiveLow: true,
		},
		Render: RenderConfig{
			Source:  "pattern",
			Pattern: "cycle",
			FPS:     30,
		},
		Schedule: []ScheduleEntry{},
		Timezone: "Local",
		LogLevel: "info",
	}
}

// Normalize fills in zero values from DefaultConfig so partially written
// files still load.
func (c *Config) Normalize() {
	d := DefaultConfig()
	p := &c.Panel
	if p.Rows == 0 {
		p.Rows = d.Panel.Rows
	}
	if p.Columns == 0 {
		p.Columns = d.Panel.Columns
	}
	if p.BitDepth == 0 {
		p.BitDepth = d.Panel.BitDepth
	}
	if p.Pages == 0 {
		p.Pages = d.Panel.Pages
	}
	if p.AddressRepeat == 0 {
		p.AddressRepeat = d.Panel.AddressRepeat
	}
	if p.TimerHz == 0 {
		p.TimerHz = d.Panel.TimerHz
	}
	if p.RefreshHz == 0 {
		p.RefreshHz = d.Panel.RefreshHz
	}
	if p.TimerMax == 0 {
		p.TimerMax = d.Panel.TimerMax
	}
	// All-zero wiring would put every signal on bit 0.
	if c.Wiring.Red == 0 && c.Wiring.Green == 0 && c.Wiring.Blue == 0 && c.Wiring.Clock == 0 {
		c.Wiring.Red, c.Wiring.Green, c.Wiring.Blue, c.Wiring.Clock = 0, 1, 2, 3
	}
	if c.Wiring.ColumnOrder == "" {
		c.Wiring.ColumnOrder = d.Wiring.ColumnOrder
	}
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.GPIO.Chip == "" {
		c.GPIO.Chip = d.GPIO.Chip
	}
	if c.GPIO.Data == nil {
		c.GPIO.Data = d.GPIO.Data
	}
	if c.GPIO.Address == nil {
		c.GPIO.Address = d.GPIO.Address
	}
	if c.Render.Source == "" {
		c.Render.Source = d.Render.Source
		c.Render.Pattern = d.Render.Pattern
	}
	if c.Render.FPS <= 0 {
		c.Render.FPS = d.Render.FPS
	}
	if c.Schedule == nil {
		c.Schedule = []ScheduleEntry{}
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// Geometry converts the panel and wiring sections and validates them.
func (c *Config) Geometry() (ledmatrix.Geometry, error) {
	w := c.Wiring
	wiring := ledmatrix.Wiring{AddressShift: w.AddressShift}
	for _, sig := range []struct {
		name string
		bit  int
		mask *byte
	}{
		{"red", w.Red, &wiring.Red},
		{"green", w.Green, &wiring.Green},
		{"blue", w.Blue, &wiring.Blue},
		{"clock", w.Clock, &wiring.Clock},
	} {
		if sig.bit < 0 || sig.bit > 7 {
			return ledmatrix.Geometry{}, fmt.Errorf("%w: %s on bit %d", ledmatrix.ErrWiring, sig.name, sig.bit)
		}
		*sig.mask = 1 << sig.bit
	}
	switch w.ColumnOrder {
	case ledmatrix.LastColumnFirst.String():
		wiring.Order = ledmatrix.LastColumnFirst
	case ledmatrix.FirstColumnFirst.String():
		wiring.Order = ledmatrix.FirstColumnFirst
	default:
		return ledmatrix.Geometry{}, fmt.Errorf("%w: column order %q", ledmatrix.ErrWiring, w.ColumnOrder)
	}

	p := c.Panel
	g := ledmatrix.Geometry{
		Rows:          p.Rows,
		Columns:       p.Columns,
		BitDepth:      p.BitDepth,
		Pages:         p.Pages,
		AddressRepeat: p.AddressRepeat,
		TimerHz:       p.TimerHz,
		RefreshHz:     p.RefreshHz,
		TimerMax:      p.TimerMax,
		Wiring:        wiring,
	}
	if err := g.Validate(); err != nil {
		return ledmatrix.Geometry{}, err
	}
	if err := c.checkBuses(g); err != nil {
		return ledmatrix.Geometry{}, err
	}
	return g, nil
}

// checkBuses rejects wirings that use a bus bit with no line behind it.
// Bit i of a port drives its i-th line, so the buses would silently drop
// the high bits. The periph backend counts pin names; every other backend,
// sim included, counts the numbered lines.
func (c *Config) checkBuses(g ledmatrix.Geometry) error {
	data, addr := len(c.GPIO.Data), len(c.GPIO.Address)
	if c.Backend == BackendPeriph {
		data, addr = len(c.GPIO.DataPins), len(c.GPIO.AddressPins)
	}
	w := g.Wiring
	if need := bits.Len8(w.Red | w.Green | w.Blue | w.Clock); need > data {
		return fmt.Errorf("%w: data bits need %d lines, %d configured", ledmatrix.ErrWiring, need, data)
	}
	if need := bits.Len8(w.AddressCode(g.Rows - 1)); need > addr {
		return fmt.Errorf("%w: %d rows need %d address lines, %d configured", ledmatrix.ErrWiring, g.Rows, need, addr)
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// LoadConfig loads the configuration from a YAML file. A missing file is
// created with the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			return cfg, Save(path, cfg)
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".dma-matrix-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
