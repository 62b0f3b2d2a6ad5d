package schedule

import (
	"testing"
	"time"

	"github.com/fkcurrie/dma-matrix/internal/config"
)

type dimmer struct {
	b float32
}

func (d *dimmer) SetBrightness(b float32) { d.b = b }
func (d *dimmer) Brightness() float32     { return d.b }

func TestNewRejectsBadExpression(t *testing.T) {
	_, err := New(&dimmer{}, []config.ScheduleEntry{{Cron: "every evening", Brightness: 0.1}}, time.UTC)
	if err == nil {
		t.Fatal("New() error = nil for a malformed expression")
	}
}

func TestCurrent(t *testing.T) {
	entries := []config.ScheduleEntry{
		{Cron: "0 7 * * *", Brightness: 0.8},
		{Cron: "30 22 * * *", Brightness: 0.1},
		{Cron: "0 12 1 1 *", Brightness: 1},
	}
	s, err := New(&dimmer{}, entries, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}

	tests := []struct {
		name string
		now  time.Time
		want float32
	}{
		{"morning", time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC), 0.8},
		{"late night", time.Date(2024, 6, 3, 23, 0, 0, 0, time.UTC), 0.1},
		{"before dawn", time.Date(2024, 6, 3, 3, 0, 0, 0, time.UTC), 0.1},
		{"exactly at", time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC), 0.8},
		{"new year noon", time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.Current(tt.now)
			if !ok || got != tt.want {
				t.Errorf("Current() = %v, %v, want %v, true", got, ok, tt.want)
			}
		})
	}
}

func TestCurrentEmpty(t *testing.T) {
	s, err := New(&dimmer{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Current(time.Now()); ok {
		t.Error("Current() found an entry in an empty schedule")
	}
}

func TestStartRestoresBrightness(t *testing.T) {
	d := &dimmer{b: 0.5}
	s, err := New(d, []config.ScheduleEntry{{Cron: "* * * * *", Brightness: 0.25}}, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	<-s.Stop().Done()
	if d.b != 0.25 {
		t.Errorf("brightness = %v after Start, want 0.25", d.b)
	}
}
