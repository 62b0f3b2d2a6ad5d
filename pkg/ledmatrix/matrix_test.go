package ledmatrix

import (
	"bytes"
	"errors"
	"image/color"
	"testing"

	"tinygo.org/x/drivers"
)

// fakePeripheral records what the matrix programs into it.
type fakePeripheral struct {
	timer    TimerConfig
	descs    map[Channel]Descriptor
	handler  func()
	repoints int
	started  int
	stopped  int
	failOn   string
}

func newFakePeripheral() *fakePeripheral {
	return &fakePeripheral{descs: make(map[Channel]Descriptor)}
}

func (f *fakePeripheral) ConfigureTimer(c TimerConfig) error {
	if f.failOn == "timer" {
		return errors.New("timer busy")
	}
	f.timer = c
	return nil
}

func (f *fakePeripheral) ConfigureDescriptor(d Descriptor) error {
	f.descs[d.Channel] = d
	return nil
}

func (f *fakePeripheral) SetInterruptHandler(c Channel, fn func()) {
	if c == ChannelData {
		f.handler = fn
	}
}

func (f *fakePeripheral) Repoint(c Channel, src []byte) {
	d := f.descs[c]
	d.Bytes = src
	f.descs[c] = d
	f.repoints++
}

func (f *fakePeripheral) Start() error {
	f.started++
	return nil
}

func (f *fakePeripheral) Stop() error {
	f.stopped++
	return nil
}

// data returns the buffer the data channel currently reads.
func (f *fakePeripheral) data() []byte {
	return f.descs[ChannelData].Bytes
}

func newTestMatrix(t *testing.T) (*Matrix, *fakePeripheral) {
	t.Helper()
	p := newFakePeripheral()
	m, err := New(DefaultGeometry(), p)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m, p
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		geom    Geometry
		periph  Peripheral
		wantErr bool
	}{
		{"valid", DefaultGeometry(), newFakePeripheral(), false},
		{"nil peripheral", DefaultGeometry(), nil, true},
		{"bad geometry", Geometry{}, newFakePeripheral(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.geom, tt.periph)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBeginProgramsChain(t *testing.T) {
	m, p := newTestMatrix(t)
	g := m.Geometry()
	if err := m.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if p.started != 1 {
		t.Errorf("started %d times, want 1", p.started)
	}
	if p.timer.Hz != g.TimerHz || p.timer.Max != g.TimerMax {
		t.Errorf("timer = %+v", p.timer)
	}
	if len(p.descs) != NumChannels {
		t.Fatalf("%d descriptors, want %d", len(p.descs), NumChannels)
	}

	want := []struct {
		ch      Channel
		trigger Trigger
		minor   int
		major   int
		link    Channel
	}{
		{ChannelPeriod, TriggerTimer, 1, 64, ChannelCompare},
		{ChannelCompare, TriggerLink, 1, 64, ChannelAddress},
		{ChannelAddress, TriggerLink, 10, 64, ChannelData},
		{ChannelData, TriggerLink, 16, 64, NoLink},
	}
	for _, w := range want {
		d := p.descs[w.ch]
		if d.Trigger != w.trigger || d.MinorLoop != w.minor || d.MajorLoops != w.major || d.Link != w.link {
			t.Errorf("%v: trigger %d minor %d major %d link %v", w.ch, d.Trigger, d.MinorLoop, d.MajorLoops, d.Link)
		}
	}
	if !p.descs[ChannelData].InterruptOnMajor {
		t.Error("data channel does not interrupt on major loop")
	}
	if p.handler == nil {
		t.Error("no interrupt handler installed")
	}
	if &p.data()[0] != &m.Buffer(0).buf[0] {
		t.Error("data channel does not read buffer 0")
	}
}

func TestBeginTwice(t *testing.T) {
	m, p := newTestMatrix(t)
	m.Show()
	if err := m.Begin(); err != nil {
		t.Fatal(err)
	}
	m.Show()
	if err := m.Begin(); err != nil {
		t.Fatal(err)
	}
	if p.stopped != 1 || p.started != 2 {
		t.Errorf("stopped %d started %d, want 1 and 2", p.stopped, p.started)
	}
	if m.Active() != 0 || m.BufferWaiting() {
		t.Errorf("after Begin active = %d waiting = %v", m.Active(), m.BufferWaiting())
	}
}

func TestBeginTimerError(t *testing.T) {
	m, p := newTestMatrix(t)
	p.failOn = "timer"
	if err := m.Begin(); err == nil {
		t.Fatal("Begin() succeeded with a failing timer")
	}
	if p.started != 0 {
		t.Error("peripheral started after a configuration error")
	}
}

func TestShowSwapsOnRefresh(t *testing.T) {
	m, p := newTestMatrix(t)
	if err := m.Begin(); err != nil {
		t.Fatal(err)
	}

	if err := m.SetPixelColor(0, 0, 255, 0, 0); err != nil {
		t.Fatal(err)
	}
	m.Show()
	if !m.BufferWaiting() {
		t.Fatal("BufferWaiting() = false after Show")
	}
	if &p.data()[0] != &m.Buffer(0).buf[0] {
		t.Fatal("data channel moved before the refresh interrupt")
	}

	p.handler()
	if m.BufferWaiting() {
		t.Error("BufferWaiting() = true after refresh")
	}
	if m.Active() != 1 || &p.data()[0] != &m.Buffer(1).buf[0] {
		t.Error("refresh did not swap in buffer 1")
	}
	data, _, _ := m.Buffer(1).Pair(0, 0, 7, 0)
	if data != m.Geometry().Wiring.Red {
		t.Errorf("shown buffer pair = %#02x, want red", data)
	}

	p.handler()
	if p.repoints != 1 {
		t.Errorf("repointed %d times, want 1", p.repoints)
	}
}

func TestShowTwiceKeepsActive(t *testing.T) {
	m, p := newTestMatrix(t)
	if err := m.Begin(); err != nil {
		t.Fatal(err)
	}
	active := append([]byte(nil), p.data()...)

	m.Fill(color.RGBA{R: 10, G: 20, B: 30, A: 255})
	m.Show()
	m.Fill(color.White)
	m.Show()

	if !bytes.Equal(p.data(), active) {
		t.Error("Show wrote into the buffer being refreshed")
	}
	st := m.Stats()
	if st.Shown != 2 || st.Replaced != 1 || st.Swapped != 0 {
		t.Errorf("Stats() = %+v", st)
	}

	p.handler()
	want := newBitstream(m.Geometry())
	encode(m.Geometry(), m.Pixels(), want)
	if !bytes.Equal(p.data(), want.buf) {
		t.Error("refresh did not swap in the newest frame")
	}
}

func TestSetPixelBounds(t *testing.T) {
	m, _ := newTestMatrix(t)
	tests := []struct {
		name    string
		col     int
		row     int
		wantErr bool
	}{
		{"origin", 0, 0, false},
		{"corner", 7, 7, false},
		{"column equals columns", 8, 0, true},
		{"row equals rows", 0, 8, true},
		{"negative", -1, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.SetPixelColor(tt.col, tt.row, 1, 2, 3)
			if (err != nil) != tt.wantErr {
				t.Errorf("SetPixelColor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrOutOfRange) {
				t.Errorf("SetPixelColor() error = %v, want %v", err, ErrOutOfRange)
			}
		})
	}

	m.Clear()
	_ = m.SetPixelColor(8, 0, 255, 255, 255)
	for i, p := range m.Pixels() {
		if p != (Pixel{}) {
			t.Fatalf("out-of-range write changed pixel %d to %v", i, p)
		}
	}
}

func TestSetBrightness(t *testing.T) {
	m, _ := newTestMatrix(t)
	m.SetBrightness(2)
	if m.Brightness() != 1 {
		t.Errorf("Brightness() = %v, want 1", m.Brightness())
	}
	m.SetBrightness(0)
	for row := 0; row < m.Geometry().Rows; row++ {
		for plane := 0; plane < m.Geometry().BitDepth; plane++ {
			if c, _ := m.Timing().Compare(row, plane); c != 0 {
				t.Fatalf("Compare(%d, %d) = %d at brightness 0", row, plane, c)
			}
		}
	}
}

func TestStop(t *testing.T) {
	m, p := newTestMatrix(t)
	if err := m.Stop(); !errors.Is(err, ErrNotBegun) {
		t.Errorf("Stop() before Begin error = %v, want %v", err, ErrNotBegun)
	}
	if err := m.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if p.stopped != 1 {
		t.Errorf("stopped %d times, want 1", p.stopped)
	}
}

func TestCanvasRotation(t *testing.T) {
	g := DefaultGeometry()
	g.Columns = 16
	m, err := New(g, newFakePeripheral())
	if err != nil {
		t.Fatal(err)
	}
	c := m.Canvas()

	tests := []struct {
		rotation    drivers.Rotation
		wantW       int16
		wantH       int16
		column, row int
	}{
		{drivers.Rotation0, 16, 8, 1, 0},
		{drivers.Rotation90, 8, 16, 15, 1},
		{drivers.Rotation180, 16, 8, 14, 7},
		{drivers.Rotation270, 8, 16, 0, 6},
	}

	for _, tt := range tests {
		m.Clear()
		if err := c.SetRotation(tt.rotation); err != nil {
			t.Fatalf("SetRotation(%d) error = %v", tt.rotation, err)
		}
		if w, h := c.Size(); w != tt.wantW || h != tt.wantH {
			t.Errorf("rotation %d: Size() = %d, %d, want %d, %d", tt.rotation, w, h, tt.wantW, tt.wantH)
		}
		c.SetPixel(1, 0, color.RGBA{R: 9, A: 255})
		if p, _ := m.PixelAt(tt.column, tt.row); p.R != 9 {
			t.Errorf("rotation %d: canvas (1, 0) did not land on (%d, %d)", tt.rotation, tt.column, tt.row)
		}
	}

	c.SetPixel(-1, 100, color.RGBA{G: 1})
	if err := c.SetRotation(4); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SetRotation(4) error = %v, want %v", err, ErrOutOfRange)
	}
}
