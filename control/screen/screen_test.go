package screen

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jrockway/vfd-alarm-clock/control/font"
	"github.com/jrockway/vfd-alarm-clock/control/timeofday"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi/spitest"
)

// events is a log shared by every fake in a test, so the order of pin changes and latches across
// devices can be checked.
type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(format string, args ...interface{}) {
	e.mu.Lock()
	e.log = append(e.log, fmt.Sprintf(format, args...))
	e.mu.Unlock()
}

// recordingPin is a gpiotest.Pin that logs its output changes.
type recordingPin struct {
	*gpiotest.Pin
	events *events
}

func (p *recordingPin) Out(l gpio.Level) error {
	p.events.add("%s=%v", p.N, l)
	return p.Pin.Out(l)
}

type fakeShifter struct {
	events  *events
	shifted uint32
}

func (s *fakeShifter) Shift(bits uint32) error {
	s.shifted = bits
	return nil
}

func (s *fakeShifter) Latch() error {
	s.events.add("latch=%d", s.shifted)
	return nil
}

type fakeTimer struct {
	starts, stops int
	compare       uint32
	running       bool
}

func (t *fakeTimer) Start(update, compare func()) error {
	if t.running {
		return ErrTimerRunning
	}
	t.running = true
	t.starts++
	return nil
}

func (t *fakeTimer) Stop() error {
	t.running = false
	t.stops++
	return nil
}

func (t *fakeTimer) SetCompare(v uint32) { t.compare = v }
func (t *fakeTimer) Compare() uint32     { return t.compare }

func newTestScreen() (*Screen, *events, [Grids]*recordingPin, *fakeTimer) {
	e := &events{}
	var pins Pins
	var grids [Grids]*recordingPin
	for i := range grids {
		grids[i] = &recordingPin{Pin: &gpiotest.Pin{N: fmt.Sprintf("grid%d", i)}, events: e}
		pins.Grids[i] = grids[i]
	}
	pins.Heatwire = &recordingPin{Pin: &gpiotest.Pin{N: "heatwire"}, events: e}
	pins.Boost = &recordingPin{Pin: &gpiotest.Pin{N: "boost"}, events: e}
	timer := &fakeTimer{}
	return New(&fakeShifter{events: e}, pins, timer), e, grids, timer
}

func TestBits(t *testing.T) {
	testData := []struct {
		g    GridData
		want uint32
	}{
		{GridData{}, 0},
		{GridData{LowerBar: true}, 0b001},
		{GridData{Dots: true}, 0b010},
		{GridData{UpperBar: true}, 0b100},
		{GridData{Segments: font.SegM}, 0b1000},
		{GridData{Segments: font.Missing, Dots: true, UpperBar: true, LowerBar: true}, 1<<FrameBits - 1},
	}
	for _, test := range testData {
		if got := test.g.Bits(); got != test.want {
			t.Errorf("%+v:\n  got: %017b\n want: %017b", test.g, got, test.want)
		}
	}
}

func TestMultiplexingNeverShowsStaleFrame(t *testing.T) {
	s, e, grids, _ := newTestScreen()
	var frames [2]Frame
	for i := 0; i < Grids; i++ {
		frames[0][i] = GridData{Segments: 1 << i, Dots: i%2 == 0}
		frames[1][i] = GridData{Segments: 1 << (Grids + i), UpperBar: true}
	}
	s.Display(frames[0])
	for step := 0; step < 3*Grids; step++ {
		if step == Grids {
			s.Display(frames[1])
		}
		s.step()
		if step%4 == 3 {
			s.blank()
		}
	}

	// Replay the log: a latch may only happen while every grid is dark, and a grid may only light
	// up right after its own frame was latched.
	latches := 0
	latched := ""
	lit := -1
	for _, ev := range e.log {
		var v string
		if _, err := fmt.Sscanf(ev, "latch=%s", &v); err == nil {
			if lit >= 0 {
				t.Fatalf("latched %s while grid %d lit", v, lit)
			}
			latched = v
			latches++
			continue
		}
		var idx int
		var level string
		if _, err := fmt.Sscanf(ev, "grid%d=%s", &idx, &level); err != nil {
			t.Fatalf("unexpected event %q", ev)
		}
		if level == "Low" {
			if idx == lit {
				lit = -1
			}
			continue
		}
		if lit >= 0 {
			t.Fatalf("grid %d enabled while grid %d lit", idx, lit)
		}
		step := latches - 1
		if got, want := idx, step%Grids; got != want {
			t.Fatalf("step %d enabled grid %d, want %d", step, got, want)
		}
		f := frames[0]
		if step >= Grids {
			f = frames[1]
		}
		if got, want := latched, fmt.Sprint(f[idx].Bits()); got != want {
			t.Errorf("grid %d enabled with latched frame %s, want %s", idx, got, want)
		}
		lit = idx
	}
	if latches != 3*Grids {
		t.Errorf("latches: got %d, want %d", latches, 3*Grids)
	}
	if got, want := grids[Grids-1].Read(), gpio.High; got != want {
		t.Errorf("last grid:\n  got: %v\n want: %v", got, want)
	}
}

func TestStepOrder(t *testing.T) {
	s, e, _, _ := newTestScreen()
	var f Frame
	f[0].Segments = font.Glyph('8')
	s.Display(f)
	s.step()
	var want []string
	for i := 0; i < Grids; i++ {
		want = append(want, fmt.Sprintf("grid%d=Low", i))
	}
	want = append(want, fmt.Sprintf("latch=%d", f[0].Bits()), "grid0=High")
	if diff := cmp.Diff(e.log, want); diff != "" {
		t.Errorf("first step (-got +want):\n%s", diff)
	}
}

func TestBrightness(t *testing.T) {
	s, _, _, timer := newTestScreen()
	s.SetBrightness(1)
	if got, want := timer.Compare(), uint32(compareMin); got != want {
		t.Errorf("brightness 1:\n  got: %v\n want: %v", got, want)
	}
	s.SetBrightness(100)
	if got, want := timer.Compare(), uint32(compareMax); got != want {
		t.Errorf("brightness 100:\n  got: %v\n want: %v", got, want)
	}
	s.SetBrightness(50)
	before := timer.Compare()
	for _, b := range []int{0, 101, -1, 255} {
		s.SetBrightness(b)
		if got := timer.Compare(); got != before {
			t.Errorf("brightness %d changed compare from %d to %d", b, before, got)
		}
	}
	if got, want := s.Brightness(), 50; got != want {
		t.Errorf("brightness:\n  got: %v\n want: %v", got, want)
	}
	prev := uint32(0)
	for b := 1; b <= 100; b++ {
		c := compareFor(b)
		if c < prev {
			t.Fatalf("compare not monotonic at %d", b)
		}
		prev = c
	}
}

func TestEnableDisableAreIdempotent(t *testing.T) {
	s, _, grids, timer := newTestScreen()
	for i := 0; i < 2; i++ {
		if err := s.EnableDisplay(); err != nil {
			t.Fatalf("enable %d: %v", i, err)
		}
	}
	if timer.starts != 1 {
		t.Errorf("timer started %d times", timer.starts)
	}
	if !s.Enabled() {
		t.Error("should be enabled")
	}
	if got := s.pins.Boost.(*recordingPin).Read(); got != gpio.High {
		t.Errorf("boost converter: %v", got)
	}
	s.step()
	for i := 0; i < 2; i++ {
		if err := s.DisableDisplay(); err != nil {
			t.Fatalf("disable %d: %v", i, err)
		}
	}
	if timer.stops != 1 {
		t.Errorf("timer stopped %d times", timer.stops)
	}
	for i, g := range grids {
		if g.Read() != gpio.Low {
			t.Errorf("grid %d still lit after disable", i)
		}
	}
	if got := s.pins.Heatwire.(*recordingPin).Read(); got != gpio.Low {
		t.Errorf("heatwire: %v", got)
	}
}

func TestSetup(t *testing.T) {
	s, e, _, timer := newTestScreen()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Setup(ctx); err != nil {
		t.Fatal(err)
	}
	want := []string{"heatwire=High", "boost=High", "latch=0"}
	if diff := cmp.Diff(e.log, want); diff != "" {
		t.Errorf("setup (-got +want):\n%s", diff)
	}
	if got, want := timer.Compare(), uint32(compareMax); got != want {
		t.Errorf("compare:\n  got: %v\n want: %v", got, want)
	}
	if s.Enabled() {
		t.Error("setup should not start multiplexing")
	}
}

func TestShowInitialization(t *testing.T) {
	s, e, _, _ := newTestScreen()
	if err := s.ShowInitialization(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	var latches []string
	for _, ev := range e.log {
		if len(ev) > 6 && ev[:6] == "latch=" {
			latches = append(latches, ev[6:])
		}
	}
	if got, want := len(latches), 2*font.Segments+1; got != want {
		t.Errorf("latches:\n  got: %v\n want: %v", got, want)
	}
	if got, want := latches[len(latches)-1], fmt.Sprint(uint32(1<<FrameBits-1)); got != want {
		t.Errorf("final frame:\n  got: %v\n want: %v", got, want)
	}
}

func TestSetClock(t *testing.T) {
	var f Frame
	f.SetClock(timeofday.New(7, 5, 1), false)
	want := Frame{
		1: {Segments: font.Digit(0)},
		2: {Segments: font.Digit(7)},
		3: {Segments: font.Digit(0)},
		4: {Segments: font.Digit(5)},
	}
	if diff := cmp.Diff(f, want); diff != "" {
		t.Errorf("odd second (-got +want):\n%s", diff)
	}
	f.SetClock(timeofday.New(23, 59, 2), false)
	if !f[2].Dots {
		t.Error("dots should be lit on even seconds")
	}
	f.SetClock(timeofday.New(23, 59, 3), true)
	if !f[2].Dots {
		t.Error("forced dots should be lit")
	}
	f.SetText(3, "Off!!")
	if got, want := f[5].Segments, font.Glyph('f'); got != want {
		t.Errorf("text past the end:\n  got: %v\n want: %v", got, want)
	}
}

func TestGPIOShifter(t *testing.T) {
	e := &events{}
	data := &recordingPin{Pin: &gpiotest.Pin{N: "d"}, events: e}
	clock := &gpiotest.Pin{N: "c"}
	strobe := &recordingPin{Pin: &gpiotest.Pin{N: "s"}, events: e}
	s := &GPIOShifter{Data: data, Clock: clock, Strobe: strobe}
	if err := s.Shift(0b1_0000_0000_0000_0101); err != nil {
		t.Fatal(err)
	}
	if err := s.Latch(); err != nil {
		t.Fatal(err)
	}
	var want []string
	for i := 0; i < FrameBits; i++ {
		want = append(want, fmt.Sprintf("d=%v", gpio.Level(i == 0 || i == 2 || i == 16)))
	}
	want = append(want, "s=High", "s=Low")
	if diff := cmp.Diff(e.log, want); diff != "" {
		t.Errorf("shift (-got +want):\n%s", diff)
	}
}

func TestSPIShifter(t *testing.T) {
	bus := &spitest.Playback{Playback: conntest.Playback{Ops: []conntest.IO{
		// Bit 0 is clocked first after 7 bits of padding.
		{W: []byte{0x01, 0x00, 0x01}},
		{W: []byte{0x00, 0x01, 0x00}},
	}}}
	c, err := bus.Connect(0, 0, 8)
	if err != nil {
		t.Fatal(err)
	}
	s := &SPIShifter{Conn: c, Strobe: &gpiotest.Pin{N: "strobe"}}
	if err := s.Shift(1<<16 | 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Shift(1 << 8); err != nil {
		t.Fatal(err)
	}
	if err := s.Latch(); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Error(err)
	}
}

func TestTickerTimer(t *testing.T) {
	timer := NewTickerTimer(time.Millisecond, 10)
	timer.SetCompare(5)
	var mu sync.Mutex
	var updates, compares int
	err := timer.Start(func() {
		mu.Lock()
		updates++
		mu.Unlock()
	}, func() {
		mu.Lock()
		compares++
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := timer.Start(func() {}, func() {}); err != ErrTimerRunning {
		t.Errorf("second start:\n  got: %v\n want: %v", err, ErrTimerRunning)
	}
	time.Sleep(50 * time.Millisecond)
	if err := timer.Stop(); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	u, c := updates, compares
	mu.Unlock()
	if u == 0 || c == 0 {
		t.Errorf("callbacks did not run: %d updates, %d compares", u, c)
	}
	if c > u {
		t.Errorf("more compares (%d) than updates (%d)", c, u)
	}
	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if updates != u {
		t.Error("callbacks ran after stop")
	}
	if err := timer.Stop(); err != nil {
		t.Errorf("second stop: %v", err)
	}
}

func TestServeHTTP(t *testing.T) {
	s, _, _, _ := newTestScreen()
	s.SetBrightness(80)
	if err := s.EnableDisplay(); err != nil {
		t.Fatal(err)
	}
	var f Frame
	f.SetClock(timeofday.New(12, 34, 0), false)
	s.Display(f)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/display.png", nil))
	if got, want := rec.Header().Get("content-type"), "image/png"; got != want {
		t.Errorf("content type:\n  got: %v\n want: %v", got, want)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if got, want := img.Bounds().Dx(), Grids*cellWidth; got != want {
		t.Errorf("width:\n  got: %v\n want: %v", got, want)
	}
	// The top segment of the 1 in grid 1 is dark; the top segment of the 2 in grid 2 is lit.
	if r, _, _, _ := img.At(cellWidth+digitX+20, digitY+2).RGBA(); r != 0x1818 {
		t.Errorf("unlit segment has red %x", r)
	}
	if _, g, _, _ := img.At(2*cellWidth+digitX+20, digitY+2).RGBA(); g < 0x8000 {
		t.Errorf("lit segment has green %x", g)
	}
}
