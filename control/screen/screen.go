// Package screen drives my VFD tube, and retains what it shows for debugging the rest of the program
// without the tube attached.
//
// The tube has 6 grids that share one set of segment lines, so only one grid can be lit at a time.
// A timer steps through the grids fast enough that they all appear lit.  A compare channel on the
// same timer blanks the grid part way through each step, which dims the whole tube.
package screen

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"periph.io/x/conn/v3/gpio"
)

const (
	// StepPeriod is how long each grid is selected.
	StepPeriod = 250 * time.Microsecond
	// StepCounts is the number of timer counts in one step.
	StepCounts = 250

	// The range of compare values that brightness 1-100 maps onto.  Below the minimum the tube
	// flickers; at the maximum the blanking lands at the end of the step.
	compareMin = 55
	compareMax = 249

	warmupTime = 500 * time.Millisecond
)

var (
	multiplexSteps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "display_multiplex_steps",
		Help: "count of multiplexing steps",
	})
	shiftErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "display_shift_errors",
		Help: "count of failed writes to the display shift register or grid pins",
	})
	displayEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "display_enabled",
		Help: "1 if the tube is powered and multiplexing",
	})
)

// Pins are the tube's control lines.
type Pins struct {
	Grids    [Grids]gpio.PinOut
	Heatwire gpio.PinOut // filament
	Boost    gpio.PinOut // anode supply
}

// Screen drives the tube.  Display may be called from any goroutine; the frame is swapped in
// atomically and the multiplexer always reads a complete frame.
type Screen struct {
	shifter Shifter
	pins    Pins
	timer   Timer

	frame atomic.Pointer[Frame]
	grid  int // only touched by the timer callbacks

	mu         sync.Mutex
	enabled    bool
	brightness int
}

// New returns a Screen that is not yet powered.
func New(shifter Shifter, pins Pins, timer Timer) *Screen {
	s := &Screen{shifter: shifter, pins: pins, timer: timer, grid: Grids - 1}
	s.frame.Store(&Frame{})
	return s
}

func (s *Screen) out(p gpio.PinOut, l gpio.Level) {
	if p == nil {
		return
	}
	if err := p.Out(l); err != nil {
		shiftErrors.Inc()
	}
}

func (s *Screen) disableAllGrids() {
	for _, p := range s.pins.Grids {
		s.out(p, gpio.Low)
	}
}

// step selects the next grid.  The grids are blanked before the register is touched, and the new
// grid is enabled only after its own frame is latched.
func (s *Screen) step() {
	s.disableAllGrids()
	s.grid = (s.grid + 1) % Grids
	f := s.frame.Load()
	if err := s.shifter.Shift(f[s.grid].Bits()); err != nil {
		shiftErrors.Inc()
		return
	}
	if err := s.shifter.Latch(); err != nil {
		shiftErrors.Inc()
		return
	}
	s.out(s.pins.Grids[s.grid], gpio.High)
	multiplexSteps.Inc()
}

// blank ends the lit part of a step.
func (s *Screen) blank() {
	s.disableAllGrids()
}

// Display publishes f; the multiplexer picks it up at its next step.
func (s *Screen) Display(f Frame) {
	s.frame.Store(&f)
}

// Current returns the frame being shown.
func (s *Screen) Current() Frame {
	return *s.frame.Load()
}

// Blank shows an empty frame.
func (s *Screen) Blank() {
	s.Display(Frame{})
}

// compareFor maps brightness 1-100 linearly onto the compare range.
func compareFor(brightness int) uint32 {
	return uint32(compareMin + (brightness-1)*(compareMax-compareMin)/(100-1))
}

// SetBrightness sets the brightness in percent.  Values outside 1-100 are ignored.
func (s *Screen) SetBrightness(brightness int) {
	if brightness < 1 || brightness > 100 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brightness = brightness
	s.timer.SetCompare(compareFor(brightness))
}

// Brightness returns the last accepted brightness, or 0 if none was set.
func (s *Screen) Brightness() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brightness
}

func (s *Screen) power(on bool) {
	s.out(s.pins.Heatwire, gpio.Level(on))
	s.out(s.pins.Boost, gpio.Level(on))
}

// EnableDisplay powers the tube and starts multiplexing.  It does nothing if the display is already
// enabled.
func (s *Screen) EnableDisplay() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enabled {
		return nil
	}
	s.power(true)
	if err := s.timer.Start(s.step, s.blank); err != nil {
		return fmt.Errorf("start multiplexing: %w", err)
	}
	s.enabled = true
	displayEnabled.Set(1)
	return nil
}

// DisableDisplay stops multiplexing, blanks every grid, and cuts power.  It does nothing if the
// display is already disabled.
func (s *Screen) DisableDisplay() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return nil
	}
	if err := s.timer.Stop(); err != nil {
		return fmt.Errorf("stop multiplexing: %w", err)
	}
	s.disableAllGrids()
	s.power(false)
	s.enabled = false
	displayEnabled.Set(0)
	return nil
}

// Enabled reports whether the tube is powered and multiplexing.
func (s *Screen) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Setup powers the tube without multiplexing, clears the shift register, sets full brightness, and
// waits for the filament to warm up.
func (s *Screen) Setup(ctx context.Context) error {
	s.power(true)
	if err := s.shifter.Shift(0); err != nil {
		return fmt.Errorf("clear shift register: %w", err)
	}
	if err := s.shifter.Latch(); err != nil {
		return fmt.Errorf("clear shift register: %w", err)
	}
	s.SetBrightness(100)
	if err := sleep(ctx, warmupTime); err != nil {
		return fmt.Errorf("warm up: %w", err)
	}
	return nil
}

// ShowInitialization lights every grid and walks one segment at a time across the register, then
// fills it back in, ending with everything lit.  It must run before EnableDisplay.
func (s *Screen) ShowInitialization(ctx context.Context, delay time.Duration) error {
	for _, p := range s.pins.Grids {
		s.out(p, gpio.High)
	}
	defer s.disableAllGrids()
	show := func(bits uint32) error {
		if err := s.shifter.Shift(bits); err != nil {
			return err
		}
		if err := s.shifter.Latch(); err != nil {
			return err
		}
		return sleep(ctx, delay)
	}
	segmentBits := FrameBits - 3
	bits := uint32(1)
	for bits&(1<<segmentBits) == 0 {
		if err := show(bits << 3); err != nil {
			return fmt.Errorf("segment walk: %w", err)
		}
		bits <<= 1
	}
	bits = 1 << (segmentBits - 1)
	for {
		if err := show(bits << 3); err != nil {
			return fmt.Errorf("segment fill: %w", err)
		}
		if bits&1 != 0 {
			break
		}
		bits = bits>>1 | 1<<(segmentBits-1)
	}
	if err := show(GridData{Segments: bits, Dots: true, UpperBar: true, LowerBar: true}.Bits()); err != nil {
		return fmt.Errorf("all segments: %w", err)
	}
	return nil
}
