package led

import (
	"context"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Color temperatures in kelvin.
const (
	WarmCCT    = 2700
	ColdCCT    = 6500
	NeutralCCT = 4500
	CCTStep    = 200
)

const (
	DefaultBrightness = 50
	BrightnessStep    = 5

	// StripRate is how often the strip is updated.
	StripRate = 10 * time.Millisecond
	stripRamp = 8
)

// Strip is a tunable white LED strip made of a warm and a cold channel.  The color temperature sets
// the mix of the two, and the brightness scales both.
type Strip struct {
	warm, cold *SingleLed

	mu         sync.Mutex
	enabled    bool
	brightness int // percent
	cct        int // kelvin
}

func NewStrip(warm, cold gpio.PinOut) *Strip {
	s := &Strip{
		warm:       NewSingleLed(warm, stripRamp),
		cold:       NewSingleLed(cold, stripRamp),
		brightness: DefaultBrightness,
		cct:        NeutralCCT,
	}
	s.apply()
	return s
}

// mapValue maps x from [inMin, inMax] onto [outMin, outMax] linearly.
func mapValue(inMin, inMax, outMin, outMax, x int) int {
	return outMin + (x-inMin)*(outMax-outMin)/(inMax-inMin)
}

// apply pushes the current settings to both channels.  Callers hold mu, except the constructor.
func (s *Strip) apply() {
	warm := Steps - mapValue(WarmCCT, ColdCCT, 0, Steps, s.cct)
	cold := Steps - warm
	s.warm.SetTarget(warm)
	s.cold.SetTarget(cold)
	s.warm.SetBrightness(s.brightness)
	s.cold.SetBrightness(s.brightness)
	s.warm.SetState(s.enabled)
	s.cold.SetState(s.enabled)
}

func (s *Strip) set(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f()
	s.apply()
}

func (s *Strip) Toggle()  { s.set(func() { s.enabled = !s.enabled }) }
func (s *Strip) TurnOn()  { s.set(func() { s.enabled = true }) }
func (s *Strip) TurnOff() { s.set(func() { s.enabled = false }) }

func (s *Strip) IsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetBrightness sets the brightness in percent, clamped to [0, 100].
func (s *Strip) SetBrightness(percent int) {
	s.set(func() { s.brightness = clamp(percent, 0, 100) })
}

func (s *Strip) IncrementBrightness() {
	s.set(func() { s.brightness = clamp(s.brightness+BrightnessStep, 0, 100) })
}

func (s *Strip) DecrementBrightness() {
	s.set(func() { s.brightness = clamp(s.brightness-BrightnessStep, 0, 100) })
}

func (s *Strip) Brightness() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brightness
}

func (s *Strip) IncrementColorTemperature() {
	s.set(func() { s.cct = clamp(s.cct+CCTStep, WarmCCT, ColdCCT) })
}

func (s *Strip) DecrementColorTemperature() {
	s.set(func() { s.cct = clamp(s.cct-CCTStep, WarmCCT, ColdCCT) })
}

// ColorTemperature returns the color temperature in kelvin.
func (s *Strip) ColorTemperature() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cct
}

// Levels returns the PWM values the warm and cold channels are ramping toward.
func (s *Strip) Levels() (warm, cold int) {
	return s.warm.Wanted(), s.cold.Wanted()
}

func (s *Strip) Update(time.Time) error {
	if err := s.warm.Update(); err != nil {
		return err
	}
	return s.cold.Update()
}

// Run updates the strip until the context is cancelled.
func (s *Strip) Run(ctx context.Context) error {
	return run(ctx, "led-strip", StripRate, s.Update)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
