// Package led dims LEDs through PWM pins: gamma correction, brightness ramps, a red/green status
// LED, and a warm/cold white LED strip.
package led

import (
	"math"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

const (
	// Steps is the PWM resolution; values run from 0 to Max.
	Steps = 1024
	Max   = Steps - 1

	// Frequency is the PWM carrier frequency, high enough that a camera doesn't see it.
	Frequency = 19500 * physic.Hertz
)

var (
	pwmErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "led_pwm_errors",
		Help: "count of failed pwm duty cycle updates",
	})

	gammaTable [Steps]uint16
)

func init() {
	for i := range gammaTable {
		u := float64(i) / Max
		gammaTable[i] = uint16(math.Round(Max * math.Pow((u+0.055)/(1.055), 2.4)))
	}
}

// Gamma maps a perceived brightness in [0, Max] to a PWM value in [0, Max].
func Gamma(v int) int {
	switch {
	case v <= 0:
		return 0
	case v >= Max:
		return Max
	}
	return int(gammaTable[v])
}

// Duty converts a PWM value in [0, Max] to a periph duty cycle.
func Duty(v int) gpio.Duty {
	if v <= 0 {
		return 0
	}
	if v >= Max {
		return gpio.DutyMax
	}
	return gpio.Duty(int64(v) * int64(gpio.DutyMax) / Max)
}

// SingleLed is one PWM-dimmed LED.  The PWM output ramps toward the target a few steps per Update,
// so brightness changes fade instead of jumping.
type SingleLed struct {
	pin  gpio.PinOut
	ramp int // maximum change of the PWM value per Update

	mu         sync.Mutex
	on         bool
	target     int // PWM value at 100% brightness, 0-Max
	brightness int // percent
	current    int // last PWM value written
	written    bool
}

// NewSingleLed returns an LED on pin that is off, with full target and brightness.
func NewSingleLed(pin gpio.PinOut, ramp int) *SingleLed {
	if ramp < 1 {
		ramp = 1
	}
	return &SingleLed{pin: pin, ramp: ramp, target: Max, brightness: 100}
}

func (l *SingleLed) TurnOn()  { l.SetState(true) }
func (l *SingleLed) TurnOff() { l.SetState(false) }

func (l *SingleLed) SetState(on bool) {
	l.mu.Lock()
	l.on = on
	l.mu.Unlock()
}

func (l *SingleLed) IsOn() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}

// SetBrightness scales the target by percent, clamped to [0, 100].
func (l *SingleLed) SetBrightness(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	l.mu.Lock()
	l.brightness = percent
	l.mu.Unlock()
}

// SetTarget sets the PWM value shown at full brightness, clamped to [0, Max].
func (l *SingleLed) SetTarget(v int) {
	if v < 0 {
		v = 0
	}
	if v > Max {
		v = Max
	}
	l.mu.Lock()
	l.target = v
	l.mu.Unlock()
}

// Wanted returns the PWM value the LED is ramping toward.
func (l *SingleLed) Wanted() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wanted()
}

func (l *SingleLed) wanted() int {
	if !l.on {
		return 0
	}
	return Gamma(l.target * l.brightness / 100)
}

// Current returns the PWM value most recently written to the pin.
func (l *SingleLed) Current() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Update moves the output one ramp step toward the wanted value.  It writes the pin only when the
// value changes.
func (l *SingleLed) Update() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	want := l.wanted()
	next := l.current
	switch {
	case want > next+l.ramp:
		next += l.ramp
	case want < next-l.ramp:
		next -= l.ramp
	default:
		next = want
	}
	if next == l.current && l.written {
		return nil
	}
	if err := l.pin.PWM(Duty(next), Frequency); err != nil {
		pwmErrors.Inc()
		return err
	}
	l.current = next
	l.written = true
	return nil
}
