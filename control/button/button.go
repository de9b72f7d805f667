// Package button turns sampled button pins into classified presses.
//
// Buttons are active low with a pull-up.  Each sample is debounced, and a held button produces a
// LongPress and then a SuperLongPress while still down.  Releasing it produces ShortPress if no long
// press was reported, and StopLongPress otherwise.
package button

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"periph.io/x/conn/v3/gpio"
)

var (
	actionsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "button_actions",
		Help: "count of classified button presses, by button and action",
	}, []string{"button", "action"})
)

// Action is a classified press.
type Action int

const (
	ShortPress Action = iota
	LongPress
	SuperLongPress
	StopLongPress
)

func (a Action) String() string {
	switch a {
	case ShortPress:
		return "short"
	case LongPress:
		return "long"
	case SuperLongPress:
		return "super-long"
	case StopLongPress:
		return "stop-long"
	}
	return "unknown"
}

// ID names a physical button.
type ID int

const (
	Left ID = iota
	Right
	Snooze
	BrightnessPlus
	BrightnessMinus
	CCTPlus
	CCTMinus
	NumButtons
)

func (id ID) String() string {
	switch id {
	case Left:
		return "left"
	case Right:
		return "right"
	case Snooze:
		return "snooze"
	case BrightnessPlus:
		return "brightness+"
	case BrightnessMinus:
		return "brightness-"
	case CCTPlus:
		return "cct+"
	case CCTMinus:
		return "cct-"
	}
	return "unknown"
}

// Sink receives the presses of one button.
type Sink interface {
	OnButtonAction(Action)
}

// Timing configures press classification.
type Timing struct {
	Debounce  time.Duration // a level must be stable this long to count
	Long      time.Duration
	SuperLong time.Duration
}

var DefaultTiming = Timing{
	Debounce:  30 * time.Millisecond,
	Long:      time.Second,
	SuperLong: 3 * time.Second,
}

// Button classifies the presses of one pin.  Update must be called from a single goroutine.
type Button struct {
	id     ID
	pin    gpio.PinIn
	sink   Sink
	timing Timing

	pressed     bool // debounced level
	changingFor time.Duration
	heldFor     time.Duration
	longSent    bool
	superSent   bool
}

func New(id ID, pin gpio.PinIn, sink Sink, timing Timing) *Button {
	return &Button{id: id, pin: pin, sink: sink, timing: timing}
}

func (b *Button) ID() ID { return b.id }

// Init configures the pin as an input with a pull-up.
func (b *Button) Init() error {
	return b.pin.In(gpio.PullUp, gpio.NoEdge)
}

func (b *Button) emit(a Action) {
	actionsCounter.WithLabelValues(b.id.String(), a.String()).Inc()
	b.sink.OnButtonAction(a)
}

// Update samples the pin; dt is the time since the previous sample.
func (b *Button) Update(dt time.Duration) {
	down := b.pin.Read() == gpio.Low
	if down != b.pressed {
		b.changingFor += dt
		if b.changingFor >= b.timing.Debounce {
			b.changingFor = 0
			b.pressed = down
			if down {
				b.heldFor = 0
				b.longSent, b.superSent = false, false
			} else if b.longSent {
				b.emit(StopLongPress)
			} else {
				b.emit(ShortPress)
			}
		}
		return
	}
	b.changingFor = 0
	if !b.pressed {
		return
	}
	b.heldFor += dt
	if !b.longSent && b.heldFor >= b.timing.Long {
		b.longSent = true
		b.emit(LongPress)
	}
	if !b.superSent && b.heldFor >= b.timing.SuperLong {
		b.superSent = true
		b.emit(SuperLongPress)
	}
}
