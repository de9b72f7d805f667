package led

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Color is what a red/green LED can show.
type Color int

const (
	Off Color = iota
	Red
	Green
	Orange
)

func (c Color) String() string {
	switch c {
	case Off:
		return "off"
	case Red:
		return "red"
	case Green:
		return "green"
	case Orange:
		return "orange"
	}
	return "unknown"
}

// orangeGreen is the green level mixed with full red to look orange rather than yellow.
const orangeGreen = Max * 35 / 100

// ResultFlash is how long SignalResult shows its color.
const ResultFlash = time.Second

// DualLed is a two-color red/green LED.  On top of a steady color it can blink, and it can flash
// another color for a while before going back.
type DualLed struct {
	red, green *SingleLed

	mu         sync.Mutex
	color      Color
	blink      time.Duration // full blink period; 0 is steady
	flashColor Color
	flashUntil time.Time
}

func NewDualLed(red, green gpio.PinOut, ramp int) *DualLed {
	return &DualLed{red: NewSingleLed(red, ramp), green: NewSingleLed(green, ramp)}
}

func (d *DualLed) SetColor(c Color) {
	d.mu.Lock()
	d.color = c
	d.mu.Unlock()
}

func (d *DualLed) Color() Color {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.color
}

// SetBlinking blinks the steady color at f.  A zero frequency stops blinking.
func (d *DualLed) SetBlinking(f physic.Frequency) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f <= 0 {
		d.blink = 0
		return
	}
	d.blink = f.Period()
}

// Flash shows c until now+dur, then returns to the steady color.
func (d *DualLed) Flash(c Color, dur time.Duration, now time.Time) {
	d.mu.Lock()
	d.flashColor = c
	d.flashUntil = now.Add(dur)
	d.mu.Unlock()
}

// SignalResult flashes green for success or red for failure.
func (d *DualLed) SignalResult(ok bool) {
	c := Red
	if ok {
		c = Green
	}
	d.Flash(c, ResultFlash, time.Now())
}

// Shown returns the color visible at now.
func (d *DualLed) Shown(now time.Time) Color {
	d.mu.Lock()
	defer d.mu.Unlock()
	if now.Before(d.flashUntil) {
		return d.flashColor
	}
	if d.blink > 0 && (now.UnixNano()/int64(d.blink/2))%2 == 1 {
		return Off
	}
	return d.color
}

func (d *DualLed) Update(now time.Time) error {
	c := d.Shown(now)
	d.red.SetState(c == Red || c == Orange)
	d.green.SetState(c == Green || c == Orange)
	if c == Orange {
		d.green.SetTarget(orangeGreen)
	} else {
		d.green.SetTarget(Max)
	}
	if err := d.red.Update(); err != nil {
		return err
	}
	return d.green.Update()
}
