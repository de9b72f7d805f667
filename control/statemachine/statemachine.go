// Package statemachine decides what the clock shows and what the buttons do.
//
// Everything happens on the goroutine that calls Run: button presses arrive on a channel and are
// applied between renders, so the state needs no locking.  A render draws the current state and
// then waits for a per-state timeout, a button press, the auto-repeat ticker, or a wakeup from
// the alarm.
package statemachine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jrockway/vfd-alarm-clock/control/button"
	"github.com/jrockway/vfd-alarm-clock/control/clock"
	"github.com/jrockway/vfd-alarm-clock/control/font"
	"github.com/jrockway/vfd-alarm-clock/control/led"
	"github.com/jrockway/vfd-alarm-clock/control/screen"
	"github.com/jrockway/vfd-alarm-clock/control/timeofday"
	"github.com/jrockway/vfd-alarm-clock/control/wake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/trace"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

const (
	clockTimeout  = time.Second
	blinkTimeout  = 500 * time.Millisecond
	statusTimeout = 3 * time.Second
	ledTimeout    = 4 * time.Second

	// Timed-out renders of ClockWithAlarmLeds before the alarm LEDs go dark.
	alarmLedsTicks = 3

	// Strip brightness in percent at the start of a sunrise.
	sunriseFloor = 1

	actionQueue = 16
)

var (
	stateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "display_state_transitions",
		Help: "count of display state transitions, by new state",
	}, []string{"state"})

	droppedActions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dropped_button_actions",
		Help: "count of button actions dropped because the ui was not keeping up",
	})
)

// TimeSource is the source of the time and the alarms.
type TimeSource interface {
	Ready() <-chan struct{}
	Online() bool
	Time() timeofday.Time
	SetTime(timeofday.Time) bool
	Alarm1() timeofday.Time
	SetAlarm1(timeofday.Time) bool
	Alarm2() timeofday.Time
	SetAlarm2(timeofday.Time) bool
	Mode() clock.AlarmMode
	SetMode(clock.AlarmMode)
	State() clock.AlarmState
	SunriseProgress() float64
	Snooze() bool
	Dismiss()
}

// Display is the tube.
type Display interface {
	Setup(ctx context.Context) error
	Display(screen.Frame)
	SetBrightness(int)
	EnableDisplay() error
	DisableDisplay() error
}

// Options tunes the machine.
type Options struct {
	NightStartHour    int // standby is allowed from this hour
	NightEndHour      int // until this hour
	StandbyTicks      int // idle seconds on the clock before standby
	DisplayBrightness int
	RepeatPeriod      time.Duration
}

var DefaultOptions = Options{
	NightStartHour:    23,
	NightEndHour:      7,
	StandbyTicks:      10,
	DisplayBrightness: 100,
	RepeatPeriod:      250 * time.Millisecond,
}

// Machine is the UI.
type Machine struct {
	clock     TimeSource
	display   Display
	leds      *led.StatusLeds
	strip     *led.Strip
	vibration gpio.PinOut
	opts      Options
	l         trace.EventLog

	wake    *wake.Signal
	actions chan Event

	state    State
	previous State // where LedBrightness and LedCCT return to
	shown    atomic.Int32

	edit         timeofday.Time // the value being edited
	blink        bool           // the edited field is hidden
	timeouts     int            // consecutive timed-out renders in this state
	standbyTicks int
	revoke       bool // the current wait should end early

	repeat   *time.Ticker
	repeatFn func()

	alarmShown bool // the last render was for an active alarm
	stripSaved int  // strip brightness before the alarm took over the strip
	bypass     bool // the current wait belongs to an alarm render
}

// New returns a machine showing the clock.  vibration may be nil.
func New(c TimeSource, d Display, leds *led.StatusLeds, strip *led.Strip, vibration gpio.PinOut, opts Options) *Machine {
	m := &Machine{
		clock:     c,
		display:   d,
		leds:      leds,
		strip:     strip,
		vibration: vibration,
		opts:      opts,
		l:         trace.NewEventLog("task", "ui"),
		wake:      wake.New(),
		actions:   make(chan Event, actionQueue),
		state:     Clock,
		previous:  Clock,
	}
	m.shown.Store(int32(Clock))
	return m
}

// State returns the current state.  Only safe to call from the goroutine running the machine, or
// when it is not running.
func (m *Machine) State() State { return m.state }

// Showing returns the state as of the last transition.  It is safe to call from any goroutine.
func (m *Machine) Showing() State { return State(m.shown.Load()) }

// Notify makes the machine render again right away.  It never blocks.
func (m *Machine) Notify() { m.wake.Notify() }

type sink struct {
	m  *Machine
	id button.ID
}

func (s sink) OnButtonAction(a button.Action) {
	select {
	case s.m.actions <- Event{Button: s.id, Action: a}:
	default:
		droppedActions.Inc()
	}
}

// Button returns the sink for presses of button id.
func (m *Machine) Button(id button.ID) button.Sink {
	return sink{m: m, id: id}
}

func (m *Machine) setState(s State) {
	m.stopRepeat()
	m.revoke = true
	m.timeouts = 0
	m.standbyTicks = 0
	m.blink = false
	if s == m.state {
		return
	}
	if m.state == Standby {
		if err := m.display.EnableDisplay(); err != nil {
			m.l.Errorf("enable display: %v", err)
		}
	}
	if s == Standby {
		if err := m.display.DisableDisplay(); err != nil {
			m.l.Errorf("disable display: %v", err)
		}
	}
	m.l.Printf("%v -> %v", m.state, s)
	stateTransitions.WithLabelValues(s.String()).Inc()
	m.state = s
	m.shown.Store(int32(s))
}

func (m *Machine) startRepeat(f func()) {
	m.stopRepeat()
	m.repeat = time.NewTicker(m.opts.RepeatPeriod)
	m.repeatFn = f
	m.revoke = true
}

func (m *Machine) stopRepeat() {
	if m.repeat == nil {
		return
	}
	m.repeat.Stop()
	m.repeat = nil
	m.repeatFn = nil
	// A wait started while the ticker ran has no timeout of its own.
	m.revoke = true
}

func (m *Machine) vibrate(on bool) {
	if m.vibration == nil {
		return
	}
	if err := m.vibration.Out(gpio.Level(on)); err != nil {
		m.l.Errorf("vibration: %v", err)
	}
}

// handle applies one button press.
func (m *Machine) handle(ev Event) {
	m.standbyTicks = 0
	if m.state == Standby {
		if ev.Action != button.StopLongPress {
			m.setState(Clock)
		}
		return
	}
	if m.clock.State() != clock.StateOff {
		switch ev.Button {
		case button.Left:
			if ev.Action == button.SuperLongPress {
				m.l.Printf("alarm dismissed")
				m.clock.Dismiss()
				m.vibrate(false)
				m.revoke = true
			}
			return
		case button.Right:
			return
		case button.Snooze:
			if ev.Action == button.ShortPress || ev.Action == button.LongPress {
				if m.clock.Snooze() {
					m.l.Printf("alarm snoozed")
					m.vibrate(false)
					m.revoke = true
					return
				}
			}
		}
	}
	t, ok := Next(m.state, ev)
	if !ok {
		return
	}
	from := m.state
	if t.To != Stay {
		m.setState(t.To)
	}
	if t.Do != nil {
		t.Do(m, from)
	}
}

// render draws the current state and returns how long to wait before the next render.
func (m *Machine) render() time.Duration {
	var f screen.Frame
	var alarm1, alarm2 bool // alarm LEDs
	defer func() {
		m.leds.Alarm1.SetState(alarm1)
		m.leds.Alarm2.SetState(alarm2)
	}()
	if m.clock.Online() {
		m.leds.RedGreen.SetColor(led.Off)
	} else {
		m.leds.RedGreen.SetColor(led.Red)
	}
	now := m.clock.Time()
	mode := m.clock.Mode()

	m.bypass = false
	if st := m.clock.State(); st != clock.StateOff {
		m.bypass = true
		if !m.alarmShown {
			m.alarmShown = true
			m.l.Printf("alarm active: %v", st)
			m.setState(Clock)
			m.stripSaved = m.strip.Brightness()
			if st == clock.StateSunrise {
				m.strip.SetBrightness(sunriseFloor)
			}
			m.strip.TurnOn()
		}
		if st == clock.StateSunrise {
			b := sunriseFloor + int(m.clock.SunriseProgress()*float64(100-sunriseFloor))
			if b > m.strip.Brightness() {
				m.strip.SetBrightness(b)
			}
		}
		m.vibrate(st == clock.StateVibration)
		even := now.Second%2 == 0
		alarm1 = even && mode.Alarm1Armed()
		alarm2 = even && mode.Alarm2Armed()
		f.SetClock(now, false)
		m.display.Display(f)
		return clockTimeout
	}
	if m.alarmShown {
		m.alarmShown = false
		m.vibrate(false)
		m.strip.SetBrightness(m.stripSaved)
	}

	timeout := blinkTimeout
	switch m.state {
	case Standby:
		if m.strip.IsEnabled() {
			m.setState(Clock)
			f.SetClock(now, false)
		}
		timeout = clockTimeout
	case Clock:
		f.SetClock(now, false)
		timeout = clockTimeout
	case ClockWithAlarmLeds:
		f.SetClock(now, false)
		alarm1, alarm2 = mode.Alarm1Armed(), mode.Alarm2Armed()
		timeout = clockTimeout
	case DisplayAlarm1:
		f.SetClock(m.clock.Alarm1(), true)
		alarm1 = !m.blink
	case DisplayAlarm2:
		f.SetClock(m.clock.Alarm2(), true)
		alarm2 = !m.blink
	case ChangeAlarm1Hour, ChangeAlarm1Minute, ChangeAlarm2Hour, ChangeAlarm2Minute, ChangeClockHour, ChangeClockMinute:
		f.SetClock(m.edit, true)
		if m.blink {
			first := 1
			if m.state == ChangeAlarm1Minute || m.state == ChangeAlarm2Minute || m.state == ChangeClockMinute {
				first = 3
			}
			f.SetText(first, "__")
		}
		switch m.state {
		case ChangeAlarm1Hour, ChangeAlarm1Minute:
			alarm1 = true
		case ChangeAlarm2Hour, ChangeAlarm2Minute:
			alarm2 = true
		}
	case DisplayAlarmStatus:
		f.SetChar(2, 'A')
		f[2].Dots = true
		switch mode {
		case clock.ModeOff:
			f.SetText(3, "Off")
		case clock.ModeAlarm1:
			f.SetChar(4, '1')
			alarm1 = true
		case clock.ModeAlarm2:
			f.SetChar(4, '2')
			alarm2 = true
		case clock.ModeBoth:
			f.SetText(3, "1+2")
			alarm1, alarm2 = true, true
		}
		timeout = statusTimeout
	case LedBrightness:
		f.SetChar(2, 'B')
		f[2].Dots = true
		f.SetDigits(5, 3, m.strip.Brightness())
		timeout = ledTimeout
	case LedCCT:
		f.SetDigits(4, 4, m.strip.ColorTemperature())
		f.SetChar(5, 'K')
		timeout = ledTimeout
	case Test:
		for i := range f {
			f[i] = screen.GridData{Segments: font.Missing, Dots: true, UpperBar: true, LowerBar: true}
		}
		timeout = clockTimeout
	}
	m.display.Display(f)
	return timeout
}

// timedOut advances the current state after its render timed out without any event.
func (m *Machine) timedOut() {
	if m.bypass {
		return
	}
	switch m.state {
	case Clock:
		now := m.clock.Time()
		if m.strip.IsEnabled() || !now.Within(m.opts.NightStartHour, m.opts.NightEndHour) {
			m.standbyTicks = 0
			return
		}
		m.standbyTicks++
		if m.standbyTicks >= m.opts.StandbyTicks {
			m.setState(Standby)
		}
	case ClockWithAlarmLeds:
		m.timeouts++
		if m.timeouts >= alarmLedsTicks {
			m.setState(Clock)
		}
	case DisplayAlarmStatus:
		m.setState(ClockWithAlarmLeds)
	case LedBrightness, LedCCT:
		m.setState(m.previous)
	case DisplayAlarm1, DisplayAlarm2, ChangeAlarm1Hour, ChangeAlarm1Minute, ChangeAlarm2Hour, ChangeAlarm2Minute, ChangeClockHour, ChangeClockMinute:
		m.blink = !m.blink
	}
}

// wait blocks until the timeout expires or something happens that needs a new render.  Button
// presses that change nothing visible do not end the wait.  While auto-repeat is running, the
// repeat ticker replaces the timeout.
func (m *Machine) wait(ctx context.Context, timeout time.Duration) (bool, error) {
	m.revoke = false
	var expired <-chan time.Time
	if timeout > 0 && m.repeat == nil {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	for {
		var repeat <-chan time.Time
		if m.repeat != nil {
			repeat = m.repeat.C
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-expired:
			return true, nil
		case <-m.wake.C():
			return false, nil
		case ev := <-m.actions:
			m.handle(ev)
		case <-repeat:
			m.repeatFn()
			m.revoke = true
		}
		if m.revoke {
			return false, nil
		}
	}
}

// Run waits for the clock, brings up the display, and runs the UI until the context is
// cancelled.
func (m *Machine) Run(ctx context.Context) error {
	defer m.l.Finish()
	defer m.stopRepeat()

	m.leds.RedGreen.SetColor(led.Red)
	m.leds.RedGreen.SetBlinking(2 * physic.Hertz)
	select {
	case <-m.clock.Ready():
	case <-ctx.Done():
		return fmt.Errorf("waiting for rtc: %w", ctx.Err())
	}
	m.leds.RedGreen.SetBlinking(0)

	if err := m.display.Setup(ctx); err != nil {
		return fmt.Errorf("display setup: %w", err)
	}
	m.display.SetBrightness(m.opts.DisplayBrightness)
	if err := m.display.EnableDisplay(); err != nil {
		return fmt.Errorf("enable display: %w", err)
	}
	m.l.Printf("ui running")

	for {
		timeout := m.render()
		timedOut, err := m.wait(ctx, timeout)
		if err != nil {
			return fmt.Errorf("ui: %w", err)
		}
		if timedOut {
			m.timedOut()
		}
	}
}
