package statemachine

import (
	"github.com/jrockway/vfd-alarm-clock/control/button"
	"github.com/jrockway/vfd-alarm-clock/control/clock"
	"github.com/jrockway/vfd-alarm-clock/control/timeofday"
)

// State is what the display is showing.
type State int

const (
	Standby State = iota
	Clock
	ClockWithAlarmLeds
	DisplayAlarm1
	DisplayAlarm2
	ChangeAlarm1Hour
	ChangeAlarm1Minute
	ChangeAlarm2Hour
	ChangeAlarm2Minute
	ChangeClockHour
	ChangeClockMinute
	DisplayAlarmStatus
	LedBrightness
	LedCCT
	Test // lights everything; nothing transitions here

	// Stay is the target of a transition that only has a side effect.
	Stay State = -1
	// AnyState matches every state in the transition table.
	AnyState State = -2
)

var stateNames = map[State]string{
	Standby:            "standby",
	Clock:              "clock",
	ClockWithAlarmLeds: "clock with alarm leds",
	DisplayAlarm1:      "display alarm 1",
	DisplayAlarm2:      "display alarm 2",
	ChangeAlarm1Hour:   "change alarm 1 hour",
	ChangeAlarm1Minute: "change alarm 1 minute",
	ChangeAlarm2Hour:   "change alarm 2 hour",
	ChangeAlarm2Minute: "change alarm 2 minute",
	ChangeClockHour:    "change clock hour",
	ChangeClockMinute:  "change clock minute",
	DisplayAlarmStatus: "display alarm status",
	LedBrightness:      "led brightness",
	LedCCT:             "led cct",
	Test:               "test",
	Stay:               "stay",
	AnyState:           "any",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Editing reports whether s edits an hour or minute field.
func (s State) Editing() bool {
	return s >= ChangeAlarm1Hour && s <= ChangeClockMinute
}

// Event is one classified press of one button.
type Event struct {
	Button button.ID
	Action button.Action
}

// effect is the side effect of a transition.  It runs after the new state is entered; from is the
// state the transition started in.
type effect func(m *Machine, from State)

// Transition is the result of an event in a state.
type Transition struct {
	To State
	Do effect
}

type key struct {
	from State
	ev   Event
}

type table map[key]Transition

func (t table) add(ev Event, to State, do effect, from ...State) {
	for _, s := range from {
		t[key{from: s, ev: ev}] = Transition{To: to, Do: do}
	}
}

// Next looks up what ev does in state from.  An entry for the exact state wins over an AnyState
// entry.  ok is false if the event does nothing.
func Next(from State, ev Event) (t Transition, ok bool) {
	if t, ok := transitions[key{from: from, ev: ev}]; ok {
		return t, true
	}
	t, ok = transitions[key{from: AnyState, ev: ev}]
	return t, ok
}

func press(id button.ID, a button.Action) Event { return Event{Button: id, Action: a} }

var (
	clockViews   = []State{Clock, ClockWithAlarmLeds}
	editStates   = []State{ChangeAlarm1Hour, ChangeAlarm1Minute, ChangeAlarm2Hour, ChangeAlarm2Minute, ChangeClockHour, ChangeClockMinute}
	hourEditors  = []State{ChangeAlarm1Hour, ChangeAlarm2Hour, ChangeClockHour}
	alarmMinutes = []State{ChangeAlarm1Minute, ChangeAlarm2Minute}
)

func edit(f func(timeofday.Time) timeofday.Time) effect {
	return func(m *Machine, _ State) {
		m.edit = f(m.edit)
		m.blink = false
		m.revoke = true
	}
}

var (
	incrementHour        = edit(func(t timeofday.Time) timeofday.Time { return t.AddHours(1) })
	incrementAlarmMinute = edit(func(t timeofday.Time) timeofday.Time { return t.RollMinute(5) })
	incrementClockMinute = edit(func(t timeofday.Time) timeofday.Time { return t.RollMinute(1) })
)

// repeating runs e now and then every repeat period until the repeat is stopped.
func repeating(e effect, now bool) effect {
	return func(m *Machine, from State) {
		if now {
			e(m, from)
		}
		m.startRepeat(func() { e(m, from) })
	}
}

func stopRepeat(m *Machine, _ State) { m.stopRepeat() }

func loadAlarm1(m *Machine, _ State) { m.edit = m.clock.Alarm1() }
func loadAlarm2(m *Machine, _ State) { m.edit = m.clock.Alarm2() }

func loadTime(m *Machine, _ State) {
	m.edit = m.clock.Time()
	m.edit.Second = 0
}

func commitAlarm1(m *Machine, _ State) {
	m.leds.RedGreen.SignalResult(m.clock.SetAlarm1(m.edit))
	m.clock.SetMode(clock.ModeAlarm1)
}

func commitAlarm2(m *Machine, _ State) {
	m.leds.RedGreen.SignalResult(m.clock.SetAlarm2(m.edit))
	m.clock.SetMode(clock.ModeAlarm2)
}

func commitTime(m *Machine, _ State) {
	if !m.clock.SetTime(m.edit) {
		m.l.Errorf("rtc did not accept time %v", m.edit)
	}
}

func cycleMode(m *Machine, _ State) {
	m.clock.SetMode(m.clock.Mode().Next())
	m.revoke = true
}

func toggleStrip(m *Machine, _ State) {
	m.strip.Toggle()
	m.revoke = true
}

// stripReadout returns an effect that adjusts the strip and remembers where to go back to when the
// readout times out.
func stripReadout(adjust func(m *Machine)) effect {
	return func(m *Machine, from State) {
		if from != LedBrightness && from != LedCCT {
			m.previous = from
		}
		adjust(m)
		m.revoke = true
	}
}

var (
	brightnessUp   = stripReadout(func(m *Machine) { m.strip.IncrementBrightness() })
	brightnessDown = stripReadout(func(m *Machine) { m.strip.DecrementBrightness() })
	cctUp          = stripReadout(func(m *Machine) { m.strip.IncrementColorTemperature() })
	cctDown        = stripReadout(func(m *Machine) { m.strip.DecrementColorTemperature() })
)

var transitions = func() table {
	t := table{}
	left, right := button.Left, button.Right

	t.add(press(left, button.ShortPress), DisplayAlarm1, nil, clockViews...)
	t.add(press(left, button.ShortPress), DisplayAlarm2, nil, DisplayAlarm1)
	t.add(press(left, button.ShortPress), ClockWithAlarmLeds, nil, DisplayAlarm2)
	t.add(press(left, button.ShortPress), ChangeAlarm1Minute, nil, ChangeAlarm1Hour)
	t.add(press(left, button.ShortPress), DisplayAlarm1, commitAlarm1, ChangeAlarm1Minute)
	t.add(press(left, button.ShortPress), ChangeAlarm2Minute, nil, ChangeAlarm2Hour)
	t.add(press(left, button.ShortPress), DisplayAlarm2, commitAlarm2, ChangeAlarm2Minute)
	t.add(press(left, button.ShortPress), ChangeClockMinute, nil, ChangeClockHour)
	t.add(press(left, button.ShortPress), ClockWithAlarmLeds, commitTime, ChangeClockMinute)
	t.add(press(left, button.LongPress), ChangeAlarm1Hour, loadAlarm1, DisplayAlarm1)
	t.add(press(left, button.LongPress), ChangeAlarm2Hour, loadAlarm2, DisplayAlarm2)
	t.add(press(left, button.SuperLongPress), Standby, nil, clockViews...)

	t.add(press(right, button.ShortPress), DisplayAlarmStatus, nil, clockViews...)
	t.add(press(right, button.ShortPress), Stay, cycleMode, DisplayAlarmStatus)
	t.add(press(right, button.ShortPress), Stay, incrementHour, hourEditors...)
	t.add(press(right, button.ShortPress), Stay, incrementAlarmMinute, alarmMinutes...)
	t.add(press(right, button.ShortPress), Stay, incrementClockMinute, ChangeClockMinute)
	t.add(press(right, button.LongPress), Stay, repeating(incrementHour, false), hourEditors...)
	t.add(press(right, button.LongPress), Stay, repeating(incrementAlarmMinute, false), alarmMinutes...)
	t.add(press(right, button.LongPress), Stay, repeating(incrementClockMinute, false), ChangeClockMinute)
	t.add(press(right, button.SuperLongPress), ChangeClockHour, loadTime, clockViews...)
	t.add(press(right, button.StopLongPress), Stay, stopRepeat, AnyState)

	t.add(press(button.Snooze, button.ShortPress), ClockWithAlarmLeds, nil, AnyState)
	t.add(press(button.Snooze, button.ShortPress), Stay, nil, editStates...)
	t.add(press(button.Snooze, button.LongPress), Stay, toggleStrip, AnyState)

	for _, b := range []struct {
		id     button.ID
		to     State
		adjust effect
	}{
		{button.BrightnessPlus, LedBrightness, brightnessUp},
		{button.BrightnessMinus, LedBrightness, brightnessDown},
		{button.CCTPlus, LedCCT, cctUp},
		{button.CCTMinus, LedCCT, cctDown},
	} {
		t.add(press(b.id, button.ShortPress), b.to, b.adjust, AnyState)
		t.add(press(b.id, button.LongPress), b.to, repeating(b.adjust, true), AnyState)
		t.add(press(b.id, button.StopLongPress), Stay, stopRepeat, AnyState)
	}
	return t
}()
