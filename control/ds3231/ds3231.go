// Package ds3231 talks to a DS3231 real-time clock.
//
// Reads return the value and whether the bus transfer succeeded.  Writes return false if the bus
// failed or if the input was out of range; out-of-range input never reaches the bus.
package ds3231

import (
	"fmt"
	"sync"

	"github.com/jrockway/vfd-alarm-clock/control/timeofday"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transferErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtc_transfer_errors",
		Help: "count of failed transfers to the rtc, by direction",
	}, []string{"op"})
)

// Date is a calendar date as stored by the chip.
type Date struct {
	Year    int // 2000-2099
	Month   int // 1-12
	Day     int // 1-31
	Weekday int // 0-7; the chip only counts it
}

// Dev is a DS3231 on a Bus.
type Dev struct {
	bus Bus

	mu  sync.Mutex
	err error // result of the most recent transfer; guarded by mu
}

// New returns a Dev at the chip's fixed address on bus.
func New(bus Bus) *Dev {
	return &Dev{bus: bus}
}

func decToBcd(v int) byte {
	return byte((v/10)<<4 + v%10)
}

func bcdToDec(b byte) int {
	return int(b>>4)*10 + int(b&0xf)
}

func (d *Dev) record(op string, err error) bool {
	if err != nil {
		transferErrors.WithLabelValues(op).Inc()
		err = fmt.Errorf("rtc %s: %w", op, err)
	}
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
	return err == nil
}

// Online reports whether the most recent transfer succeeded.
func (d *Dev) Online() bool {
	return d.Err() == nil
}

// Err returns the error from the most recent transfer, or nil.
func (d *Dev) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *Dev) read(reg Register, buf []byte) bool {
	d.bus.Begin(Address)
	defer d.bus.End()
	return d.record("read", d.bus.ReadRegister(uint8(reg), buf))
}

func (d *Dev) write(reg Register, data ...byte) bool {
	d.bus.Begin(Address)
	defer d.bus.End()
	return d.record("write", d.bus.WriteRegister(uint8(reg), data))
}

// updateRegister sets or clears one bit of reg.  It reports false only if reading the register
// failed; a failed write still shows up in Online.
func (d *Dev) updateRegister(reg Register, bit uint, set bool) bool {
	d.bus.Begin(Address)
	defer d.bus.End()
	var buf [1]byte
	if !d.record("read", d.bus.ReadRegister(uint8(reg), buf[:])) {
		return false
	}
	if set {
		buf[0] |= 1 << bit
	} else {
		buf[0] &^= 1 << bit
	}
	d.record("write", d.bus.WriteRegister(uint8(reg), buf[:]))
	return true
}

func (d *Dev) readBit(reg Register, bit uint) (bool, bool) {
	var buf [1]byte
	if !d.read(reg, buf[:]) {
		return false, false
	}
	return buf[0]&(1<<bit) != 0, true
}

// Time reads the current time of day.
func (d *Dev) Time() (timeofday.Time, bool) {
	var buf [3]byte
	if !d.read(RegisterSeconds, buf[:]) {
		return timeofday.Time{}, false
	}
	return timeofday.Time{
		Second: bcdToDec(buf[0] & 0x7f),
		Minute: bcdToDec(buf[1] & 0x7f),
		Hour:   bcdToDec(buf[2] & 0x3f),
	}, true
}

// SetTime sets the time of day in 24-hour mode.
func (d *Dev) SetTime(t timeofday.Time) bool {
	if !t.Valid() {
		return false
	}
	return d.write(RegisterSeconds, decToBcd(t.Second), decToBcd(t.Minute), decToBcd(t.Hour))
}

// SetHour sets the hour only.
func (d *Dev) SetHour(h int) bool {
	if h < 0 || h > 23 {
		return false
	}
	return d.write(RegisterHour, decToBcd(h))
}

// Date reads the calendar date.
func (d *Dev) Date() (Date, bool) {
	var buf [4]byte
	if !d.read(RegisterDayOfWeek, buf[:]) {
		return Date{}, false
	}
	return Date{
		Weekday: bcdToDec(buf[0] & 0x07),
		Day:     bcdToDec(buf[1] & 0x3f),
		Month:   bcdToDec(buf[2] & 0x1f),
		Year:    2000 + bcdToDec(buf[3]),
	}, true
}

// SetDate sets the day of month, month and year.
func (d *Dev) SetDate(day, month, year int) bool {
	if day < 1 || day > 31 || month < 1 || month > 12 || year < 2000 || year > 2099 {
		return false
	}
	return d.write(RegisterDate, decToBcd(day), decToBcd(month), decToBcd(year-2000))
}

// SetWeekday sets the day-of-week counter.
func (d *Dev) SetWeekday(dow int) bool {
	if dow < 0 || dow > 7 {
		return false
	}
	return d.write(RegisterDayOfWeek, decToBcd(dow))
}

// Alarm1 reads the alarm 1 setpoint.
func (d *Dev) Alarm1() (timeofday.Time, bool) {
	var buf [3]byte
	if !d.read(RegisterAlarm1Seconds, buf[:]) {
		return timeofday.Time{}, false
	}
	return timeofday.Time{
		Second: bcdToDec(buf[0] & 0x7f),
		Minute: bcdToDec(buf[1] & 0x7f),
		Hour:   bcdToDec(buf[2] & 0x3f),
	}, true
}

// SetAlarm1 sets alarm 1 to match hours, minutes and seconds every day.
func (d *Dev) SetAlarm1(t timeofday.Time) bool {
	if !t.Valid() {
		return false
	}
	return d.write(RegisterAlarm1Seconds, decToBcd(t.Second), decToBcd(t.Minute), decToBcd(t.Hour), 1<<AlarmMaskBit)
}

// Alarm2 reads the alarm 2 setpoint.  Alarm 2 has no seconds.
func (d *Dev) Alarm2() (timeofday.Time, bool) {
	var buf [2]byte
	if !d.read(RegisterAlarm2Minutes, buf[:]) {
		return timeofday.Time{}, false
	}
	return timeofday.Time{
		Minute: bcdToDec(buf[0] & 0x7f),
		Hour:   bcdToDec(buf[1] & 0x3f),
	}, true
}

// SetAlarm2 sets alarm 2 to match hours and minutes every day.  Seconds are ignored.
func (d *Dev) SetAlarm2(t timeofday.Time) bool {
	if !t.Valid() {
		return false
	}
	return d.write(RegisterAlarm2Minutes, decToBcd(t.Minute), decToBcd(t.Hour), 1<<AlarmMaskBit)
}

// Alarm1Fired reports whether the chip has latched an alarm 1 match.
func (d *Dev) Alarm1Fired() (bool, bool) { return d.readBit(RegisterStatus, StatusA1F) }

// Alarm2Fired reports whether the chip has latched an alarm 2 match.
func (d *Dev) Alarm2Fired() (bool, bool) { return d.readBit(RegisterStatus, StatusA2F) }

// OscillatorStopped reports whether the oscillator stopped since the flag was last cleared, which
// means the time cannot be trusted.
func (d *Dev) OscillatorStopped() (bool, bool) { return d.readBit(RegisterStatus, StatusOSF) }

func (d *Dev) ClearAlarm1Flag() bool { return d.updateRegister(RegisterStatus, StatusA1F, false) }
func (d *Dev) ClearAlarm2Flag() bool { return d.updateRegister(RegisterStatus, StatusA2F, false) }

func (d *Dev) SetAlarm1Interrupt(on bool) bool {
	return d.updateRegister(RegisterControl, ControlA1IE, on)
}

func (d *Dev) SetAlarm2Interrupt(on bool) bool {
	return d.updateRegister(RegisterControl, ControlA2IE, on)
}

// Enable32kHz turns the 32kHz output pin on or off.
func (d *Dev) Enable32kHz(on bool) bool {
	return d.updateRegister(RegisterStatus, StatusEN32kHz, on)
}

// SetInterruptOutput routes alarm matches to the INT/SQW pin instead of the square wave.
func (d *Dev) SetInterruptOutput(on bool) bool {
	return d.updateRegister(RegisterControl, ControlINTCN, on)
}

// SetSQWRate selects the square wave frequency, which is output only when the interrupt output is
// off.
func (d *Dev) SetSQWRate(r SQWRate) bool {
	if r > SQW8192Hz {
		return false
	}
	d.bus.Begin(Address)
	defer d.bus.End()
	var buf [1]byte
	if !d.record("read", d.bus.ReadRegister(uint8(RegisterControl), buf[:])) {
		return false
	}
	buf[0] &^= controlRateMask << ControlRS1
	buf[0] |= byte(r) << ControlRS1
	return d.record("write", d.bus.WriteRegister(uint8(RegisterControl), buf[:]))
}

// ForceTemperatureUpdate starts a temperature conversion outside the chip's normal 64s cycle.
func (d *Dev) ForceTemperatureUpdate() bool {
	return d.updateRegister(RegisterControl, ControlConv, true)
}

// Temperature reads the die temperature in degrees Celsius, in steps of a quarter degree.
func (d *Dev) Temperature() (float64, bool) {
	var buf [2]byte
	if !d.read(RegisterTemperatureMSB, buf[:]) {
		return 0, false
	}
	return float64(int8(buf[0])) + float64(buf[1]>>6)*0.25, true
}
