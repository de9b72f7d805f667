// Package timeofday is a wall-clock time without a date, as stored in the RTC's time and alarm
// registers.
package timeofday

import (
	"fmt"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// Time is a time of day.  All arithmetic wraps around midnight in both directions.
type Time struct {
	Hour   int // 0-23
	Minute int // 0-59
	Second int // 0-59
}

// New returns the time h:m:s, normalized into a single day.
func New(h, m, s int) Time {
	return fromSeconds(h*3600 + m*60 + s)
}

// FromTime returns the time of day of t in t's location.
func FromTime(t time.Time) Time {
	h, m, s := t.Clock()
	return Time{Hour: h, Minute: m, Second: s}
}

func fromSeconds(total int) Time {
	total %= secondsPerDay
	if total < 0 {
		total += secondsPerDay
	}
	return Time{Hour: total / 3600, Minute: (total / 60) % 60, Second: total % 60}
}

func (t Time) seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// Valid reports whether every field is in range.
func (t Time) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60 && t.Second >= 0 && t.Second < 60
}

// AddHours returns t plus n hours.
func (t Time) AddHours(n int) Time { return fromSeconds(t.seconds() + n*3600) }

// SubHours returns t minus n hours.
func (t Time) SubHours(n int) Time { return t.AddHours(-n) }

// AddMinutes returns t plus n minutes, carrying into the hour.
func (t Time) AddMinutes(n int) Time { return fromSeconds(t.seconds() + n*60) }

// SubMinutes returns t minus n minutes, borrowing from the hour.
func (t Time) SubMinutes(n int) Time { return t.AddMinutes(-n) }

// RollMinute adds n to the minute field only, wrapping within the hour.  This is what the minute
// editor does: 55 + 5 is 00 of the same hour.
func (t Time) RollMinute(n int) Time {
	m := (t.Minute + n) % 60
	if m < 0 {
		m += 60
	}
	t.Minute = m
	return t
}

// AddSeconds returns t plus n seconds, carrying into minutes and hours.
func (t Time) AddSeconds(n int) Time { return fromSeconds(t.seconds() + n) }

// Equal compares all three fields.
func (t Time) Equal(u Time) bool { return t == u }

// SameMinute compares hour and minute only, which is the granularity alarms match at.
func (t Time) SameMinute(u Time) bool { return t.Hour == u.Hour && t.Minute == u.Minute }

// TruncateMinute rounds the minute down to the nearest multiple of step.
func (t Time) TruncateMinute(step int) Time {
	if step > 1 {
		t.Minute -= t.Minute % step
	}
	return t
}

// Within reports whether the hour of t lies in the window [from, to), which may wrap midnight.
func (t Time) Within(from, to int) bool {
	if from <= to {
		return t.Hour >= from && t.Hour < to
	}
	return t.Hour >= from || t.Hour < to
}

func (t Time) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}
