package timeofday

import (
	"testing"
	"time"
)

func TestAddHoursWraps(t *testing.T) {
	for h := 0; h < 24; h++ {
		got := New(h, 30, 0).AddHours(1)
		if want := (Time{Hour: (h + 1) % 24, Minute: 30}); got != want {
			t.Errorf("%02d:30 + 1h:\n  got: %v\n want: %v", h, got, want)
		}
	}
}

func TestArithmetic(t *testing.T) {
	testData := []struct {
		name string
		got  Time
		want Time
	}{
		{"sub hour at midnight", New(0, 0, 0).SubHours(1), Time{Hour: 23}},
		{"sub many hours", New(5, 10, 0).SubHours(30), Time{Hour: 23, Minute: 10}},
		{"add minutes carries", New(23, 55, 0).AddMinutes(5), Time{}},
		{"sub minutes borrows", New(0, 0, 0).SubMinutes(1), Time{Hour: 23, Minute: 59}},
		{"add second at end of day", New(23, 59, 59).AddSeconds(1), Time{}},
		{"add second", New(6, 59, 59).AddSeconds(1), Time{Hour: 7}},
		{"roll minute stays in hour", New(10, 55, 0).RollMinute(5), Time{Hour: 10}},
		{"roll minute backwards", New(10, 0, 0).RollMinute(-5), Time{Hour: 10, Minute: 55}},
		{"truncate to five", New(7, 32, 12).TruncateMinute(5), Time{Hour: 7, Minute: 30, Second: 12}},
		{"new normalizes", New(25, 61, 0), Time{Hour: 2, Minute: 1}},
	}
	for _, test := range testData {
		t.Run(test.name, func(t *testing.T) {
			if got, want := test.got, test.want; got != want {
				t.Errorf("got: %v\n want: %v", got, want)
			}
		})
	}
}

func TestComparisons(t *testing.T) {
	a := New(7, 0, 0)
	b := New(7, 0, 59)
	if a.Equal(b) {
		t.Errorf("%v should not equal %v", a, b)
	}
	if !a.SameMinute(b) {
		t.Errorf("%v should be in the same minute as %v", a, b)
	}
	if a.SameMinute(New(8, 0, 0)) {
		t.Errorf("%v should not match 08:00", a)
	}
}

func TestWithin(t *testing.T) {
	testData := []struct {
		hour     int
		from, to int
		want     bool
	}{
		{23, 23, 7, true},
		{0, 23, 7, true},
		{6, 23, 7, true},
		{7, 23, 7, false},
		{22, 23, 7, false},
		{12, 9, 17, true},
		{17, 9, 17, false},
	}
	for _, test := range testData {
		if got := (Time{Hour: test.hour}).Within(test.from, test.to); got != test.want {
			t.Errorf("hour %d within [%d, %d):\n  got: %v\n want: %v", test.hour, test.from, test.to, got, test.want)
		}
	}
}

func TestFromTimeAndString(t *testing.T) {
	tm := FromTime(time.Date(2021, 9, 14, 6, 5, 4, 0, time.UTC))
	if got, want := tm.String(), "06:05:04"; got != want {
		t.Errorf("string:\n  got: %v\n want: %v", got, want)
	}
	if !tm.Valid() {
		t.Errorf("%v should be valid", tm)
	}
	if (Time{Hour: 24}).Valid() {
		t.Error("hour 24 should be invalid")
	}
}
