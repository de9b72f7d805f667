package status

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jrockway/vfd-alarm-clock/control/clock"
	"github.com/jrockway/vfd-alarm-clock/control/led"
	"github.com/jrockway/vfd-alarm-clock/control/screen"
	"github.com/jrockway/vfd-alarm-clock/control/statemachine"
	"github.com/jrockway/vfd-alarm-clock/control/timeofday"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

type fakeClock struct{}

func (fakeClock) Online() bool                { return false }
func (fakeClock) Time() timeofday.Time        { return timeofday.New(6, 45, 10) }
func (fakeClock) Alarm1() timeofday.Time      { return timeofday.New(7, 0, 0) }
func (fakeClock) Alarm2() timeofday.Time      { return timeofday.New(9, 30, 0) }
func (fakeClock) Mode() clock.AlarmMode       { return clock.ModeAlarm1 }
func (fakeClock) State() clock.AlarmState     { return clock.StateSunrise }
func (fakeClock) StateElapsed() time.Duration { return 90500 * time.Millisecond }

type fakeDisplay struct{ frame screen.Frame }

func (d fakeDisplay) Current() screen.Frame { return d.frame }
func (fakeDisplay) Brightness() int         { return 60 }
func (fakeDisplay) Enabled() bool           { return true }

type fakeUI statemachine.State

func (u fakeUI) Showing() statemachine.State { return statemachine.State(u) }

type fakeThermometer float64

func (t fakeThermometer) Temperature() (float64, bool) { return float64(t), true }

func testPage() *Page {
	var f screen.Frame
	f.SetClock(timeofday.New(6, 45, 10), true)
	strip := led.NewStrip(&gpiotest.Pin{N: "warm"}, &gpiotest.Pin{N: "cold"})
	strip.TurnOn()
	return &Page{
		Clock:       fakeClock{},
		Display:     fakeDisplay{frame: f},
		Strip:       strip,
		UI:          fakeUI(statemachine.ClockWithAlarmLeds),
		Thermometer: fakeThermometer(24.75),
	}
}

func TestStatus(t *testing.T) {
	p := testPage()
	got := p.Status()
	if got.Face == nil {
		t.Error("status should include a picture of the display")
	}
	want := Status{
		Online:           false,
		Now:              timeofday.New(6, 45, 10),
		Alarm1:           timeofday.New(7, 0, 0),
		Alarm2:           timeofday.New(9, 30, 0),
		Mode:             clock.ModeAlarm1,
		AlarmState:       clock.StateSunrise,
		AlarmElapsed:     90500 * time.Millisecond,
		Temperature:      24.75,
		HaveTemperature:  true,
		UI:               statemachine.ClockWithAlarmLeds,
		StripOn:          true,
		StripBrightness:  p.Strip.Brightness(),
		StripTemperature: p.Strip.ColorTemperature(),
	}
	if diff := cmp.Diff(got, want, cmpopts.IgnoreFields(Status{}, "Face")); diff != "" {
		t.Errorf("status (-got +want):\n%s", diff)
	}

	// Nothing is attached yet while the clock starts up.
	empty := (&Page{}).Status()
	if empty.Face != nil || empty.HaveTemperature {
		t.Errorf("empty page should have no face or temperature: %#v", empty)
	}
}

func TestTemplate(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	testPage().ServeHTTP(rec, req)
	if got, want := rec.Code, http.StatusOK; got != want {
		t.Errorf("render index.html: response code:\n  got: %v\n want: %v", got, want)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"06:45:10",
		"07:00:00",
		"offline",
		"24.75",
		"sunrise for 1m30s",
		"data:image/png;base64,",
		statemachine.ClockWithAlarmLeds.String(),
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index.html should contain %q", want)
		}
	}
	if os.Getenv("DUMP") != "" {
		if err := os.WriteFile("index.html", rec.Body.Bytes(), 0o644); err != nil {
			t.Fatal(err)
		}
		t.Log("wrote index.html")
	}
}
