package button

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

type recorder []Action

func (r *recorder) OnButtonAction(a Action) { *r = append(*r, a) }

// hold drives the pin to l for d, sampling every SampleInterval.
func hold(b *Button, pin *gpiotest.Pin, l gpio.Level, d time.Duration) {
	pin.Lock()
	pin.L = l
	pin.Unlock()
	for t := time.Duration(0); t < d; t += SampleInterval {
		b.Update(SampleInterval)
	}
}

func newButton() (*Button, *gpiotest.Pin, *recorder) {
	pin := &gpiotest.Pin{N: "button"}
	r := &recorder{}
	b := New(Snooze, pin, r, DefaultTiming)
	if err := b.Init(); err != nil {
		panic(err)
	}
	return b, pin, r
}

func TestClassification(t *testing.T) {
	testData := []struct {
		name string
		held time.Duration
		want []Action
	}{
		{"bounce", 20 * time.Millisecond, nil},
		{"short", 200 * time.Millisecond, []Action{ShortPress}},
		{"long", 1500 * time.Millisecond, []Action{LongPress, StopLongPress}},
		{"super long", 4 * time.Second, []Action{LongPress, SuperLongPress, StopLongPress}},
	}
	for _, test := range testData {
		t.Run(test.name, func(t *testing.T) {
			b, pin, r := newButton()
			hold(b, pin, gpio.High, 100*time.Millisecond)
			hold(b, pin, gpio.Low, test.held)
			hold(b, pin, gpio.High, 100*time.Millisecond)
			if diff := cmp.Diff([]Action(*r), test.want, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("actions (-got +want):\n%s", diff)
			}
		})
	}
}

func TestLongPressFiresWhileHeld(t *testing.T) {
	b, pin, r := newButton()
	hold(b, pin, gpio.Low, 1100*time.Millisecond)
	if diff := cmp.Diff([]Action(*r), []Action{LongPress}); diff != "" {
		t.Errorf("actions while held (-got +want):\n%s", diff)
	}
	hold(b, pin, gpio.Low, time.Second)
	if got := len(*r); got != 1 {
		t.Errorf("long press repeated: %v", *r)
	}
}

func TestInitPullsUp(t *testing.T) {
	_, pin, _ := newButton()
	if got, want := pin.Pull(), gpio.PullUp; got != want {
		t.Errorf("pull:\n  got: %v\n want: %v", got, want)
	}
	if got, want := pin.Read(), gpio.High; got != want {
		t.Errorf("idle level:\n  got: %v\n want: %v", got, want)
	}
}

func TestStrings(t *testing.T) {
	for id := Left; id < NumButtons; id++ {
		if id.String() == "unknown" {
			t.Errorf("button %d has no name", id)
		}
	}
	if got, want := StopLongPress.String(), "stop-long"; got != want {
		t.Errorf("action name:\n  got: %v\n want: %v", got, want)
	}
}
