package led

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/net/trace"
	"periph.io/x/conn/v3/gpio"
)

const (
	// StatusRate is how often status LEDs are updated.
	StatusRate = 50 * time.Millisecond
	statusRamp = Max / 4
)

// StatusLeds are the indicator LEDs on the front panel: one per alarm and a red/green status LED.
type StatusLeds struct {
	Alarm1   *SingleLed
	Alarm2   *SingleLed
	RedGreen *DualLed
}

func NewStatusLeds(alarm1, alarm2, red, green gpio.PinOut) *StatusLeds {
	return &StatusLeds{
		Alarm1:   NewSingleLed(alarm1, statusRamp),
		Alarm2:   NewSingleLed(alarm2, statusRamp),
		RedGreen: NewDualLed(red, green, statusRamp),
	}
}

func (s *StatusLeds) TurnAllOn() {
	s.Alarm1.TurnOn()
	s.Alarm2.TurnOn()
	s.RedGreen.SetColor(Orange)
}

func (s *StatusLeds) TurnAllOff() {
	s.Alarm1.TurnOff()
	s.Alarm2.TurnOff()
	s.RedGreen.SetColor(Off)
}

// Update steps every LED toward its target.
func (s *StatusLeds) Update(now time.Time) error {
	if err := s.Alarm1.Update(); err != nil {
		return fmt.Errorf("alarm 1 led: %w", err)
	}
	if err := s.Alarm2.Update(); err != nil {
		return fmt.Errorf("alarm 2 led: %w", err)
	}
	if err := s.RedGreen.Update(now); err != nil {
		return fmt.Errorf("status led: %w", err)
	}
	return nil
}

// Run updates the LEDs until the context is cancelled.
func (s *StatusLeds) Run(ctx context.Context) error {
	return run(ctx, "status-leds", StatusRate, s.Update)
}

func run(ctx context.Context, name string, period time.Duration, update func(time.Time) error) error {
	l := trace.NewEventLog("task", name)
	defer l.Finish()
	t := time.NewTicker(period)
	defer t.Stop()
	failing := false
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", name, ctx.Err())
		case now := <-t.C:
			err := update(now)
			switch {
			case err != nil && !failing:
				l.Errorf("update: %v", err)
			case err == nil && failing:
				l.Printf("recovered")
			}
			failing = err != nil
		}
	}
}
