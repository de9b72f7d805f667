package button

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/net/trace"
)

// SampleInterval is how often a Group samples its buttons.
const SampleInterval = 10 * time.Millisecond

// Group polls a fixed set of buttons.
type Group struct {
	Buttons  []*Button
	Interval time.Duration
}

// Init configures every button's pin.
func (g *Group) Init() error {
	for _, b := range g.Buttons {
		if err := b.Init(); err != nil {
			return fmt.Errorf("init button %v: %w", b.ID(), err)
		}
	}
	return nil
}

// Run samples the buttons until the context is cancelled.
func (g *Group) Run(ctx context.Context) error {
	l := trace.NewEventLog("task", "buttons")
	defer l.Finish()
	interval := g.Interval
	if interval <= 0 {
		interval = SampleInterval
	}
	l.Printf("polling %d buttons every %v", len(g.Buttons), interval)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("buttons: %w", ctx.Err())
		case <-t.C:
			for _, b := range g.Buttons {
				b.Update(interval)
			}
		}
	}
}
