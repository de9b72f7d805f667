package screen

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Timer drives multiplexing.  Once started, it calls update at the start of every period and
// compare when the counter reaches the compare value, like a hardware timer with one output-compare
// channel.  Callbacks run on one goroutine and never overlap.
type Timer interface {
	Start(update, compare func()) error
	Stop() error
	SetCompare(v uint32)
	Compare() uint32
}

// TickerTimer is a Timer in software.  Its period is divided into Top counts.
type TickerTimer struct {
	Period time.Duration
	Top    uint32

	compare atomic.Uint32

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var ErrTimerRunning = errors.New("timer already running")

func NewTickerTimer(period time.Duration, top uint32) *TickerTimer {
	t := &TickerTimer{Period: period, Top: top}
	t.compare.Store(top)
	return t
}

func (t *TickerTimer) SetCompare(v uint32) { t.compare.Store(v) }
func (t *TickerTimer) Compare() uint32     { return t.compare.Load() }

func (t *TickerTimer) Start(update, compare func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return ErrTimerRunning
	}
	stop, done := make(chan struct{}), make(chan struct{})
	t.stop, t.done = stop, done
	go func() {
		defer close(done)
		tick := time.NewTicker(t.Period)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
			}
			update()
			c := t.compare.Load()
			if c >= t.Top {
				continue
			}
			select {
			case <-stop:
				return
			case <-time.After(t.Period * time.Duration(c) / time.Duration(t.Top)):
			}
			compare()
		}
	}()
	return nil
}

// Stop stops the timer and waits for a running callback to return.  Stopping a stopped timer does
// nothing.
func (t *TickerTimer) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop == nil {
		return nil
	}
	close(t.stop)
	<-t.done
	t.stop, t.done = nil, nil
	return nil
}
