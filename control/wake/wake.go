// Package wake is a single-slot wakeup signal between goroutines.
//
// Any number of Notify calls made before the waiter runs coalesce into one wakeup.
package wake

// Signal is a wakeup with at most one pending notification.  The zero value is not usable; call
// New.
type Signal struct {
	ch chan struct{}
}

func New() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Notify wakes the waiter, or the next waiter if none is waiting.  It never blocks.
func (s *Signal) Notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// C returns the channel that receives a value when the signal is notified, for use in a select
// with other events.
func (s *Signal) C() <-chan struct{} {
	return s.ch
}
