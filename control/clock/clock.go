// Package clock keeps the time of day and the alarms, mirrored from the RTC, and decides when an
// alarm goes off.
package clock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrockway/vfd-alarm-clock/control/timeofday"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/trace"
)

func toNanos(ds []time.Duration) []float64 {
	var result []float64
	for _, d := range ds {
		result = append(result, float64(d.Nanoseconds()))
	}
	return result
}

var (
	missedTicksCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "missed_ticks",
		Help: "count of ticks that were generated but never received by anything",
	})

	tickDelayMetric = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tick_delay",
		Help:    "amount of time between seconds tick and when it is sent to the channel, in nanoseconds",
		Buckets: toNanos([]time.Duration{10 * time.Microsecond, 100 * time.Microsecond, time.Millisecond, 10 * time.Millisecond, 100 * time.Millisecond, 500 * time.Millisecond}),
	})

	rtcReadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rtc_time_read_failures",
		Help: "count of seconds where the time was advanced locally because the rtc did not answer",
	})

	rtcOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rtc_online",
		Help: "1 if the most recent rtc transfer succeeded",
	})

	alarmTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alarm_state_changes",
		Help: "count of alarm state changes, by new state",
	}, []string{"state"})
)

// Tick sends the current time to the provided channel at the exact instant that each period
// starts.  An absent listener will not receive an outdated time; the tick will be skipped and the
// missedTicksCounter incremented.  Cancelling the context causes this to return immediately.
func Tick(ctx context.Context, period time.Duration, ch chan time.Time) error {
	for {
		next := time.Now().Add(period).Truncate(period)

		// Wait until the next period starts.
		select {
		case <-time.After(time.Until(next)):
		case <-ctx.Done():
			return fmt.Errorf("waiting for next tick: %w", ctx.Err())
		}

		// Send the time to the channel.
		select {
		case <-time.After(period / 2):
			missedTicksCounter.Inc()
		case <-ctx.Done():
			return fmt.Errorf("waiting to send tick: %w", ctx.Err())
		case ch <- next:
			tickDelayMetric.Observe(float64(time.Since(next).Nanoseconds()))
		}
	}
}

// RTC is the battery-backed clock chip.  Reads report whether the bus transfer worked; writes
// report false on a bus failure or out-of-range input.
type RTC interface {
	Time() (timeofday.Time, bool)
	SetTime(timeofday.Time) bool
	Alarm1() (timeofday.Time, bool)
	SetAlarm1(timeofday.Time) bool
	Alarm2() (timeofday.Time, bool)
	SetAlarm2(timeofday.Time) bool
	Enable32kHz(bool) bool
	SetInterruptOutput(bool) bool
	ClearAlarm1Flag() bool
	ClearAlarm2Flag() bool
	Online() bool
}

// AlarmMode is which alarms are armed.
type AlarmMode int

const (
	ModeOff AlarmMode = iota
	ModeAlarm1
	ModeAlarm2
	ModeBoth
)

func (m AlarmMode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeAlarm1:
		return "alarm 1"
	case ModeAlarm2:
		return "alarm 2"
	case ModeBoth:
		return "both"
	}
	return "unknown"
}

// Next returns the mode after m in the order the alarm status screen cycles through.
func (m AlarmMode) Next() AlarmMode {
	return (m + 1) % (ModeBoth + 1)
}

// Alarm1Armed reports whether alarm 1 is armed in mode m.
func (m AlarmMode) Alarm1Armed() bool { return m == ModeAlarm1 || m == ModeBoth }

// Alarm2Armed reports whether alarm 2 is armed in mode m.
func (m AlarmMode) Alarm2Armed() bool { return m == ModeAlarm2 || m == ModeBoth }

// AlarmState is where a triggered alarm is in its lifecycle.
type AlarmState int

const (
	StateOff       AlarmState = iota
	StateSunrise              // the strip fades up before the alarm sounds
	StateVibration            // the alarm is sounding
	StateSnooze
)

func (s AlarmState) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateSunrise:
		return "sunrise"
	case StateVibration:
		return "vibration"
	case StateSnooze:
		return "snooze"
	}
	return "unknown"
}

// Options configures a Clock.
type Options struct {
	Period          time.Duration // how often the time is read
	RetryInterval   time.Duration // how often bring-up is retried while the rtc is offline
	SunriseDuration time.Duration // how long sunrise lasts before vibration
	SnoozeDuration  time.Duration
}

var DefaultOptions = Options{
	Period:          time.Second,
	RetryInterval:   time.Second,
	SunriseDuration: 30 * time.Minute,
	SnoozeDuration:  9 * time.Minute,
}

// Clock is the authoritative copy of the time and the alarms.  Run updates it from the rtc; every
// other method is safe to call from any goroutine.
type Clock struct {
	rtc  RTC
	opts Options
	l    trace.EventLog

	readyOnce sync.Once
	ready     chan struct{}

	mu           sync.Mutex
	now          timeofday.Time
	alarm1       timeofday.Time
	alarm2       timeofday.Time
	mode         AlarmMode
	state        AlarmState
	stateElapsed time.Duration // time spent in the current state
	matched      bool          // an armed alarm matched at the last evaluation
	online       bool
	notify       func()
}

// New returns a Clock with both alarms armed.  Call Run to start updating it.
func New(rtc RTC, opts Options) *Clock {
	return &Clock{
		rtc:   rtc,
		opts:  opts,
		l:     trace.NewEventLog("task", "rtc"),
		ready: make(chan struct{}),
		mode:  ModeBoth,
	}
}

// Ready is closed once the rtc has been read for the first time.
func (c *Clock) Ready() <-chan struct{} {
	return c.ready
}

func (c *Clock) setOnline(ok bool) {
	c.mu.Lock()
	c.online = ok
	c.mu.Unlock()
	if ok {
		rtcOnline.Set(1)
	} else {
		rtcOnline.Set(0)
	}
}

// initRTC routes alarms to the interrupt pin, turns off the unused 32kHz output, and clears any
// alarm that fired while we were not looking.
func (c *Clock) initRTC() bool {
	c.rtc.Enable32kHz(false)
	c.rtc.SetInterruptOutput(true)
	c.rtc.ClearAlarm1Flag()
	c.rtc.ClearAlarm2Flag()
	return c.rtc.Online()
}

// bootstrap makes one attempt to bring up the rtc and load the time and alarms.  Alarm minutes are
// rounded down to a multiple of 5 and written back, since the alarm editor steps by 5.
func (c *Clock) bootstrap() bool {
	if !c.initRTC() {
		c.setOnline(false)
		return false
	}
	now, ok1 := c.rtc.Time()
	a1, ok2 := c.rtc.Alarm1()
	a2, ok3 := c.rtc.Alarm2()
	if !ok1 || !ok2 || !ok3 {
		c.setOnline(false)
		return false
	}
	a1, a2 = a1.TruncateMinute(5), a2.TruncateMinute(5)
	c.rtc.SetAlarm1(a1)
	c.rtc.SetAlarm2(a2)
	c.mu.Lock()
	c.now, c.alarm1, c.alarm2 = now, a1, a2
	c.mu.Unlock()
	c.setOnline(c.rtc.Online())
	c.l.Printf("rtc up: time %v, alarm 1 %v, alarm 2 %v", now, a1, a2)
	return true
}

// Bootstrap retries bring-up until it succeeds or the context is done.  Ready is closed on success.
func (c *Clock) Bootstrap(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if c.bootstrap() {
			c.readyOnce.Do(func() { close(c.ready) })
			return nil
		}
		if attempt == 1 {
			c.l.Errorf("rtc offline, retrying every %v", c.opts.RetryInterval)
		}
		select {
		case <-time.After(c.opts.RetryInterval):
		case <-ctx.Done():
			return fmt.Errorf("waiting for rtc: %w", ctx.Err())
		}
	}
}

// Update reads the time from the rtc, or advances the cached time by dt if the rtc does not
// answer, and then evaluates the alarms.
func (c *Clock) Update(dt time.Duration) {
	now, ok := c.rtc.Time()
	c.setOnline(ok)
	c.mu.Lock()
	if ok {
		c.now = now
	} else {
		rtcReadFailures.Inc()
		c.now = c.now.AddSeconds(int(dt / time.Second))
	}
	c.mu.Unlock()
	c.Evaluate(dt)
}

func (c *Clock) setState(s AlarmState) {
	if s == c.state {
		return
	}
	c.l.Printf("alarm %v -> %v at %v", c.state, s, c.now)
	alarmTriggers.WithLabelValues(s.String()).Inc()
	c.state = s
	c.stateElapsed = 0
	if c.notify != nil {
		c.notify()
	}
}

// OnStateChange registers f to be called whenever the alarm state changes.  f is called with the
// clock locked, so it must not block or call back into the clock.
func (c *Clock) OnStateChange(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = f
}

// Evaluate checks the cached time against the armed alarms and advances the alarm lifecycle by dt.
// An alarm triggers once when its minute starts matching; it cannot trigger again until the match
// has ended.
func (c *Clock) Evaluate(dt time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	match := (c.mode.Alarm1Armed() && c.now.SameMinute(c.alarm1)) ||
		(c.mode.Alarm2Armed() && c.now.SameMinute(c.alarm2))
	edge := match && !c.matched
	c.matched = match
	if edge && c.state == StateOff {
		c.setState(StateSunrise)
		return
	}

	c.stateElapsed += dt
	switch c.state {
	case StateSunrise:
		if c.stateElapsed >= c.opts.SunriseDuration {
			c.setState(StateVibration)
		}
	case StateSnooze:
		if c.stateElapsed >= c.opts.SnoozeDuration {
			c.setState(StateVibration)
		}
	}
}

// Run brings up the rtc and then updates the clock every period until the context is cancelled.
func (c *Clock) Run(ctx context.Context) error {
	defer c.l.Finish()
	if err := c.Bootstrap(ctx); err != nil {
		return err
	}
	tickErrCh := make(chan error)
	tickCh := make(chan time.Time)
	go func() {
		err := Tick(ctx, c.opts.Period, tickCh)
		select {
		case tickErrCh <- err:
		case <-ctx.Done():
		}
		close(tickErrCh)
	}()
	last := time.Now()
	for {
		select {
		case t := <-tickCh:
			// Missed ticks still count toward the local fallback, rounded to whole periods.
			dt := t.Sub(last).Round(c.opts.Period)
			if dt < c.opts.Period {
				dt = c.opts.Period
			}
			last = t
			c.Update(dt)
		case err := <-tickErrCh:
			return fmt.Errorf("ticker: %w", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Time returns the cached time of day.
func (c *Clock) Time() timeofday.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// SetTime writes t to the rtc and the cache.  The cache is updated even if the rtc is offline.
func (c *Clock) SetTime(t timeofday.Time) bool {
	if !t.Valid() {
		return false
	}
	ok := c.rtc.SetTime(t)
	c.setOnline(ok)
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
	c.l.Printf("time set to %v (rtc write ok: %v)", t, ok)
	return ok
}

func (c *Clock) Alarm1() timeofday.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alarm1
}

func (c *Clock) Alarm2() timeofday.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alarm2
}

// SetAlarm1 writes alarm 1 to the rtc and the cache.  The result reports whether the rtc accepted
// it; the cached alarm is used either way.
func (c *Clock) SetAlarm1(t timeofday.Time) bool {
	return c.setAlarm(1, t, c.rtc.SetAlarm1, &c.alarm1)
}

// SetAlarm2 is SetAlarm1 for alarm 2.
func (c *Clock) SetAlarm2(t timeofday.Time) bool {
	return c.setAlarm(2, t, c.rtc.SetAlarm2, &c.alarm2)
}

func (c *Clock) setAlarm(n int, t timeofday.Time, write func(timeofday.Time) bool, cache *timeofday.Time) bool {
	if !t.Valid() {
		return false
	}
	ok := write(t)
	c.setOnline(ok)
	c.mu.Lock()
	*cache = t
	c.mu.Unlock()
	c.l.Printf("alarm %d set to %v (rtc write ok: %v)", n, t, ok)
	return ok
}

func (c *Clock) Mode() AlarmMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Clock) SetMode(m AlarmMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m != c.mode {
		c.l.Printf("alarm mode %v -> %v", c.mode, m)
	}
	c.mode = m
}

func (c *Clock) State() AlarmState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StateElapsed returns how long the alarm has been in its current state.
func (c *Clock) StateElapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateElapsed
}

// SunriseProgress returns how far through sunrise the alarm is, from 0 to 1.  It is 1 outside of
// sunrise.
func (c *Clock) SunriseProgress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSunrise || c.opts.SunriseDuration <= 0 {
		return 1
	}
	p := float64(c.stateElapsed) / float64(c.opts.SunriseDuration)
	if p > 1 {
		p = 1
	}
	return p
}

// Snooze silences a sounding alarm.  It does nothing in other states.
func (c *Clock) Snooze() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateVibration {
		return false
	}
	c.setState(StateSnooze)
	return true
}

// Dismiss turns off an active alarm.
func (c *Clock) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setState(StateOff)
}

// Online reports whether the most recent rtc transfer succeeded.
func (c *Clock) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}
