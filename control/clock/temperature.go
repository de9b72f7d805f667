package clock

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/trace"
)

var rtcTemperature = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "rtc_temperature_celsius",
	Help: "temperature reported by the rtc's oscillator compensation sensor",
})

// conversionTime is how long the rtc takes to finish a forced temperature conversion.
const conversionTime = 200 * time.Millisecond

// Thermometer is the temperature sensor inside the rtc.
type Thermometer interface {
	ForceTemperatureUpdate() bool
	Temperature() (float64, bool)
}

// TemperatureMonitor periodically reads the rtc's temperature.
type TemperatureMonitor struct {
	Sensor Thermometer
	Period time.Duration

	last atomic.Uint64 // math.Float64bits of the last reading; NaN until the first
}

func NewTemperatureMonitor(sensor Thermometer, period time.Duration) *TemperatureMonitor {
	m := &TemperatureMonitor{Sensor: sensor, Period: period}
	m.last.Store(math.Float64bits(math.NaN()))
	return m
}

// Temperature returns the last reading in degrees celsius.  ok is false until a reading succeeds.
func (m *TemperatureMonitor) Temperature() (float64, bool) {
	t := math.Float64frombits(m.last.Load())
	return t, !math.IsNaN(t)
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// read forces a conversion and reads the result.
func (m *TemperatureMonitor) read(ctx context.Context) (float64, error) {
	if !m.Sensor.ForceTemperatureUpdate() {
		return 0, fmt.Errorf("start conversion: rtc offline")
	}
	if err := sleep(ctx, conversionTime); err != nil {
		return 0, fmt.Errorf("wait for conversion: %w", err)
	}
	t, ok := m.Sensor.Temperature()
	if !ok {
		return 0, fmt.Errorf("read temperature: rtc offline")
	}
	return t, nil
}

// Run reads the temperature every period until the context is cancelled.
func (m *TemperatureMonitor) Run(ctx context.Context) error {
	l := trace.NewEventLog("sensor", "rtc-temperature")
	defer l.Finish()
	first := true
	for {
		if first {
			first = false
		} else if err := sleep(ctx, m.Period); err != nil {
			return fmt.Errorf("temperature monitor: %w", err)
		}
		t, err := m.read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("temperature monitor: %w", ctx.Err())
			}
			l.Errorf("error: %v", err)
			continue
		}
		l.Printf("temperature: %.2fC", t)
		rtcTemperature.Set(t)
		m.last.Store(math.Float64bits(t))
	}
}
