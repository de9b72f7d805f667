// Package status serves a human-readable page describing what the clock is doing.
package status

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"image"
	"image/png"
	"log"
	"net/http"
	"time"

	"github.com/jrockway/vfd-alarm-clock/control/clock"
	"github.com/jrockway/vfd-alarm-clock/control/screen"
	"github.com/jrockway/vfd-alarm-clock/control/statemachine"
	"github.com/jrockway/vfd-alarm-clock/control/timeofday"
)

var (
	//go:embed index.html.tmpl
	indexHTML string
	funcMap   = template.FuncMap{
		"image":    formatImage,
		"celsius":  formatCelsius,
		"duration": formatDuration,
	}
	index = template.Must(template.New("index").Funcs(funcMap).Parse(indexHTML))
)

type Clock interface {
	Online() bool
	Time() timeofday.Time
	Alarm1() timeofday.Time
	Alarm2() timeofday.Time
	Mode() clock.AlarmMode
	State() clock.AlarmState
	StateElapsed() time.Duration
}

type Display interface {
	Current() screen.Frame
	Brightness() int
	Enabled() bool
}

type Strip interface {
	IsEnabled() bool
	Brightness() int
	ColorTemperature() int
}

type UI interface {
	Showing() statemachine.State
}

type Thermometer interface {
	Temperature() (float64, bool)
}

// Status is a snapshot of the clock.
type Status struct {
	Online           bool
	Now              timeofday.Time
	Alarm1, Alarm2   timeofday.Time
	Mode             clock.AlarmMode
	AlarmState       clock.AlarmState
	AlarmElapsed     time.Duration
	Temperature      float64
	HaveTemperature  bool
	UI               statemachine.State
	Face             image.Image
	StripOn          bool
	StripBrightness  int
	StripTemperature int // kelvin
}

// Page collects a Status from the running parts of the clock.  Any field may be nil.
type Page struct {
	Clock       Clock
	Display     Display
	Strip       Strip
	UI          UI
	Thermometer Thermometer
}

func (p *Page) Status() Status {
	var s Status
	if c := p.Clock; c != nil {
		s.Online = c.Online()
		s.Now = c.Time()
		s.Alarm1, s.Alarm2 = c.Alarm1(), c.Alarm2()
		s.Mode = c.Mode()
		s.AlarmState = c.State()
		s.AlarmElapsed = c.StateElapsed()
	}
	if d := p.Display; d != nil {
		s.Face = screen.Preview(d.Current(), d.Brightness(), d.Enabled())
	}
	if l := p.Strip; l != nil {
		s.StripOn = l.IsEnabled()
		s.StripBrightness = l.Brightness()
		s.StripTemperature = l.ColorTemperature()
	}
	if u := p.UI; u != nil {
		s.UI = u.Showing()
	}
	if t := p.Thermometer; t != nil {
		s.Temperature, s.HaveTemperature = t.Temperature()
	}
	return s
}

func (p *Page) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	buf := new(bytes.Buffer)
	if err := index.Execute(buf, p.Status()); err != nil {
		log.Printf("execute template: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("content-type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func formatImage(src image.Image) template.URL {
	if src == nil {
		src = image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, src); err != nil {
		log.Printf("problem encoding image: %v", err)
		return template.URL("data:text/plain,error")
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()))
}

func formatCelsius(x float64) string { return fmt.Sprintf("%.2f°C", x) }

func formatDuration(d time.Duration) string { return d.Truncate(time.Second).String() }
