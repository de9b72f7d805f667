package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrockway/vfd-alarm-clock/control/button"
	"github.com/jrockway/vfd-alarm-clock/control/clock"
	"github.com/jrockway/vfd-alarm-clock/control/config"
	"github.com/jrockway/vfd-alarm-clock/control/ds3231"
	"github.com/jrockway/vfd-alarm-clock/control/led"
	"github.com/jrockway/vfd-alarm-clock/control/screen"
	"github.com/jrockway/vfd-alarm-clock/control/statemachine"
	"github.com/jrockway/vfd-alarm-clock/control/status"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "golang.org/x/net/trace"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var (
	configFile = flag.String("config", "", "yaml file with pin assignments and tuning; defaults are used if empty")
	bind       = flag.String("bind", "", "address to bind for debug/metrics server; disabled if empty")
	i2cBus     = flag.String("i2c", "", "i2c bus that the rtc is on; the first bus if empty")
	spiPort    = flag.String("spi", "", "spi port that the display shift register is on; the shift register is bit-banged over gpio if empty")
	initDelay  = flag.Duration("init-delay", 20*time.Millisecond, "time to show each step of the segment test at startup; 0 skips it")
	tempPeriod = flag.Duration("temperature-interval", time.Minute, "how often to read the rtc's temperature sensor")
)

func mustPin(name string) gpio.PinIO {
	p := gpioreg.ByName(name)
	if p == nil {
		log.Fatalf("no gpio pin named %q", name)
	}
	return p
}

// task is a long-running part of the clock.
type task struct {
	name string
	run  func(context.Context) error
}

func main() {
	flag.Parse()
	if _, err := host.Init(); err != nil {
		log.Fatalf("init periph.io: %v", err)
	}
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	bus, err := i2creg.Open(*i2cBus)
	if err != nil {
		log.Fatalf("open i2c bus %q: %v", *i2cBus, err)
	}

	var shifter screen.Shifter
	if *spiPort != "" {
		port, err := spireg.Open(*spiPort)
		if err != nil {
			log.Fatalf("open spi port %q: %v", *spiPort, err)
		}
		conn, err := port.Connect(physic.MegaHertz, spi.Mode0, 8)
		if err != nil {
			log.Fatalf("connect to spi port %q: %v", *spiPort, err)
		}
		shifter = &screen.SPIShifter{Conn: conn, Strobe: mustPin(cfg.Pins.ShiftStrobe)}
	} else {
		shifter = &screen.GPIOShifter{
			Data:   mustPin(cfg.Pins.ShiftData),
			Clock:  mustPin(cfg.Pins.ShiftClock),
			Strobe: mustPin(cfg.Pins.ShiftStrobe),
		}
	}
	pins := screen.Pins{Heatwire: mustPin(cfg.Pins.Heatwire), Boost: mustPin(cfg.Pins.Boost)}
	for i, name := range cfg.Pins.Grids {
		pins.Grids[i] = mustPin(name)
	}
	tube := screen.New(shifter, pins, screen.NewTickerTimer(cfg.MultiplexPeriod, screen.StepCounts))
	tube.Blank()

	leds := led.NewStatusLeds(mustPin(cfg.Pins.Alarm1Led), mustPin(cfg.Pins.Alarm2Led), mustPin(cfg.Pins.RedLed), mustPin(cfg.Pins.GreenLed))
	strip := led.NewStrip(mustPin(cfg.Pins.StripWarm), mustPin(cfg.Pins.StripCold))
	var vibration gpio.PinOut
	if cfg.Pins.Vibration != "" {
		vibration = mustPin(cfg.Pins.Vibration)
	}

	rtc := ds3231.New(ds3231.NewPeriphBus(bus))
	cl := clock.New(rtc, clock.Options{
		Period:          time.Second,
		RetryInterval:   time.Second,
		SunriseDuration: cfg.SunriseDuration,
		SnoozeDuration:  cfg.SnoozeDuration,
	})
	ui := statemachine.New(cl, tube, leds, strip, vibration, statemachine.Options{
		NightStartHour:    cfg.NightStartHour,
		NightEndHour:      cfg.NightEndHour,
		StandbyTicks:      cfg.StandbyTicks,
		DisplayBrightness: cfg.DisplayBrightness,
		RepeatPeriod:      statemachine.DefaultOptions.RepeatPeriod,
	})
	cl.OnStateChange(ui.Notify)
	temperature := clock.NewTemperatureMonitor(rtc, *tempPeriod)

	timing := button.Timing{Debounce: cfg.Debounce, Long: cfg.LongPress, SuperLong: cfg.SuperLongPress}
	buttons := &button.Group{Interval: button.SampleInterval}
	for i, name := range cfg.Pins.Buttons() {
		id := button.ID(i)
		buttons.Buttons = append(buttons.Buttons, button.New(id, mustPin(name), ui.Button(id), timing))
	}
	if err := buttons.Init(); err != nil {
		log.Fatalf("init buttons: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	if *initDelay > 0 {
		if err := tube.Setup(ctx); err != nil {
			log.Fatalf("display setup: %v", err)
		}
		if err := tube.ShowInitialization(ctx, *initDelay); err != nil {
			log.Fatalf("display test: %v", err)
		}
	}

	var httpServer *http.Server
	httpDoneCh := make(chan error)
	if *bind != "" {
		http.Handle("/", &status.Page{Clock: cl, Display: tube, Strip: strip, UI: ui, Thermometer: temperature})
		http.Handle("/display.png", tube)
		http.Handle("/metrics", promhttp.Handler())

		httpServer = &http.Server{Addr: *bind}
		go func() {
			log.Printf("http server listening on %s", httpServer.Addr)
			err := httpServer.ListenAndServe()
			select {
			case httpDoneCh <- err:
			case <-ctx.Done():
			}
			close(httpDoneCh)
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	tasks := []task{
		{"rtc", cl.Run},
		{"rtc temperature", temperature.Run},
		{"ui", ui.Run},
		{"buttons", buttons.Run},
		{"status leds", leds.Run},
		{"strip", strip.Run},
	}
	loopDoneCh := make(chan error)
	for _, t := range tasks {
		t := t
		go func() {
			err := t.run(ctx)
			select {
			case loopDoneCh <- fmt.Errorf("%s: %w", t.name, err):
			case <-ctx.Done():
			}
		}()
	}

	select {
	case err := <-httpDoneCh:
		log.Printf("http server died: %v", err)
		httpServer = nil
	case err := <-loopDoneCh:
		log.Printf("loop died: %v", err)
	case <-sigCh:
		log.Printf("interrupt")
	}
	signal.Stop(sigCh)
	cancel()
	if err := tube.DisableDisplay(); err != nil {
		log.Printf("disable display: %v", err)
	}
	leds.TurnAllOff()
	// The outputs ramp down over a few updates.
	for i := 0; i < 8; i++ {
		if err := leds.Update(time.Now()); err != nil {
			log.Printf("turn off leds: %v", err)
			break
		}
	}
	if httpServer != nil {
		tctx, c := context.WithTimeout(context.Background(), time.Second)
		httpServer.Shutdown(tctx)
		c()
	}
	os.Exit(1)
}
