// Package config describes how the clock is wired up and tuned.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v2"
)

// Pins are gpioreg names.  Every pin is required except Vibration, which is left empty on clocks
// without a motor.
type Pins struct {
	ShiftData   string    `yaml:"shiftData"`
	ShiftClock  string    `yaml:"shiftClock"`
	ShiftStrobe string    `yaml:"shiftStrobe"`
	Grids       [6]string `yaml:"grids"`
	Heatwire    string    `yaml:"heatwire"`
	Boost       string    `yaml:"boost"`

	Alarm1Led string `yaml:"alarm1Led"`
	Alarm2Led string `yaml:"alarm2Led"`
	RedLed    string `yaml:"redLed"`
	GreenLed  string `yaml:"greenLed"`
	StripWarm string `yaml:"stripWarm"`
	StripCold string `yaml:"stripCold"`
	Vibration string `yaml:"vibration"`

	Left            string `yaml:"left"`
	Right           string `yaml:"right"`
	Snooze          string `yaml:"snooze"`
	BrightnessPlus  string `yaml:"brightnessPlus"`
	BrightnessMinus string `yaml:"brightnessMinus"`
	CCTPlus         string `yaml:"cctPlus"`
	CCTMinus        string `yaml:"cctMinus"`
}

// Buttons returns the button pin names in button.ID order.
func (p Pins) Buttons() []string {
	return []string{p.Left, p.Right, p.Snooze, p.BrightnessPlus, p.BrightnessMinus, p.CCTPlus, p.CCTMinus}
}

// required returns every pin that must be named, keyed by its yaml name.
func (p Pins) required() map[string]string {
	pins := map[string]string{
		"shiftData": p.ShiftData, "shiftClock": p.ShiftClock, "shiftStrobe": p.ShiftStrobe,
		"heatwire": p.Heatwire, "boost": p.Boost,
		"alarm1Led": p.Alarm1Led, "alarm2Led": p.Alarm2Led, "redLed": p.RedLed, "greenLed": p.GreenLed,
		"stripWarm": p.StripWarm, "stripCold": p.StripCold,
		"left": p.Left, "right": p.Right, "snooze": p.Snooze,
		"brightnessPlus": p.BrightnessPlus, "brightnessMinus": p.BrightnessMinus,
		"cctPlus": p.CCTPlus, "cctMinus": p.CCTMinus,
	}
	for i, name := range p.Grids {
		pins[fmt.Sprintf("grids[%d]", i)] = name
	}
	return pins
}

func (p Pins) all() []string {
	pins := []string{p.ShiftData, p.ShiftClock, p.ShiftStrobe, p.Heatwire, p.Boost, p.Alarm1Led, p.Alarm2Led,
		p.RedLed, p.GreenLed, p.StripWarm, p.StripCold, p.Vibration}
	pins = append(pins, p.Grids[:]...)
	return append(pins, p.Buttons()...)
}

type Config struct {
	Pins Pins `yaml:"pins"`

	// The display goes to standby at night, if nobody is using it.
	NightStartHour int `yaml:"nightStartHour"`
	NightEndHour   int `yaml:"nightEndHour"`
	StandbyTicks   int `yaml:"standbyTicks"`

	DisplayBrightness int           `yaml:"displayBrightness"` // percent
	MultiplexPeriod   time.Duration `yaml:"multiplexPeriod"`

	SunriseDuration time.Duration `yaml:"sunriseDuration"`
	SnoozeDuration  time.Duration `yaml:"snoozeDuration"`

	Debounce       time.Duration `yaml:"debounce"`
	LongPress      time.Duration `yaml:"longPress"`
	SuperLongPress time.Duration `yaml:"superLongPress"`
}

// Default returns the configuration of the clock on my nightstand.
func Default() *Config {
	return &Config{
		Pins: Pins{
			ShiftData:   "GPIO17",
			ShiftClock:  "GPIO27",
			ShiftStrobe: "GPIO22",
			Grids:       [6]string{"GPIO5", "GPIO6", "GPIO19", "GPIO26", "GPIO21", "GPIO20"},
			Heatwire:    "GPIO23",
			Boost:       "GPIO24",
			Alarm1Led:   "GPIO12",
			Alarm2Led:   "GPIO16",
			RedLed:      "GPIO14",
			GreenLed:    "GPIO15",
			StripWarm:   "GPIO18",
			StripCold:   "GPIO13",
			Vibration:   "GPIO4",

			Left:            "GPIO7",
			Right:           "GPIO8",
			Snooze:          "GPIO9",
			BrightnessPlus:  "GPIO10",
			BrightnessMinus: "GPIO11",
			CCTPlus:         "GPIO0",
			CCTMinus:        "GPIO1",
		},
		NightStartHour:    23,
		NightEndHour:      7,
		StandbyTicks:      10,
		DisplayBrightness: 100,
		MultiplexPeriod:   250 * time.Microsecond,
		SunriseDuration:   30 * time.Minute,
		SnoozeDuration:    9 * time.Minute,
		Debounce:          30 * time.Millisecond,
		LongPress:         time.Second,
		SuperLongPress:    3 * time.Second,
	}
}

// Load reads a YAML file over the defaults.  Fields missing from the file keep their default value.
func Load(filename string) (*Config, error) {
	c := Default()
	if filename == "" {
		return c, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", filename, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %q: %w", filename, err)
	}
	return c, nil
}

var (
	ErrOutOfRange = errors.New("out of range")
	ErrPinReused  = errors.New("used more than once")
	ErrMissingPin = errors.New("no pin")
)

func checkHour(name string, h int) error {
	if h < 0 || h > 23 {
		return fmt.Errorf("%s: hour %d: %w", name, h, ErrOutOfRange)
	}
	return nil
}

func checkPositive(name string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%s: %v: %w", name, d, ErrOutOfRange)
	}
	return nil
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	var errs []error
	errs = append(errs, checkHour("nightStartHour", c.NightStartHour), checkHour("nightEndHour", c.NightEndHour))
	if c.StandbyTicks < 1 {
		errs = append(errs, fmt.Errorf("standbyTicks: %d: %w", c.StandbyTicks, ErrOutOfRange))
	}
	if c.DisplayBrightness < 1 || c.DisplayBrightness > 100 {
		errs = append(errs, fmt.Errorf("displayBrightness: %d%%: %w", c.DisplayBrightness, ErrOutOfRange))
	}
	errs = append(errs,
		checkPositive("multiplexPeriod", c.MultiplexPeriod),
		checkPositive("sunriseDuration", c.SunriseDuration),
		checkPositive("snoozeDuration", c.SnoozeDuration),
		checkPositive("debounce", c.Debounce),
	)
	if c.LongPress <= c.Debounce || c.SuperLongPress <= c.LongPress {
		errs = append(errs, fmt.Errorf("press thresholds %v < %v < %v: %w", c.Debounce, c.LongPress, c.SuperLongPress, ErrOutOfRange))
	}
	var missing []string
	for key, name := range c.Pins.required() {
		if name == "" {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	for _, key := range missing {
		errs = append(errs, fmt.Errorf("pins.%s: %w", key, ErrMissingPin))
	}
	used := map[string]bool{}
	for _, name := range c.Pins.all() {
		if name == "" {
			continue
		}
		if used[name] {
			errs = append(errs, fmt.Errorf("pin %s: %w", name, ErrPinReused))
		}
		used[name] = true
	}
	return errors.Join(errs...)
}
