package screen

import (
	"github.com/jrockway/vfd-alarm-clock/control/font"
	"github.com/jrockway/vfd-alarm-clock/control/timeofday"
)

// Grids is the number of digit positions on the tube.
const Grids = 6

// FrameBits is the width of one shift register frame: the glyph segments followed by the upper bar,
// dots and lower bar.
const FrameBits = font.Segments + 3

// GridData is what one digit position shows.
type GridData struct {
	Segments uint32 // font.Glyph pattern
	Dots     bool
	UpperBar bool
	LowerBar bool
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// Bits packs g into a shift register frame.
func (g GridData) Bits() uint32 {
	return g.Segments<<3 | b2u(g.UpperBar)<<2 | b2u(g.Dots)<<1 | b2u(g.LowerBar)
}

// Frame is the content of every grid.  Grid 0 is the leftmost.
type Frame [Grids]GridData

// SetChar puts the glyph for r on grid, keeping its annotations.
func (f *Frame) SetChar(grid int, r rune) {
	if grid < 0 || grid >= Grids {
		return
	}
	f[grid].Segments = font.Glyph(r)
}

// SetText writes s starting at grid start.  Characters past the last grid are dropped.
func (f *Frame) SetText(start int, s string) {
	i := start
	for _, r := range s {
		f.SetChar(i, r)
		i++
	}
}

// SetDigits writes n right-aligned and zero-padded into width grids ending at grid last.
func (f *Frame) SetDigits(last, width, n int) {
	for i := 0; i < width; i++ {
		if grid := last - i; grid >= 0 && grid < Grids {
			f[grid].Segments = font.Digit(n)
		}
		n /= 10
	}
}

// SetClock shows t as HH MM on grids 1-4.  The dots between hours and minutes are lit on even
// seconds, or always if forceDots is set.
func (f *Frame) SetClock(t timeofday.Time, forceDots bool) {
	f.SetDigits(2, 2, t.Hour)
	f.SetDigits(4, 2, t.Minute)
	f[2].Dots = t.Second%2 == 0 || forceDots
}
