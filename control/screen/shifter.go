package screen

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// Shifter moves a frame into the display's shift register.  Shift loads the register without
// changing its outputs; Latch copies the register to the outputs.
type Shifter interface {
	Shift(bits uint32) error
	Latch() error
}

// GPIOShifter bit-bangs the shift register through three pins.
type GPIOShifter struct {
	Data   gpio.PinOut
	Clock  gpio.PinOut
	Strobe gpio.PinOut
}

func pulse(p gpio.PinOut) error {
	if err := p.Out(gpio.High); err != nil {
		return err
	}
	return p.Out(gpio.Low)
}

// Shift sends the low FrameBits of bits, least significant first.
func (s *GPIOShifter) Shift(bits uint32) error {
	for i := 0; i < FrameBits; i++ {
		if err := s.Data.Out(gpio.Level((bits>>i)&1 == 1)); err != nil {
			return fmt.Errorf("data bit %d: %w", i, err)
		}
		if err := pulse(s.Clock); err != nil {
			return fmt.Errorf("clock bit %d: %w", i, err)
		}
	}
	return nil
}

func (s *GPIOShifter) Latch() error {
	if err := pulse(s.Strobe); err != nil {
		return fmt.Errorf("strobe: %w", err)
	}
	return nil
}

// SPIShifter sends frames as 3 SPI bytes, MSB first, and latches with a separate strobe pin.  The
// first 24-FrameBits bits are padding that falls off the end of the register.
type SPIShifter struct {
	Conn   spi.Conn
	Strobe gpio.PinOut
}

// spiFrame orders bits so that bit 0 is the first bit clocked in after the padding, which matches
// what GPIOShifter does.
func spiFrame(bits uint32) []byte {
	var w uint32
	for i := 0; i < FrameBits; i++ {
		if bits&(1<<i) != 0 {
			w |= 1 << (FrameBits - 1 - i)
		}
	}
	return []byte{byte(w >> 16), byte(w >> 8), byte(w)}
}

func (s *SPIShifter) Shift(bits uint32) error {
	if err := s.Conn.Tx(spiFrame(bits), nil); err != nil {
		return fmt.Errorf("spi tx: %w", err)
	}
	return nil
}

func (s *SPIShifter) Latch() error {
	if err := pulse(s.Strobe); err != nil {
		return fmt.Errorf("strobe: %w", err)
	}
	return nil
}
