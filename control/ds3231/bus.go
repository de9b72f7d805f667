package ds3231

import (
	"sync"

	"periph.io/x/conn/v3/i2c"
	"tinygo.org/x/drivers"
)

// Bus is a register-oriented bus.  Every transfer happens between Begin and End; callers must call
// End even when a transfer fails.
type Bus interface {
	Begin(addr uint16)
	ReadRegister(reg uint8, buf []byte) error
	WriteRegister(reg uint8, data []byte) error
	End()
}

// txer is the transfer primitive shared by periph.io and TinyGo I2C buses.
type txer interface {
	Tx(addr uint16, w, r []byte) error
}

// TxBus adapts a write-then-read I2C bus to Bus.  Begin holds the bus until End, so a register
// read-modify-write is not interleaved with another caller's transfer.
type TxBus struct {
	mu   sync.Mutex
	bus  txer
	addr uint16 // only valid between Begin and End
}

// NewPeriphBus returns a Bus that talks through a periph.io I2C bus.
func NewPeriphBus(b i2c.Bus) *TxBus {
	return &TxBus{bus: b}
}

// NewTinyGoBus returns a Bus that talks through a TinyGo driver bus.
func NewTinyGoBus(b drivers.I2C) *TxBus {
	return &TxBus{bus: b}
}

func (b *TxBus) Begin(addr uint16) {
	b.mu.Lock()
	b.addr = addr
}

func (b *TxBus) End() {
	b.mu.Unlock()
}

func (b *TxBus) ReadRegister(reg uint8, buf []byte) error {
	return b.bus.Tx(b.addr, []byte{reg}, buf)
}

func (b *TxBus) WriteRegister(reg uint8, data []byte) error {
	w := make([]byte, 0, len(data)+1)
	w = append(w, reg)
	w = append(w, data...)
	return b.bus.Tx(b.addr, w, nil)
}
