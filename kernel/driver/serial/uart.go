// Package serial provides a write-only driver for a 16550 compatible UART.
// It is the output device used for diagnostics on hardware and emulators.
package serial

import (
	"io"

	"irqos/kernel"
	"irqos/kernel/hal"
	"irqos/kernel/kfmt"
)

// COM1 is the I/O base port of the first serial port.
const COM1 = 0x3f8

// Register offsets relative to the base port.
const (
	regData        = 0 // DLAB=0: transmit holding register
	regIntEnable   = 1 // DLAB=0: interrupt enable; DLAB=1: divisor high byte
	regFIFOControl = 2
	regLineControl = 3
	regModemCtrl   = 4
	regLineStatus  = 5
	regScratch     = 7

	divisorLow  = regData
	divisorHigh = regIntEnable
)

const (
	lineControlDLAB = 0x80
	lineControl8N1  = 0x03
	fifoEnableClear = 0xc7 // enable, clear both FIFOs, 14-byte threshold
	modemDTRRTSOut2 = 0x0b
	statusTxEmpty   = 0x20

	// baud = 115200 / divisor
	baudDivisor = 3

	scratchTestValue = 0xae

	// maxTxSpins bounds the wait for the transmit register so a missing
	// or wedged UART cannot hang a fatal report.
	maxTxSpins = 1 << 16
)

var errNoUART = &kernel.Error{Module: "serial", Message: "no UART detected"}

// UART is a polled, transmit-only serial port.
type UART struct {
	machine hal.Machine
	base    uint16
}

// New returns a UART for the port at base. DriverInit must be called before
// writing to it.
func New(machine hal.Machine, base uint16) *UART {
	return &UART{machine: machine, base: base}
}

// DriverName implements driver.Driver.
func (u *UART) DriverName() string {
	return "uart16550"
}

// DriverVersion implements driver.Driver.
func (u *UART) DriverVersion() (uint16, uint16, uint16) {
	return 0, 1, 0
}

// DriverInit implements driver.Driver. It programs the port for 38400 baud,
// 8 data bits, no parity and one stop bit with interrupts disabled.
func (u *UART) DriverInit(w io.Writer) *kernel.Error {
	u.out(regScratch, scratchTestValue)
	if u.in(regScratch) != scratchTestValue {
		return errNoUART
	}

	u.out(regIntEnable, 0)
	u.out(regLineControl, lineControlDLAB)
	u.out(divisorLow, baudDivisor)
	u.out(divisorHigh, 0)
	u.out(regLineControl, lineControl8N1)
	u.out(regFIFOControl, fifoEnableClear)
	u.out(regModemCtrl, modemDTRRTSOut2)

	kfmt.Fprintf(w, "[serial] %s initialized at port 0x%x\n", u.DriverName(), u.base)
	return nil
}

// WriteByte implements io.ByteWriter.
func (u *UART) WriteByte(b byte) error {
	for spins := 0; spins < maxTxSpins; spins++ {
		if u.in(regLineStatus)&statusTxEmpty != 0 {
			break
		}
	}

	u.out(regData, b)
	return nil
}

// Write implements io.Writer. Line feeds are sent as CR LF.
func (u *UART) Write(data []byte) (int, error) {
	for _, b := range data {
		if b == '\n' {
			_ = u.WriteByte('\r')
		}
		_ = u.WriteByte(b)
	}

	return len(data), nil
}

func (u *UART) in(reg uint16) uint8 {
	return u.machine.PortReadByte(u.base + reg)
}

func (u *UART) out(reg uint16, val uint8) {
	u.machine.PortWriteByte(u.base+reg, val)
}
