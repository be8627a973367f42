// Package hal defines the small set of CPU capabilities that the trap
// handling code depends on. Handlers and the fatal reporter only ever talk
// to a Machine which allows them to be exercised on a host by supplying a
// substitute implementation.
package hal

import "irqos/kernel/cpu"

// Machine exposes the CPU state and I/O operations needed while servicing a
// trap. Implementations must not allocate, block or acquire locks as their
// methods are invoked with interrupts disabled and possibly while the CPU
// is in a faulted state.
type Machine interface {
	// ReadFaultAddress returns the linear address that triggered the most
	// recent page fault (CR2 on amd64).
	ReadFaultAddress() uint64

	// ReadFlags returns the current value of the flags register.
	ReadFlags() uint64

	// ReadCodeSegment returns the active code segment selector.
	ReadCodeSegment() uint64

	// ReadStackSegment returns the active stack segment selector.
	ReadStackSegment() uint64

	// PortReadByte reads a byte from an I/O port.
	PortReadByte(port uint16) uint8

	// PortWriteByte writes a byte to an I/O port.
	PortWriteByte(port uint16, val uint8)

	// DisableInterrupts masks maskable interrupts.
	DisableInterrupts()

	// EnableInterrupts unmasks maskable interrupts.
	EnableInterrupts()

	// Halt disables interrupts and stops the CPU. Only an NMI can wake
	// it, so callers that need a permanent halt loop on Halt.
	Halt()
}

// Native is a Machine backed by the real amd64 instructions.
type Native struct{}

// ReadFaultAddress implements Machine.
func (Native) ReadFaultAddress() uint64 { return cpu.ReadCR2() }

// ReadFlags implements Machine.
func (Native) ReadFlags() uint64 { return cpu.ReadFlags() }

// ReadCodeSegment implements Machine.
func (Native) ReadCodeSegment() uint64 { return cpu.ReadCS() }

// ReadStackSegment implements Machine.
func (Native) ReadStackSegment() uint64 { return cpu.ReadSS() }

// PortReadByte implements Machine.
func (Native) PortReadByte(port uint16) uint8 { return cpu.PortReadByte(port) }

// PortWriteByte implements Machine.
func (Native) PortWriteByte(port uint16, val uint8) { cpu.PortWriteByte(port, val) }

// DisableInterrupts implements Machine.
func (Native) DisableInterrupts() { cpu.DisableInterrupts() }

// EnableInterrupts implements Machine.
func (Native) EnableInterrupts() { cpu.EnableInterrupts() }

// Halt implements Machine.
func (Native) Halt() { cpu.Halt() }
