// Package haltest provides a hal.Machine implementation for exercising
// trap handling code on a host.
package haltest

import (
	"irqos/kernel"
	"irqos/kernel/cpu"
)

// ErrHalted is the value Machine.Halt panics with. Code paths that never
// return on real hardware can be observed by recovering it.
var ErrHalted = &kernel.Error{Module: "haltest", Message: "cpu halted"}

// EventKind identifies a Machine operation.
type EventKind uint8

// The list of operations recorded by Machine.
const (
	PortRead EventKind = iota
	PortWrite
	FaultAddressRead
	InterruptsDisabled
	InterruptsEnabled
	Halted
)

var eventNames = [...]string{
	PortRead:           "port-read",
	PortWrite:          "port-write",
	FaultAddressRead:   "fault-address-read",
	InterruptsDisabled: "interrupts-disabled",
	InterruptsEnabled:  "interrupts-enabled",
	Halted:             "halted",
}

// String implements fmt.Stringer.
func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

// Event describes a single Machine operation. Port and Value are only set
// for port I/O.
type Event struct {
	Kind  EventKind
	Port  uint16
	Value uint8
}

// Machine is a hal.Machine whose CPU state is set by the caller. All
// operations are appended to Events in the order they were performed.
type Machine struct {
	FaultAddress uint64
	Flags        uint64
	CodeSegment  uint64
	StackSegment uint64

	// Input holds the bytes returned by successive PortReadByte calls for
	// each port. Reads from an empty queue return zero.
	Input map[uint16][]uint8

	// Events records every operation performed on the machine.
	Events []Event

	// OnEvent, if set, is invoked for every recorded event.
	OnEvent func(Event)

	// ReturnOnHalt makes Halt return instead of panicking with ErrHalted.
	ReturnOnHalt bool
}

// NewMachine returns a Machine running in ring 0 with interrupts enabled.
func NewMachine() *Machine {
	return &Machine{
		Flags:        0x2 | cpu.FlagInterruptEnable,
		CodeSegment:  0x8,
		StackSegment: 0x10,
		Input:        make(map[uint16][]uint8),
	}
}

// QueueInput appends data to the bytes returned by reads from port.
func (m *Machine) QueueInput(port uint16, data ...uint8) {
	if m.Input == nil {
		m.Input = make(map[uint16][]uint8)
	}
	m.Input[port] = append(m.Input[port], data...)
}

// ReadFaultAddress implements hal.Machine.
func (m *Machine) ReadFaultAddress() uint64 {
	m.record(Event{Kind: FaultAddressRead})
	return m.FaultAddress
}

// ReadFlags implements hal.Machine.
func (m *Machine) ReadFlags() uint64 { return m.Flags }

// ReadCodeSegment implements hal.Machine.
func (m *Machine) ReadCodeSegment() uint64 { return m.CodeSegment }

// ReadStackSegment implements hal.Machine.
func (m *Machine) ReadStackSegment() uint64 { return m.StackSegment }

// PortReadByte implements hal.Machine.
func (m *Machine) PortReadByte(port uint16) uint8 {
	var val uint8
	if queue := m.Input[port]; len(queue) != 0 {
		val, m.Input[port] = queue[0], queue[1:]
	}

	m.record(Event{Kind: PortRead, Port: port, Value: val})
	return val
}

// PortWriteByte implements hal.Machine.
func (m *Machine) PortWriteByte(port uint16, val uint8) {
	m.record(Event{Kind: PortWrite, Port: port, Value: val})
}

// DisableInterrupts implements hal.Machine.
func (m *Machine) DisableInterrupts() {
	m.Flags &^= cpu.FlagInterruptEnable
	m.record(Event{Kind: InterruptsDisabled})
}

// EnableInterrupts implements hal.Machine.
func (m *Machine) EnableInterrupts() {
	m.Flags |= cpu.FlagInterruptEnable
	m.record(Event{Kind: InterruptsEnabled})
}

// Halt implements hal.Machine. It clears IF like the real instruction
// sequence and, unless ReturnOnHalt is set, panics with ErrHalted.
func (m *Machine) Halt() {
	m.Flags &^= cpu.FlagInterruptEnable
	m.record(Event{Kind: Halted})
	if !m.ReturnOnHalt {
		panic(ErrHalted)
	}
}

// Count returns the number of recorded events matching kind and port. The
// port is ignored for events other than port I/O.
func (m *Machine) Count(kind EventKind, port uint16) int {
	var count int
	for _, ev := range m.Events {
		if ev.Kind != kind {
			continue
		}
		if (kind == PortRead || kind == PortWrite) && ev.Port != port {
			continue
		}
		count++
	}
	return count
}

// Reset clears the recorded events.
func (m *Machine) Reset() {
	m.Events = m.Events[:0]
}

func (m *Machine) record(ev Event) {
	m.Events = append(m.Events, ev)
	if m.OnEvent != nil {
		m.OnEvent(ev)
	}
}
