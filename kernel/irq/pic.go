// Package irq drives the pair of cascaded 8259 programmable interrupt
// controllers that deliver hardware interrupts.
package irq

import (
	"irqos/kernel/gate"
	"irqos/kernel/hal"
)

const (
	masterCommandPort = 0x20
	masterDataPort    = 0x21
	slaveCommandPort  = 0xa0
	slaveDataPort     = 0xa1

	// writes to the POST diagnostics port give the controllers time to
	// settle between initialization words.
	ioWaitPort = 0x80

	cmdEndOfInterrupt = 0x20
	icw1Init          = 0x11 // initialization required, expect ICW4
	icw3MasterSlaveAt = 0x04 // slave attached to master line 2
	icw3SlaveIdentity = 0x02
	icw4Mode8086      = 0x01

	linesPerController = 8
)

// PIC manages the master/slave 8259 pair.
type PIC struct {
	machine      hal.Machine
	masterOffset gate.InterruptNumber
	slaveOffset  gate.InterruptNumber
}

// NewPIC returns a PIC that delivers master lines starting at masterOffset
// and slave lines starting at slaveOffset. Init must be called before
// interrupts are enabled.
func NewPIC(machine hal.Machine, masterOffset, slaveOffset gate.InterruptNumber) *PIC {
	return &PIC{
		machine:      machine,
		masterOffset: masterOffset,
		slaveOffset:  slaveOffset,
	}
}

// Init remaps the controllers so their lines do not overlap the CPU
// exception vectors. The interrupt masks are preserved.
func (p *PIC) Init() {
	masterMask := p.machine.PortReadByte(masterDataPort)
	slaveMask := p.machine.PortReadByte(slaveDataPort)

	p.write(masterCommandPort, icw1Init)
	p.write(slaveCommandPort, icw1Init)
	p.write(masterDataPort, uint8(p.masterOffset))
	p.write(slaveDataPort, uint8(p.slaveOffset))
	p.write(masterDataPort, icw3MasterSlaveAt)
	p.write(slaveDataPort, icw3SlaveIdentity)
	p.write(masterDataPort, icw4Mode8086)
	p.write(slaveDataPort, icw4Mode8086)

	p.machine.PortWriteByte(masterDataPort, masterMask)
	p.machine.PortWriteByte(slaveDataPort, slaveMask)
}

// Handles returns true if vector is delivered by one of the controllers.
func (p *PIC) Handles(vector gate.InterruptNumber) bool {
	return p.isMaster(vector) || p.isSlave(vector)
}

// EndOfInterrupt acknowledges the interrupt delivered at vector so that the
// controllers can raise further interrupts on that line. Lines routed via
// the slave controller must be acknowledged on both controllers. Vectors
// that do not belong to a controller line are ignored.
func (p *PIC) EndOfInterrupt(vector gate.InterruptNumber) {
	switch {
	case p.isSlave(vector):
		p.machine.PortWriteByte(slaveCommandPort, cmdEndOfInterrupt)
		p.machine.PortWriteByte(masterCommandPort, cmdEndOfInterrupt)
	case p.isMaster(vector):
		p.machine.PortWriteByte(masterCommandPort, cmdEndOfInterrupt)
	}
}

func (p *PIC) isMaster(vector gate.InterruptNumber) bool {
	return vector >= p.masterOffset && vector < p.masterOffset+linesPerController
}

func (p *PIC) isSlave(vector gate.InterruptNumber) bool {
	return vector >= p.slaveOffset && vector < p.slaveOffset+linesPerController
}

func (p *PIC) write(port uint16, val uint8) {
	p.machine.PortWriteByte(port, val)
	p.machine.PortWriteByte(ioWaitPort, 0)
}
