// Package sim boots the trap handling core against simulated hardware so
// that traps can be fired and observed from a regular process.
package sim

import (
	hclog "github.com/hashicorp/go-hclog"

	"irqos/kernel/gate"
	"irqos/kernel/hal/haltest"
	"irqos/kernel/irq"
)

// NewMachine returns a simulated CPU that traces every hardware operation
// to logger.
func NewMachine(logger hclog.Logger) *haltest.Machine {
	m := haltest.NewMachine()
	m.OnEvent = func(ev haltest.Event) {
		switch ev.Kind {
		case haltest.PortRead, haltest.PortWrite:
			logger.Trace("port io", "op", ev.Kind.String(), "port", hclog.Hex(int(ev.Port)), "value", hclog.Hex(int(ev.Value)))
		case haltest.Halted:
			logger.Debug("cpu halted")
		default:
			logger.Trace("cpu event", "op", ev.Kind.String())
		}
	}
	return m
}

// Controller wraps the PIC driver and counts acknowledgments per vector.
type Controller struct {
	*irq.PIC

	logger hclog.Logger
	eois   map[gate.InterruptNumber]int
}

// NewController returns a Controller for a PIC pair remapped to the
// standard kernel vectors.
func NewController(m *haltest.Machine, logger hclog.Logger) *Controller {
	return &Controller{
		PIC:    irq.NewPIC(m, gate.IRQBase, gate.IRQBase+8),
		logger: logger,
		eois:   make(map[gate.InterruptNumber]int),
	}
}

// EndOfInterrupt implements trap.InterruptController.
func (c *Controller) EndOfInterrupt(vector gate.InterruptNumber) {
	c.eois[vector]++
	c.logger.Debug("end of interrupt", "vector", int(vector))
	c.PIC.EndOfInterrupt(vector)
}

// EOIs returns the number of acknowledgments sent for vector.
func (c *Controller) EOIs(vector gate.InterruptNumber) int {
	return c.eois[vector]
}
