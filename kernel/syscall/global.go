package syscall

import (
	"irqos/kernel/cpu"
	"irqos/kernel/gate"
	"irqos/kernel/hal"
	"irqos/kernel/sync"
)

// Global is the live syscall table shared between kernel code and the
// syscall trap handler.
//
// Lock order: callers running with interrupts enabled save RFLAGS, disable
// interrupts and then acquire the lock. Dispatch runs inside a trap with
// interrupts already disabled and only takes the lock. The lock is released
// before any handler is invoked.
type Global struct {
	lock    sync.Spinlock
	table   Table
	machine hal.Machine
}

// NewGlobal returns a Global holding NewTable(). Interrupt masking is
// performed through machine.
func NewGlobal(machine hal.Machine) *Global {
	return &Global{
		table:   NewTable(),
		machine: machine,
	}
}

// SetTable replaces the live table with a copy of t.
func (g *Global) SetTable(t Table) {
	flags := g.lockIRQ()
	g.table = t
	g.unlockIRQ(flags)
}

// Table returns a copy of the live table. Changes to the copy have no
// effect until it is passed to SetTable.
func (g *Global) Table() Table {
	flags := g.lockIRQ()
	t := g.table
	g.unlockIRQ(flags)
	return t
}

// Register installs handler for number on the live table.
func (g *Global) Register(number uint8, handler Handler) {
	flags := g.lockIRQ()
	g.table.Register(number, handler)
	g.unlockIRQ(flags)
}

// RegisterFallback replaces the fallback handler of the live table.
func (g *Global) RegisterFallback(handler Handler) {
	flags := g.lockIRQ()
	g.table.RegisterFallback(handler)
	g.unlockIRQ(flags)
}

// Deregister resets number on the live table to track the fallback.
func (g *Global) Deregister(number uint8) {
	flags := g.lockIRQ()
	g.table.Deregister(number)
	g.unlockIRQ(flags)
}

// Get returns the live handler for number.
func (g *Global) Get(number uint8) Handler {
	flags := g.lockIRQ()
	h := g.table.Get(number)
	g.unlockIRQ(flags)
	return h
}

// Fallback returns the live fallback handler.
func (g *Global) Fallback() Handler {
	flags := g.lockIRQ()
	h := g.table.Fallback()
	g.unlockIRQ(flags)
	return h
}

// Dispatch services a syscall trap. The syscall number is read from RAX
// and the arguments from RBX, RCX, RDX, RSI and RDI. The handler result is
// written back to RAX so the caller sees it once the trap returns.
func (g *Global) Dispatch(regs *gate.Registers) {
	g.lock.Acquire()
	handler := g.table.Lookup(regs.RAX)
	g.lock.Release()

	regs.RAX = handler(Args{
		A:    regs.RBX,
		B:    regs.RCX,
		C:    regs.RDX,
		Src:  regs.RSI,
		Dest: regs.RDI,
	})
}

func (g *Global) lockIRQ() uint64 {
	flags := g.machine.ReadFlags()
	g.machine.DisableInterrupts()
	g.lock.Acquire()
	return flags
}

func (g *Global) unlockIRQ(flags uint64) {
	g.lock.Release()
	if cpu.InterruptsEnabled(flags) {
		g.machine.EnableInterrupts()
	}
}
