// Package trap binds the CPU exception, hardware interrupt and syscall
// vectors to their handlers.
//
// Handlers run with interrupts disabled and follow one of two contracts.
// Fault handlers capture the trapped CPU state into a fatal.Record and hand
// it to the fatal reporter which halts the CPU; they never return. Hardware
// interrupt handlers drain any per-interrupt device state, acknowledge the
// interrupt exactly once and return. The syscall handler is never
// acknowledged through the interrupt controller.
//
// No handler allocates or takes a lock other than the syscall table lock.
package trap

import (
	"irqos/kernel/fatal"
	"irqos/kernel/gate"
	"irqos/kernel/hal"
	"irqos/kernel/kfmt"
)

// KeyboardDataPort is the PS/2 controller port that holds the scancode of
// the last key event. It must be read for every keyboard interrupt or the
// controller stops raising new ones.
const KeyboardDataPort = 0x60

// VectorTable installs handlers for interrupt vectors. A non-zero
// istOffset requests that the handler runs on that interrupt stack table
// entry. HandleUnhandled sets the handler for every vector left unbound.
// *gate.Table satisfies this interface.
type VectorTable interface {
	HandleInterrupt(intNumber gate.InterruptNumber, istOffset uint8, handler gate.Handler)
	HandleUnhandled(handler gate.UnhandledHandler)
}

// InterruptController acknowledges hardware interrupts. *irq.PIC satisfies
// this interface.
type InterruptController interface {
	EndOfInterrupt(vector gate.InterruptNumber)
}

// FaultReporter renders a fatal fault and halts the CPU. Fault should never
// return; if it does, the fault handler halts the CPU itself.
// *fatal.Reporter satisfies this interface.
type FaultReporter interface {
	Fault(tag, where string, rec fatal.Record)
}

// SyscallDispatcher services the syscall trap. *syscall.Global satisfies
// this interface.
type SyscallDispatcher interface {
	Dispatch(regs *gate.Registers)
}

// Config bundles the collaborators used by the installed handlers.
type Config struct {
	Machine    hal.Machine
	Controller InterruptController
	Syscalls   SyscallDispatcher
	Reporter   FaultReporter

	// DoubleFaultIST is the interrupt stack table entry reserved for the
	// double fault handler.
	DoubleFaultIST uint8

	// OnTick, if set, is called for every timer interrupt before it is
	// acknowledged.
	OnTick func()

	// OnScancode, if set, receives every scancode read from the keyboard
	// controller before the interrupt is acknowledged.
	OnScancode func(scancode uint8)
}

// handlers holds the collaborators captured by the installed closures.
type handlers struct {
	cfg Config
}

// Install binds the handlers for every vector serviced by the kernel. Any
// other CPU exception is reported as fatal and any other hardware
// interrupt is acknowledged and dropped.
func Install(vt VectorTable, cfg Config) {
	h := &handlers{cfg: cfg}

	vt.HandleInterrupt(gate.DoubleFault, cfg.DoubleFaultIST, h.doubleFault)
	vt.HandleInterrupt(gate.PageFaultException, 0, h.pageFault)
	vt.HandleInterrupt(gate.DivideByZero, 0, h.divideError)
	vt.HandleInterrupt(gate.InvalidOpcode, 0, h.invalidOpcode)
	vt.HandleInterrupt(gate.Overflow, 0, h.overflow)
	vt.HandleInterrupt(gate.TimerIRQ, 0, h.timer)
	vt.HandleInterrupt(gate.KeyboardIRQ, 0, h.keyboard)
	vt.HandleInterrupt(gate.Syscall, 0, h.syscall)
	vt.HandleUnhandled(h.unhandled)
}

// fault hands rec to the reporter and halts the CPU.
func (h *handlers) fault(tag, where string, rec fatal.Record) {
	h.cfg.Reporter.Fault(tag, where, rec)

	h.cfg.Machine.DisableInterrupts()
	for {
		h.cfg.Machine.Halt()
	}
}

func (h *handlers) doubleFault(regs *gate.Registers) {
	h.fault("DOUBLE FAULT", "double fault handler", fatal.RecordFromRegisters(regs))
}

func (h *handlers) pageFault(regs *gate.Registers) {
	// CR2 is overwritten by any nested page fault so it is read before
	// anything else touches memory.
	faultAddress := h.cfg.Machine.ReadFaultAddress()

	rec := fatal.RecordFromRegisters(regs)
	rec.SetPageFault(faultAddress, regs.Info)
	h.fault("PAGE FAULT", "page fault handler", rec)
}

func (h *handlers) divideError(regs *gate.Registers) {
	h.fault("DIVISION EXCEPTION", "divide error handler", fatal.RecordFromRegisters(regs))
}

func (h *handlers) invalidOpcode(regs *gate.Registers) {
	h.fault("INVALID OPCODE", "invalid opcode handler", fatal.RecordFromRegisters(regs))
}

func (h *handlers) overflow(regs *gate.Registers) {
	h.fault("ARITH OVERFLOW EXCEPTION", "overflow handler", fatal.RecordFromRegisters(regs))
}

func (h *handlers) timer(_ *gate.Registers) {
	if h.cfg.OnTick != nil {
		h.cfg.OnTick()
	}
	h.cfg.Controller.EndOfInterrupt(gate.TimerIRQ)
}

func (h *handlers) keyboard(_ *gate.Registers) {
	scancode := h.cfg.Machine.PortReadByte(KeyboardDataPort)
	if h.cfg.OnScancode != nil {
		h.cfg.OnScancode(scancode)
	}
	h.cfg.Controller.EndOfInterrupt(gate.KeyboardIRQ)
}

func (h *handlers) syscall(regs *gate.Registers) {
	h.cfg.Syscalls.Dispatch(regs)
}

// unhandled services vectors without a dedicated handler. Exceptions are
// fatal since returning would retry the faulting instruction. Interrupts
// are acknowledged so the controller keeps delivering that line.
func (h *handlers) unhandled(vector gate.InterruptNumber, regs *gate.Registers) {
	if vector < gate.IRQBase {
		kfmt.Printf("[trap] unhandled exception vector %d\n", uint8(vector))
		h.fault("UNHANDLED EXCEPTION", "unhandled exception handler", fatal.RecordFromRegisters(regs))
		return
	}

	h.cfg.Controller.EndOfInterrupt(vector)
}
