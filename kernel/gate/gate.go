// Package gate routes CPU exceptions, hardware interrupts and software
// interrupts to Go handlers.
//
// The low-level entry stubs that the descriptor-table code points each IDT
// gate at save the general purpose registers and the CPU-pushed return
// frame into a Registers value and then call Dispatch with the vector
// number. Everything after that point is plain Go code.
package gate

import (
	"io"

	"irqos/kernel/cpu"
	"irqos/kernel/kfmt"
)

// Registers contains a snapshot of all register values when an exception,
// interrupt or syscall occurs. Handlers may modify the snapshot; the entry
// stub restores it before returning with IRETQ.
type Registers struct {
	RAX uint64
	RBX uint64
	RCX uint64
	RDX uint64
	RSI uint64
	RDI uint64
	RBP uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64

	// Info contains the error code for exceptions that push one (double
	// fault, page fault). It is zero for every other vector.
	Info uint64

	// The return frame used by IRETQ
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// DumpTo outputs the register contents to w.
func (r *Registers) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "RAX = %16x RBX = %16x\n", r.RAX, r.RBX)
	kfmt.Fprintf(w, "RCX = %16x RDX = %16x\n", r.RCX, r.RDX)
	kfmt.Fprintf(w, "RSI = %16x RDI = %16x\n", r.RSI, r.RDI)
	kfmt.Fprintf(w, "RBP = %16x\n", r.RBP)
	kfmt.Fprintf(w, "R8  = %16x R9  = %16x\n", r.R8, r.R9)
	kfmt.Fprintf(w, "R10 = %16x R11 = %16x\n", r.R10, r.R11)
	kfmt.Fprintf(w, "R12 = %16x R13 = %16x\n", r.R12, r.R13)
	kfmt.Fprintf(w, "R14 = %16x R15 = %16x\n", r.R14, r.R15)
	kfmt.Fprintf(w, "\n")
	kfmt.Fprintf(w, "RIP = %16x CS  = %16x\n", r.RIP, r.CS)
	kfmt.Fprintf(w, "RSP = %16x SS  = %16x\n", r.RSP, r.SS)
	kfmt.Fprintf(w, "RFL = %16x\n", r.RFlags)
}

// InterruptNumber describes an x86 interrupt/exception/trap slot.
type InterruptNumber uint8

const (
	// DivideByZero occurs when dividing any number by 0 using the DIV or
	// IDIV instruction.
	DivideByZero = InterruptNumber(0)

	// Overflow occurs when the INTO instruction is executed while the
	// overflow flag is set.
	Overflow = InterruptNumber(4)

	// InvalidOpcode occurs when the CPU attempts to execute an invalid or
	// undefined instruction opcode.
	InvalidOpcode = InterruptNumber(6)

	// DoubleFault occurs when an exception is raised while the CPU is
	// trying to invoke the handler for a prior exception.
	DoubleFault = InterruptNumber(8)

	// GeneralProtectionFault occurs when a segment or privilege check
	// fails, e.g. on a non-canonical address.
	GeneralProtectionFault = InterruptNumber(13)

	// PageFaultException occurs when a page directory table (PDT) or one
	// of its entries is not present or when a privilege and/or RW
	// protection check fails.
	PageFaultException = InterruptNumber(14)

	// IRQBase is the vector that the master interrupt controller line 0 is
	// remapped to. Vectors below it are reserved for CPU exceptions.
	IRQBase = InterruptNumber(32)

	// TimerIRQ is raised by the programmable interval timer (IRQ0).
	TimerIRQ = IRQBase + 0

	// KeyboardIRQ is raised by the PS/2 keyboard controller (IRQ1).
	KeyboardIRQ = IRQBase + 1

	// Syscall is the software interrupt used to enter the kernel via
	// "int 0x80".
	Syscall = InterruptNumber(0x80)
)

// Handler services a trap. Handlers run with interrupts disabled.
type Handler func(*Registers)

// UnhandledHandler services any vector without a bound Handler.
type UnhandledHandler func(InterruptNumber, *Registers)

type gateEntry struct {
	handler   Handler
	istOffset uint8
}

// Table maps interrupt numbers to handlers.
type Table struct {
	entries   [256]gateEntry
	unhandled UnhandledHandler
}

// HandleInterrupt ensures that the provided handler will be invoked when a
// particular interrupt number occurs. The value of the istOffset argument
// specifies the offset in the interrupt stack table (if 0 then IST is not
// used).
func (t *Table) HandleInterrupt(intNumber InterruptNumber, istOffset uint8, handler Handler) {
	t.entries[intNumber] = gateEntry{handler: handler, istOffset: istOffset}
}

// Installed returns whether a handler is bound to intNumber together with
// the interrupt stack table offset requested for it.
func (t *Table) Installed(intNumber InterruptNumber) (istOffset uint8, ok bool) {
	entry := &t.entries[intNumber]
	return entry.istOffset, entry.handler != nil
}

// HandleUnhandled registers handler as the target for every vector that
// has no handler of its own.
func (t *Table) HandleUnhandled(handler UnhandledHandler) {
	t.unhandled = handler
}

// Dispatch invokes the handler bound to intNumber, or the unhandled vector
// handler if none is bound. It returns false if neither exists.
func (t *Table) Dispatch(intNumber InterruptNumber, regs *Registers) bool {
	if handler := t.entries[intNumber].handler; handler != nil {
		handler(regs)
		return true
	}

	if t.unhandled != nil {
		t.unhandled(intNumber, regs)
		return true
	}

	return false
}

var (
	// idt holds the handlers reachable from the IDT entry stubs.
	idt Table

	// haltFn is mocked by tests.
	haltFn = cpu.Halt
)

// HandleInterrupt binds handler to intNumber in the table used by the IDT
// entry stubs.
func HandleInterrupt(intNumber InterruptNumber, istOffset uint8, handler Handler) {
	idt.HandleInterrupt(intNumber, istOffset, handler)
}

// IDT returns the table used by the IDT entry stubs.
func IDT() *Table {
	return &idt
}

// Dispatch is called by the IDT entry stubs to route an incoming interrupt
// to the installed handler. A CPU exception that reaches no handler halts
// the CPU as returning would re-execute the faulting instruction. Other
// unhandled vectors are reported and ignored.
func Dispatch(intNumber InterruptNumber, regs *Registers) {
	if idt.Dispatch(intNumber, regs) {
		return
	}

	kfmt.Printf("[gate] no handler installed for vector %d\n", uint8(intNumber))
	if intNumber < IRQBase {
		kfmt.Printf("[gate] unhandled exception at RIP 0x%16x; system halted\n", regs.RIP)
		for {
			haltFn()
		}
	}
}
