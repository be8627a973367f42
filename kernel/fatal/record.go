package fatal

import (
	"io"

	"irqos/kernel/gate"
	"irqos/kernel/kfmt"
)

// Page fault code bits pushed by the CPU.
const (
	FaultPresent          = uint64(1 << 0)
	FaultWrite            = uint64(1 << 1)
	FaultUser             = uint64(1 << 2)
	FaultReservedBit      = uint64(1 << 3)
	FaultInstructionFetch = uint64(1 << 4)
)

// Record is a snapshot of the CPU state captured when a fatal condition is
// detected. It only contains plain scalars so it can be rendered without
// touching memory that may be the cause of the fault.
type Record struct {
	InstructionPointer uint64
	CodeSegment        uint64
	CPUFlags           uint64
	StackPointer       uint64
	StackSegment       uint64

	// Populated only for page faults.
	MemoryAddress uint64
	FaultCode     uint64

	pageFault bool
}

// RecordFromRegisters captures the return frame pushed by the CPU when the
// trap described by regs occurred.
func RecordFromRegisters(regs *gate.Registers) Record {
	return Record{
		InstructionPointer: regs.RIP,
		CodeSegment:        regs.CS,
		CPUFlags:           regs.RFlags,
		StackPointer:       regs.RSP,
		StackSegment:       regs.SS,
	}
}

// SetPageFault populates the page fault specific fields.
func (r *Record) SetPageFault(address, code uint64) {
	r.MemoryAddress = address
	r.FaultCode = code
	r.pageFault = true
}

// IsPageFault returns true if SetPageFault was called on the record.
func (r *Record) IsPageFault() bool {
	return r.pageFault
}

// DumpTo renders the populated record fields to w as label: value pairs.
func (r *Record) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "instruction_pointer: 0x%16x\n", r.InstructionPointer)
	kfmt.Fprintf(w, "code_segment:        0x%16x\n", r.CodeSegment)
	kfmt.Fprintf(w, "cpu_flags:           0x%16x\n", r.CPUFlags)
	kfmt.Fprintf(w, "stack_pointer:       0x%16x\n", r.StackPointer)
	kfmt.Fprintf(w, "stack_segment:       0x%16x\n", r.StackSegment)

	if !r.pageFault {
		return
	}

	kfmt.Fprintf(w, "memory_address:      0x%16x\n", r.MemoryAddress)
	kfmt.Fprintf(w, "fault_code:          0x%16x\n", r.FaultCode)
	kfmt.Fprintf(w, "reason:              ")
	describeFaultCode(w, r.FaultCode)
	kfmt.Fprintf(w, "\n")
}

// describeFaultCode writes a human readable version of a page fault code.
func describeFaultCode(w io.Writer, code uint64) {
	switch {
	case code&FaultReservedBit != 0:
		kfmt.Fprintf(w, "page table has reserved bit set")
		return
	case code&FaultPresent != 0:
		kfmt.Fprintf(w, "page protection violation")
	default:
		kfmt.Fprintf(w, "non-present page")
	}

	switch {
	case code&FaultInstructionFetch != 0:
		kfmt.Fprintf(w, " (instruction fetch")
	case code&FaultWrite != 0:
		kfmt.Fprintf(w, " (write")
	default:
		kfmt.Fprintf(w, " (read")
	}

	if code&FaultUser != 0 {
		kfmt.Fprintf(w, ", user-mode)")
	} else {
		kfmt.Fprintf(w, ", kernel-mode)")
	}
}
