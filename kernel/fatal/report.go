// Package fatal renders fatal conditions (CPU faults and runtime panics) to
// the operator-visible output and halts the CPU.
//
// Nothing in this package allocates, takes a lock or returns once a report
// has started: all data that ends up in a report must already be captured
// in a Record.
package fatal

import (
	"io"
	"runtime"
	"sync/atomic"
	"unsafe"

	"irqos/kernel"
	"irqos/kernel/hal"
	"irqos/kernel/kfmt"
)

var (
	// active is the reporter used by Panic. It is set by Init.
	active *Reporter

	// fallback is used by Panic before Init is called; its output goes
	// to the kfmt output sink.
	fallback = Reporter{machine: hal.Native{}}

	// callerFn is mocked by tests.
	callerFn = runtime.Caller

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}

	// panicMsgBuf holds the rendered message of a *kernel.Error panic.
	// Only one report can be in flight so it can be shared.
	panicMsgBuf [256]byte
)

// Location identifies the source position where a runtime panic was raised.
type Location struct {
	File string
	Line int
}

// Reporter writes fatal reports to an output sink and halts the machine.
type Reporter struct {
	out     io.Writer
	machine hal.Machine

	// reporting is set once a report starts. A fault raised while a
	// report is rendered skips straight to the halt loop.
	reporting uint32
}

// NewReporter returns a Reporter that writes to out and halts machine. A
// nil out sends the report to the kfmt output sink.
func NewReporter(out io.Writer, machine hal.Machine) *Reporter {
	return &Reporter{out: out, machine: machine}
}

// Init installs r as the reporter used by Panic.
func Init(r *Reporter) {
	active = r
}

// Fault reports a fatal CPU exception identified by tag (e.g. "PAGE FAULT")
// that was detected at where. Fault never returns.
func (r *Reporter) Fault(tag, where string, rec Record) {
	if w, ok := r.begin(); ok {
		kfmt.Fprintf(w, "*** %s ***\n", tag)
		kfmt.Fprintf(w, "location:            %s\n", where)
		rec.DumpTo(w)
		r.end(w)
	}

	r.halt()
}

// RuntimePanic reports a panic raised by Go code at loc with the already
// formatted message msg. RuntimePanic never returns.
func (r *Reporter) RuntimePanic(loc Location, msg string, rec Record) {
	if w, ok := r.begin(); ok {
		kfmt.Fprintf(w, "*** KERNEL PANIC ***\n")
		kfmt.Fprintf(w, "message:             %s\n", msg)
		kfmt.Fprintf(w, "location:            %s:%d\n", loc.File, loc.Line)
		rec.DumpTo(w)
		r.end(w)
	}

	r.halt()
}

// begin prints the report header and returns the writer for the rest of
// the report. It returns false if a report is already being rendered.
func (r *Reporter) begin() (io.Writer, bool) {
	if !atomic.CompareAndSwapUint32(&r.reporting, 0, 1) {
		return nil, false
	}

	w := r.out
	if w == nil {
		w = kfmt.GetOutputSink()
	}

	kfmt.Fprintf(w, "\n-----------------------------------\n")
	return w, true
}

func (r *Reporter) end(w io.Writer) {
	kfmt.Fprintf(w, "*** kernel panic: system halted ***")
	kfmt.Fprintf(w, "\n-----------------------------------\n")
}

// halt stops the CPU permanently.
func (r *Reporter) halt() {
	r.machine.DisableInterrupts()
	for {
		r.machine.Halt()
	}
}

// CaptureRecord builds a best-effort Record from the live CPU state. The
// instruction pointer is the return address of the caller and the stack
// pointer approximates the current stack top.
func CaptureRecord(machine hal.Machine) Record {
	var stackMarker byte
	pc, _, _, _ := callerFn(1)

	return Record{
		InstructionPointer: uint64(pc),
		CodeSegment:        machine.ReadCodeSegment(),
		CPUFlags:           machine.ReadFlags(),
		StackPointer:       uint64(uintptr(unsafe.Pointer(&stackMarker))),
		StackSegment:       machine.ReadStackSegment(),
	}
}

// Panic outputs the supplied error to the active reporter and halts the
// CPU. Calls to Panic never return. Panic also works as a redirection target
// for calls to panic() (resolved via runtime.gopanic)
//
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {
	var msg string

	switch t := e.(type) {
	case *kernel.Error:
		n, _ := kfmt.Format(panicMsgBuf[:], "[%s] %s", t.Module, t.Message)
		msg = unsafe.String(&panicMsgBuf[0], n)
	case string:
		msg = t
	case error:
		msg = t.Error()
	default:
		msg = errRuntimePanic.Message
	}

	var loc Location
	if _, file, line, ok := callerFn(1); ok {
		loc = Location{File: file, Line: line}
	}

	r := active
	if r == nil {
		r = &fallback
	}

	r.RuntimePanic(loc, msg, CaptureRecord(r.machine))
}

// panicString serves as a redirect target for runtime.throw
//
//go:redirect-from runtime.throw
func panicString(msg string) {
	Panic(msg)
}
