package fatal

import (
	"bytes"
	"errors"
	"runtime"
	"strings"
	"testing"

	"irqos/kernel"
	"irqos/kernel/gate"
	"irqos/kernel/hal/haltest"
	"irqos/kernel/kfmt"
)

// expectHalt runs fn and reports an error unless fn stopped by halting m.
func expectHalt(t *testing.T, fn func()) {
	t.Helper()

	defer func() {
		if err := recover(); err != haltest.ErrHalted {
			t.Fatalf("expected the CPU to be halted; got panic value %v", err)
		}
	}()

	fn()
	t.Fatal("expected call to never return")
}

func sampleRecord() Record {
	return RecordFromRegisters(&gate.Registers{
		RIP:    0xffff_8000_0010_2030,
		CS:     0x8,
		RFlags: 0x246,
		RSP:    0xffff_8000_00ff_fff0,
		SS:     0x10,
	})
}

func TestFault(t *testing.T) {
	var (
		buf bytes.Buffer
		m   = haltest.NewMachine()
		r   = NewReporter(&buf, m)
	)

	expectHalt(t, func() { r.Fault("DIVISION EXCEPTION", "kernel/trap.handleDivideError", sampleRecord()) })

	exp := "\n-----------------------------------\n" +
		"*** DIVISION EXCEPTION ***\n" +
		"location:            kernel/trap.handleDivideError\n" +
		"instruction_pointer: 0xffff800000102030\n" +
		"code_segment:        0x0000000000000008\n" +
		"cpu_flags:           0x0000000000000246\n" +
		"stack_pointer:       0xffff800000fffff0\n" +
		"stack_segment:       0x0000000000000010\n" +
		"*** kernel panic: system halted ***" +
		"\n-----------------------------------\n"

	if got := buf.String(); got != exp {
		t.Fatalf("expected output:\n%q\ngot:\n%q", exp, got)
	}

	if got := m.Count(haltest.InterruptsDisabled, 0); got != 1 {
		t.Fatalf("expected interrupts to be disabled once; got %d", got)
	}

	if last := m.Events[len(m.Events)-1]; last.Kind != haltest.Halted {
		t.Fatalf("expected last event to be %s; got %s", haltest.Halted, last.Kind)
	}
}

func TestFaultPageFaultFields(t *testing.T) {
	specs := []struct {
		code   uint64
		reason string
	}{
		{0, "non-present page (read, kernel-mode)"},
		{FaultWrite, "non-present page (write, kernel-mode)"},
		{FaultPresent | FaultUser, "page protection violation (read, user-mode)"},
		{FaultPresent | FaultInstructionFetch, "page protection violation (instruction fetch, kernel-mode)"},
		{FaultReservedBit | FaultPresent, "page table has reserved bit set"},
	}

	for specIndex, spec := range specs {
		var (
			buf bytes.Buffer
			r   = NewReporter(&buf, haltest.NewMachine())
			rec = sampleRecord()
		)

		rec.SetPageFault(0xdeadbeef, spec.code)
		if !rec.IsPageFault() {
			t.Fatalf("[spec %d] expected record to be flagged as a page fault", specIndex)
		}

		expectHalt(t, func() { r.Fault("PAGE FAULT", "kernel/trap.handlePageFault", rec) })

		out := buf.String()
		for _, exp := range []string{
			"*** PAGE FAULT ***\n",
			"memory_address:      0x00000000deadbeef\n",
			"reason:              " + spec.reason + "\n",
		} {
			if !strings.Contains(out, exp) {
				t.Errorf("[spec %d] expected output to contain %q; got:\n%s", specIndex, exp, out)
			}
		}
	}
}

func TestFaultWithoutPageFaultOmitsAddress(t *testing.T) {
	var buf bytes.Buffer
	rec := sampleRecord()
	rec.DumpTo(&buf)

	if strings.Contains(buf.String(), "memory_address") {
		t.Fatalf("expected non page fault record to omit memory_address; got:\n%s", buf.String())
	}
}

func TestNestedFaultOnlyHalts(t *testing.T) {
	var (
		buf bytes.Buffer
		m   = haltest.NewMachine()
		r   = NewReporter(&buf, m)
	)

	expectHalt(t, func() { r.Fault("INVALID OPCODE", "first", sampleRecord()) })
	firstLen := buf.Len()

	expectHalt(t, func() { r.Fault("DOUBLE FAULT", "second", sampleRecord()) })
	if buf.Len() != firstLen {
		t.Fatalf("expected nested report to be suppressed; got extra output %q", buf.String()[firstLen:])
	}

	if got := m.Count(haltest.Halted, 0); got != 2 {
		t.Fatalf("expected two halt attempts; got %d", got)
	}
}

func TestRuntimePanic(t *testing.T) {
	var (
		buf bytes.Buffer
		r   = NewReporter(&buf, haltest.NewMachine())
	)

	expectHalt(t, func() {
		r.RuntimePanic(Location{File: "kernel/kmain/kmain.go", Line: 42}, "out of frames", sampleRecord())
	})

	out := buf.String()
	for _, exp := range []string{
		"*** KERNEL PANIC ***\n",
		"message:             out of frames\n",
		"location:            kernel/kmain/kmain.go:42\n",
		"instruction_pointer: 0xffff800000102030\n",
		"*** kernel panic: system halted ***",
	} {
		if !strings.Contains(out, exp) {
			t.Errorf("expected output to contain %q; got:\n%s", exp, out)
		}
	}
}

func TestPanic(t *testing.T) {
	defer func() {
		active = nil
		callerFn = runtime.Caller
	}()

	callerFn = func(_ int) (uintptr, string, int, bool) {
		return 0x1234, "kernel/kmain/kmain.go", 7, true
	}

	specs := []struct {
		input  interface{}
		expMsg string
	}{
		{&kernel.Error{Module: "test", Message: "panic test"}, "[test] panic test"},
		{errors.New("go error"), "go error"},
		{"string message", "string message"},
		{nil, "unknown cause"},
		{42, "unknown cause"},
	}

	for specIndex, spec := range specs {
		var (
			buf bytes.Buffer
			m   = haltest.NewMachine()
		)
		m.CodeSegment = 0x8
		m.StackSegment = 0x10
		Init(NewReporter(&buf, m))

		expectHalt(t, func() { Panic(spec.input) })

		out := buf.String()
		for _, exp := range []string{
			"message:             " + spec.expMsg + "\n",
			"location:            kernel/kmain/kmain.go:7\n",
			"instruction_pointer: 0x0000000000001234\n",
			"code_segment:        0x0000000000000008\n",
			"cpu_flags:           0x0000000000000202\n",
		} {
			if !strings.Contains(out, exp) {
				t.Errorf("[spec %d] expected output to contain %q; got:\n%s", specIndex, exp, out)
			}
		}
	}
}

func TestPanicWithoutReporter(t *testing.T) {
	origMachine := fallback.machine
	defer func() {
		active = nil
		fallback = Reporter{machine: origMachine}
		kfmt.SetOutputSink(nil)
	}()

	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)

	m := haltest.NewMachine()
	fallback = Reporter{machine: m}

	expectHalt(t, func() { Panic("early failure") })

	if !strings.Contains(buf.String(), "message:             early failure\n") {
		t.Fatalf("expected panic message to be written to the output sink; got:\n%s", buf.String())
	}
}
