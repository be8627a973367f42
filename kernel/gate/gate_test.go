package gate

import (
	"bytes"
	"strings"
	"testing"

	"irqos/kernel/kfmt"
)

func TestRegistersDumpTo(t *testing.T) {
	regs := Registers{
		RAX:    1,
		RBX:    2,
		RCX:    3,
		RDX:    4,
		RSI:    5,
		RDI:    6,
		RBP:    7,
		R8:     8,
		R9:     9,
		R10:    10,
		R11:    11,
		R12:    12,
		R13:    13,
		R14:    14,
		R15:    15,
		RIP:    16,
		CS:     17,
		RFlags: 18,
		RSP:    19,
		SS:     20,
	}

	var buf bytes.Buffer
	regs.DumpTo(&buf)

	exp := "RAX = 0000000000000001 RBX = 0000000000000002\nRCX = 0000000000000003 RDX = 0000000000000004\nRSI = 0000000000000005 RDI = 0000000000000006\nRBP = 0000000000000007\nR8  = 0000000000000008 R9  = 0000000000000009\nR10 = 000000000000000a R11 = 000000000000000b\nR12 = 000000000000000c R13 = 000000000000000d\nR14 = 000000000000000e R15 = 000000000000000f\n\nRIP = 0000000000000010 CS  = 0000000000000011\nRSP = 0000000000000013 SS  = 0000000000000014\nRFL = 0000000000000012\n"

	if got := buf.String(); got != exp {
		t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
	}
}

func TestTableDispatch(t *testing.T) {
	var (
		table   Table
		regs    Registers
		calls   int
		handler = func(r *Registers) {
			calls++
			r.RAX = 0xbadf00d
		}
	)

	if table.Dispatch(PageFaultException, &regs) {
		t.Fatal("expected Dispatch to report a missing handler")
	}

	table.HandleInterrupt(DoubleFault, 1, handler)

	if ist, ok := table.Installed(DoubleFault); !ok || ist != 1 {
		t.Fatalf("expected handler with IST offset 1 to be installed; got ok=%t ist=%d", ok, ist)
	}

	if _, ok := table.Installed(Syscall); ok {
		t.Fatal("expected no handler to be installed for the syscall vector")
	}

	if !table.Dispatch(DoubleFault, &regs) {
		t.Fatal("expected Dispatch to invoke the installed handler")
	}

	if calls != 1 {
		t.Fatalf("expected handler to be called once; got %d", calls)
	}

	if regs.RAX != 0xbadf00d {
		t.Fatal("expected handler modifications to be visible in the register snapshot")
	}
}

func TestDefaultTable(t *testing.T) {
	defer func() {
		idt = Table{}
	}()

	var called bool
	HandleInterrupt(TimerIRQ, 0, func(_ *Registers) { called = true })

	Dispatch(TimerIRQ, &Registers{})
	if !called {
		t.Fatal("expected Dispatch to invoke the handler installed via HandleInterrupt")
	}

	if _, ok := IDT().Installed(TimerIRQ); !ok {
		t.Fatal("expected IDT() to expose the handler installed via HandleInterrupt")
	}

	// unhandled vectors must not panic
	Dispatch(KeyboardIRQ, &Registers{})
}

func TestTableUnhandledHandler(t *testing.T) {
	var (
		table   Table
		bound   int
		vectors []InterruptNumber
		gotRegs *Registers
	)
	regs := &Registers{RIP: 0x1000}

	table.HandleInterrupt(TimerIRQ, 0, func(_ *Registers) { bound++ })
	table.HandleUnhandled(func(num InterruptNumber, r *Registers) {
		vectors = append(vectors, num)
		gotRegs = r
	})

	for _, num := range []InterruptNumber{TimerIRQ, 13, KeyboardIRQ + 5} {
		if !table.Dispatch(num, regs) {
			t.Fatalf("expected vector %d to be serviced", num)
		}
	}

	if bound != 1 {
		t.Fatalf("expected bound handler to be called once; got %d", bound)
	}
	if len(vectors) != 2 || vectors[0] != 13 || vectors[1] != KeyboardIRQ+5 {
		t.Fatalf("expected unhandled handler to see vectors [13 38]; got %v", vectors)
	}
	if gotRegs != regs {
		t.Fatal("expected unhandled handler to receive the trap registers")
	}
}

func TestDispatchUnhandledExceptionHalts(t *testing.T) {
	type halted struct{}

	defer func(origHalt func()) {
		haltFn = origHalt
		idt = Table{}
		kfmt.SetOutputSink(nil)
	}(haltFn)

	var (
		buf   bytes.Buffer
		halts int
	)
	kfmt.SetOutputSink(&buf)
	haltFn = func() {
		halts++
		panic(halted{})
	}
	idt = Table{}

	func() {
		defer func() {
			if err := recover(); err != (halted{}) {
				t.Fatalf("expected the CPU to be halted; got %v", err)
			}
		}()

		Dispatch(InterruptNumber(13), &Registers{RIP: 0x1000})
		t.Fatal("expected Dispatch to never return for an unhandled exception")
	}()

	if halts != 1 {
		t.Fatalf("expected a single halt; got %d", halts)
	}
	if exp := "unhandled exception at RIP 0x0000000000001000"; !strings.Contains(buf.String(), exp) {
		t.Fatalf("expected output to contain %q; got %q", exp, buf.String())
	}

	// Hardware interrupt vectors without a handler return.
	Dispatch(TimerIRQ, &Registers{})
	if halts != 1 {
		t.Fatal("expected an unhandled interrupt not to halt the CPU")
	}
}
