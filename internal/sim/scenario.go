package sim

import (
	"sort"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"irqos/kernel"
	"irqos/kernel/fatal"
	"irqos/kernel/gate"
	"irqos/kernel/hal/haltest"
	"irqos/kernel/kfmt"
	"irqos/kernel/syscall"
	"irqos/kernel/trap"
)

var (
	ErrUnknownScenario = errors.New("unknown scenario")
	ErrUnexpectedPanic = errors.New("trap handler panicked")
)

// doubleFaultIST mirrors the IST entry used by the kernel.
const doubleFaultIST = 1

// demoSyscall is the syscall number registered by the simulated kernel. It
// echoes the sum of its arguments.
const demoSyscall = 1

// Scenario describes a single trap to fire at the simulated core.
type Scenario struct {
	Name string

	// Syscall number and arguments for the syscall scenario.
	Syscall uint64
	Args    syscall.Args

	// FaultAddress and FaultCode are used by the pagefault scenario.
	FaultAddress uint64
	FaultCode    uint64

	// Scancodes are queued on the keyboard controller; one is consumed per
	// keyboard interrupt.
	Scancodes []uint8
}

// Result captures the observable effects of running a Scenario.
type Result struct {
	Scenario string

	// Halted is true if the run ended in the fatal halt loop.
	Halted bool

	// Console holds the operator-visible output.
	Console []string

	// Registers is the trap frame after the handler returned.
	Registers gate.Registers

	// SyscallResult holds RAX after a syscall trap.
	SyscallResult uint64

	// EOIs counts interrupt acknowledgments per vector.
	EOIs map[gate.InterruptNumber]int

	// Scancodes lists the bytes drained from the keyboard controller.
	Scancodes []uint8

	// Record is the state handed to the fatal reporter, if any.
	Record *fatal.Record

	Events []haltest.Event
}

type scenarioDef struct {
	vector gate.InterruptNumber
	// fire overrides the default of dispatching vector.
	fire func(env *env, regs *gate.Registers)
}

var scenarios = map[string]scenarioDef{
	"syscall":     {vector: gate.Syscall},
	"timer":       {vector: gate.TimerIRQ},
	"keyboard":    {vector: gate.KeyboardIRQ},
	"pagefault":   {vector: gate.PageFaultException},
	"divide":      {vector: gate.DivideByZero},
	"overflow":    {vector: gate.Overflow},
	"opcode":      {vector: gate.InvalidOpcode},
	"doublefault": {vector: gate.DoubleFault},
	"gpf":         {vector: gate.GeneralProtectionFault},
	"panic": {fire: func(_ *env, _ *gate.Registers) {
		fatal.Panic(&kernel.Error{Module: "sim", Message: "simulated runtime panic"})
	}},
}

// Scenarios returns the names of the supported scenarios.
func Scenarios() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// recordingReporter keeps a copy of the record before handing it to the
// real reporter.
type recordingReporter struct {
	*fatal.Reporter
	last *fatal.Record
}

func (r *recordingReporter) Fault(tag, where string, rec fatal.Record) {
	r.last = &rec
	r.Reporter.Fault(tag, where, rec)
}

type env struct {
	table      gate.Table
	machine    *haltest.Machine
	controller *Controller
	console    *Console
	reporter   *recordingReporter
	syscalls   *syscall.Global
	scancodes  []uint8
}

func newEnv(logger hclog.Logger) *env {
	e := &env{
		machine: NewMachine(logger.Named("cpu")),
		console: &Console{},
	}
	e.controller = NewController(e.machine, logger.Named("pic"))
	e.reporter = &recordingReporter{Reporter: fatal.NewReporter(e.console, e.machine)}
	e.syscalls = syscall.NewGlobal(e.machine)

	tbl := syscall.NewTable()
	tbl.Register(demoSyscall, func(args syscall.Args) uint64 {
		return args.A + args.B + args.C + args.Src + args.Dest
	})
	e.syscalls.SetTable(tbl)

	e.controller.Init()

	trap.Install(&e.table, trap.Config{
		Machine:        e.machine,
		Controller:     e.controller,
		Syscalls:       e.syscalls,
		Reporter:       e.reporter,
		DoubleFaultIST: doubleFaultIST,
		OnTick: func() {
			logger.Debug("timer tick")
		},
		OnScancode: func(code uint8) {
			e.scancodes = append(e.scancodes, code)
			logger.Debug("keyboard scancode", "code", hclog.Hex(int(code)))
		},
	})

	e.machine.Reset()
	return e
}

// Run boots the core on simulated hardware and fires the trap described by
// s.
func Run(s Scenario, logger hclog.Logger) (*Result, error) {
	def, ok := scenarios[s.Name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownScenario, "scenario %q", s.Name)
	}

	e := newEnv(logger)
	e.machine.FaultAddress = s.FaultAddress
	e.machine.QueueInput(trap.KeyboardDataPort, s.Scancodes...)

	regs := &gate.Registers{
		RIP:    0xffff800000102030,
		CS:     e.machine.CodeSegment,
		RFlags: e.machine.Flags,
		RSP:    0xffff800000fffff0,
		SS:     e.machine.StackSegment,
		Info:   s.FaultCode,
	}
	if s.Name == "syscall" {
		regs.RAX = s.Syscall
		regs.RBX, regs.RCX, regs.RDX = s.Args.A, s.Args.B, s.Args.C
		regs.RSI, regs.RDI = s.Args.Src, s.Args.Dest
	}

	if def.fire != nil {
		// fatal.Panic reports through the package-level reporter.
		fatal.Init(e.reporter.Reporter)
		defer fatal.Init(nil)
	}

	logger.Info("firing trap", "scenario", s.Name, "vector", int(def.vector))

	halted, err := e.fire(def, regs)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %q", s.Name)
	}

	res := &Result{
		Scenario:  s.Name,
		Halted:    halted,
		Console:   e.console.Lines(),
		Registers: *regs,
		EOIs:      make(map[gate.InterruptNumber]int),
		Scancodes: e.scancodes,
		Record:    e.reporter.last,
		Events:    e.machine.Events,
	}

	for _, vector := range []gate.InterruptNumber{gate.TimerIRQ, gate.KeyboardIRQ} {
		if n := e.controller.EOIs(vector); n != 0 {
			res.EOIs[vector] = n
		}
	}

	if s.Name == "syscall" {
		res.SyscallResult = regs.RAX
		kfmt.Fprintf(e.console, "syscall %d returned %d\n", s.Syscall, regs.RAX)
		res.Console = e.console.Lines()
	}

	logger.Info("trap finished", "scenario", s.Name, "halted", halted)
	return res, nil
}

func (e *env) fire(def scenarioDef, regs *gate.Registers) (halted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			if r != haltest.ErrHalted {
				err = errors.Wrapf(ErrUnexpectedPanic, "%v", r)
				return
			}
			halted = true
		}
	}()

	if def.fire != nil {
		def.fire(e, regs)
		return false, nil
	}

	e.table.Dispatch(def.vector, regs)
	return false, nil
}
