package kmain

import (
	"irqos/kernel/cpu"
	"irqos/kernel/driver/vga"
	"irqos/kernel/fatal"
	"irqos/kernel/gate"
	"irqos/kernel/hal"
	"irqos/kernel/irq"
	"irqos/kernel/kfmt"
	"irqos/kernel/syscall"
	"irqos/kernel/trap"
)

// DoubleFaultIST is the interrupt stack table entry that the rt0 code sets
// up in the TSS for the double fault handler.
const DoubleFaultIST = 1

var (
	machine = hal.Native{}

	// syscalls is the live syscall table serviced by the int 0x80 handler.
	syscalls = syscall.NewGlobal(machine)

	// sink receives all kfmt output once Kmain has set up the devices.
	sink console

	// waitForInterruptFn is mocked by tests.
	waitForInterruptFn = cpu.WaitForInterrupt
)

// Kmain is the only Go symbol that is visible (exported) from the rt0 initialization
// code. This function is invoked by the rt0 assembly code after setting up the GDT,
// the IDT entry stubs and a minimal g0 struct that allows Go code to use the stack
// allocated by the assembly code.
//
// The rt0 code passes the address of the multiboot info payload provided by the
// bootloader as well as the physical addresses for the kernel start/end.
//
// Kmain never returns: once the kernel is up it idles, servicing interrupts.
//
// The rt0 code brings up the memory allocator and the Go runtime before
// calling Kmain so initialization may allocate. Trap handlers never do.
//
//go:noinline
func Kmain(multibootInfoPtr, kernelStart, kernelEnd uintptr) {
	term, err := vga.NewTerminal(vga.Framebuffer(), vga.Width, vga.Height)
	if err != nil {
		fatal.Panic(err)
	}
	term.Clear()
	sink.screen = term
	kfmt.SetOutputSink(&sink)

	sink.serial = attachSerial(serialPorts, &sink)

	kfmt.Printf("Welcome to ")
	sink.setColor(vga.LightCyan)
	kfmt.Printf("irqos")
	sink.setColor(vga.LightGrey)
	kfmt.Printf("!\n")
	kfmt.Printf("[kmain] kernel loaded at 0x%x - 0x%x\n", kernelStart, kernelEnd)

	reporter := fatal.NewReporter(nil, machine)
	fatal.Init(reporter)

	pic := irq.NewPIC(machine, gate.IRQBase, gate.IRQBase+8)
	pic.Init()

	syscalls.SetTable(newSyscallTable())

	trap.Install(gate.IDT(), trap.Config{
		Machine:        machine,
		Controller:     pic,
		Syscalls:       syscalls,
		Reporter:       reporter,
		DoubleFaultIST: DoubleFaultIST,
		OnScancode: func(code uint8) {
			kfmt.Printf("[kmain] scancode 0x%2x\n", code)
		},
	})

	kfmt.Printf("[kmain] trap handlers installed\n")
	machine.EnableInterrupts()

	ret := cpu.Syscall(sysExitNumber, 42, 21, 0, 0, 0)
	kfmt.Printf("[kmain] syscall returned %d\n", ret)

	idle()
}

// idle services interrupts forever. There is no scheduler, so everything
// after boot happens inside trap handlers.
func idle() {
	for {
		waitForInterruptFn()
	}
}
