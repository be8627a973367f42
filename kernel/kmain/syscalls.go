package kmain

import (
	"irqos/kernel/kfmt"
	"irqos/kernel/syscall"
)

const sysExitNumber = 1

// sysExitScratch holds the rendered sysExit argument dump. Syscalls are
// serviced with interrupts disabled so it is never used concurrently.
var sysExitScratch [256]byte

// newSyscallTable returns the syscall table installed at boot.
func newSyscallTable() syscall.Table {
	tbl := syscall.NewTable()
	tbl.Register(sysExitNumber, sysExit)
	tbl.RegisterFallback(sysFallback)
	return tbl
}

// sysExit dumps its arguments to the console.
func sysExit(args syscall.Args) uint64 {
	kfmt.Printf("sys_exit() called.\n")
	kfmt.Bprintf(kfmt.GetOutputSink(), sysExitScratch[:],
		"RBX: 0x%X16\nRCX: 0x%X16\nRDX: 0x%X16\nRSI: 0x%X16\nRDI: 0x%X16\n",
		args.A, args.B, args.C, args.Src, args.Dest,
	)
	return 32
}

func sysFallback(_ syscall.Args) uint64 {
	return 0
}
