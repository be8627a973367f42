package cpu

// FlagInterruptEnable is the IF bit of the RFLAGS register.
const FlagInterruptEnable = uint64(1 << 9)

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// Halt stops instruction execution.
func Halt()

// ReadCR2 returns the value stored in the CR2 register. After a page fault
// CR2 holds the linear address that caused the fault.
func ReadCR2() uint64

// ReadFlags returns the contents of the RFLAGS register.
func ReadFlags() uint64

// ReadCS returns the active code segment selector.
func ReadCS() uint64

// ReadSS returns the active stack segment selector.
func ReadSS() uint64

// PortWriteByte writes a uint8 value to the requested port.
func PortWriteByte(port uint16, val uint8)

// PortReadByte reads a uint8 value from the requested port.
func PortReadByte(port uint16) uint8

// InterruptsEnabled returns true if the IF flag is set in the supplied
// RFLAGS value.
func InterruptsEnabled(flags uint64) bool {
	return flags&FlagInterruptEnable != 0
}

// WaitForInterrupt enables interrupts and stops instruction execution until
// the next interrupt has been serviced.
func WaitForInterrupt()

// Syscall loads number and the arguments into the syscall registers and
// issues "int 0x80". It returns the contents of RAX after the trap.
func Syscall(number, a, b, c, src, dest uint64) uint64
