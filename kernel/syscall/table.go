// Package syscall implements the kernel syscall table and the invocation
// path used by the software interrupt handler.
package syscall

// MaxSyscalls is the number of slots in a Table.
const MaxSyscalls = 256

// Args holds the arguments passed to a syscall. The fields map 1:1 to the
// registers used by the syscall ABI (RBX, RCX, RDX, RSI and RDI).
type Args struct {
	A    uint64
	B    uint64
	C    uint64
	Src  uint64
	Dest uint64
}

// Handler services a syscall and returns the value that is placed in RAX.
type Handler func(Args) uint64

// DefaultHandler is the fallback used by tables returned by NewTable.
func DefaultHandler(_ Args) uint64 {
	return 0
}

// slotState tracks how a Table slot resolves to a handler.
type slotState uint8

const (
	// slotUnset is the zero value; it resolves exactly like slotFallback
	// so that a zero Table is usable.
	slotUnset slotState = iota

	// slotFallback slots follow the table fallback handler.
	slotFallback

	// slotExplicit slots use the handler passed to Register.
	slotExplicit
)

// Table maps syscall numbers to handlers. Slots that have not been
// explicitly registered resolve to the fallback handler that is current at
// lookup time.
//
// Table is a plain value; assigning it produces an independent copy.
type Table struct {
	state    [MaxSyscalls]slotState
	handlers [MaxSyscalls]Handler
	fallback Handler
}

// NewTable returns a table where every slot follows DefaultHandler.
func NewTable() Table {
	var t Table
	for i := range t.state {
		t.state[i] = slotFallback
	}
	t.fallback = DefaultHandler
	return t
}

// Register installs handler for syscall number. A later call for the same
// number replaces the earlier handler.
func (t *Table) Register(number uint8, handler Handler) {
	if handler == nil {
		t.Deregister(number)
		return
	}

	t.state[number] = slotExplicit
	t.handlers[number] = handler
}

// RegisterFallback replaces the fallback handler. Slots that were never
// explicitly registered (or were deregistered) follow the new fallback;
// explicitly registered slots are left untouched.
func (t *Table) RegisterFallback(handler Handler) {
	t.fallback = handler
}

// Deregister resets syscall number to track the fallback handler.
func (t *Table) Deregister(number uint8) {
	t.state[number] = slotFallback
	t.handlers[number] = nil
}

// Get returns the handler for syscall number.
func (t *Table) Get(number uint8) Handler {
	if t.state[number] == slotExplicit {
		return t.handlers[number]
	}
	return t.Fallback()
}

// Lookup returns the handler for a raw syscall number as found in RAX.
// Numbers outside the table resolve to the fallback handler.
func (t *Table) Lookup(number uint64) Handler {
	if number >= MaxSyscalls {
		return t.Fallback()
	}
	return t.Get(uint8(number))
}

// Fallback returns the current fallback handler.
func (t *Table) Fallback() Handler {
	if t.fallback == nil {
		return DefaultHandler
	}
	return t.fallback
}

// IsExplicit returns true if number has a handler installed via Register.
func (t *Table) IsExplicit(number uint8) bool {
	return t.state[number] == slotExplicit
}
