package kernel

// Error describes a kernel error. Kernel errors are declared as global
// pointers to Error values because code running inside trap handlers (or
// before the Go allocator is available) cannot call errors.New.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
