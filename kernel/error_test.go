package kernel

import "testing"

func TestKernelError(t *testing.T) {
	err := &Error{
		Module:  "trap",
		Message: "error message",
	}

	if err.Error() != err.Message {
		t.Fatalf("expected to err.Error() to return %q; got %q", err.Message, err.Error())
	}

	var asErr error = err
	if asErr.Error() != "error message" {
		t.Fatalf("expected *Error to satisfy the error interface; got %q", asErr.Error())
	}
}
