// Package kfmt implements the allocation-free formatting primitives used by
// the kernel: Printf/Fprintf for console output and Format for rendering
// into a caller-owned fixed-size buffer. Both are safe to call from trap
// handlers; they take no locks and do not allocate.
package kfmt

import (
	"io"
	"unsafe"
)

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	// earlyPrintBuffer is a ring buffer that stores Printf output before an
	// output sink is attached.
	earlyPrintBuffer ringBuffer

	// outputSink is a io.Writer where Printf will send its output. If set
	// to nil, then the output will be redirected to the earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the earlyPrintBuffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		earlyPrintBuffer.drainTo(w)
	}
}

// GetOutputSink returns the default target for calls to Printf.
func GetOutputSink() io.Writer {
	return outputSink
}

// Printf provides a minimal Printf implementation that can be safely used
// before the Go runtime has been properly initialized and from within trap
// handlers. This implementation does not allocate any memory.
//
// The following verbs are supported:
//
//	%s the uninterpreted bytes of a string or byte slice
//	%d base 10
//	%o base 8
//	%x base 16, lower-case letters
//	%X base 16, upper-case letters
//	%t "true" or "false"
//	%% a literal percent sign
//
// Width is specified by an optional decimal number immediately preceding
// the verb. Strings and base-10 integers are left-padded with spaces; base
// 8 and 16 integers are left-padded with zeroes.
//
// The output of Printf is written to the output sink. If no sink is
// attached, the output is buffered into a ring-buffer which is flushed
// by SetOutputSink.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		nextArgIndex int
		padLen       int
		blockStart   int
		fmtLen       = len(format)
	)

	for i := 0; i < fmtLen; i++ {
		if format[i] != '%' {
			continue
		}

		if blockStart < i {
			fmtStringBytes(w, format[blockStart:i])
		}

		for padLen, i = 0, i+1; i < fmtLen && format[i] >= '0' && format[i] <= '9'; i++ {
			padLen = (padLen * 10) + int(format[i]-'0')
		}

		if i == fmtLen {
			doWrite(w, errNoVerb)
			blockStart = fmtLen
			break
		}
		blockStart = i + 1

		switch verb := format[i]; verb {
		case '%':
			doWrite(w, percent[:])
		case 'd', 'o', 'x', 'X', 's', 't':
			if nextArgIndex >= len(args) {
				doWrite(w, errMissingArg)
				continue
			}

			arg := args[nextArgIndex]
			nextArgIndex++

			switch verb {
			case 'd':
				fmtInt(w, arg, 10, padLen, lowerHexDigits)
			case 'o':
				fmtInt(w, arg, 8, padLen, lowerHexDigits)
			case 'x':
				fmtInt(w, arg, 16, padLen, lowerHexDigits)
			case 'X':
				fmtInt(w, arg, 16, padLen, upperHexDigits)
			case 's':
				fmtString(w, arg, padLen)
			case 't':
				fmtBool(w, arg)
			}
		default:
			doWrite(w, errNoVerb)
		}
	}

	if blockStart < fmtLen {
		fmtStringBytes(w, format[blockStart:])
	}

	// Check for unused args
	for ; nextArgIndex < len(args); nextArgIndex++ {
		doWrite(w, errExtraArg)
	}
}

var percent = [1]byte{'%'}

// fmtBool prints a formatted version of boolean value v.
func fmtBool(w io.Writer, v interface{}) {
	bVal, ok := v.(bool)
	switch {
	case !ok:
		doWrite(w, errWrongArgType)
	case bVal:
		doWrite(w, trueValue)
	default:
		doWrite(w, falseValue)
	}
}

// fmtString prints a formatted version of string or []byte value v, applying
// the padding specified by padLen.
func fmtString(w io.Writer, v interface{}, padLen int) {
	switch castedVal := v.(type) {
	case string:
		fmtRepeat(w, ' ', padLen-len(castedVal))
		fmtStringBytes(w, castedVal)
	case []byte:
		fmtRepeat(w, ' ', padLen-len(castedVal))
		doWrite(w, castedVal)
	default:
		doWrite(w, errWrongArgType)
	}
}

// fmtStringBytes writes the bytes of s without converting it to a byte slice
// (a conversion would trigger an allocation).
func fmtStringBytes(w io.Writer, s string) {
	if len(s) == 0 {
		return
	}
	doWrite(w, unsafeStringBytes(s))
}

// fmtRepeat writes count bytes with value ch.
func fmtRepeat(w io.Writer, ch byte, count int) {
	var single = [1]byte{ch}
	for i := 0; i < count; i++ {
		doWrite(w, single[:])
	}
}

// fmtInt prints out a formatted version of v in the requested base, applying
// the padding specified by padLen. The sign of negative values counts
// towards padLen.
func fmtInt(w io.Writer, v interface{}, base uint64, padLen int, digits string) {
	var buf [maxBufSize]byte

	mag, neg, ok := splitInt(v)
	if !ok {
		doWrite(w, errWrongArgType)
		return
	}

	if padLen >= maxBufSize {
		padLen = maxBufSize - 1
	}

	start := fmtUint(&buf, mag, base, digits)

	// Space padding goes before the sign; zero padding goes between the
	// sign and the digits.
	padCh, signFirst := byte(' '), false
	if base != 10 {
		padCh, signFirst = '0', neg
	}

	if neg && !signFirst {
		start--
		buf[start] = '-'
	}
	if signFirst {
		padLen--
	}

	for ; maxBufSize-start < padLen; start-- {
		buf[start-1] = padCh
	}

	if signFirst {
		start--
		buf[start] = '-'
	}

	doWrite(w, buf[start:])
}

// doWrite is a proxy that uses the runtime.noescape hack to hide p from the
// compiler's escape analysis. Without this hack, the compiler cannot detect
// that p does not escape (due to the call to the unknown io.Writer) and
// flags it as escaping, which makes every call to Printf allocate.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyPrintBuffer.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. This function is copied over
// from runtime/stubs.go
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
