package kfmt

import (
	"io"
	"math"
	"strconv"

	"irqos/kernel"
)

// defaultHexWidth is the %X width used when no digits follow the verb.
const defaultHexWidth = 2

// maxHexWidth caps the parsed %X width; wider requests cannot fit in any
// reasonable buffer and fail with ErrBufferFull anyway.
const maxHexWidth = 1 << 16

var (
	// ErrBufferFull is returned by Format when the rendered output does not
	// fit in the supplied buffer.
	ErrBufferFull = &kernel.Error{Module: "kfmt", Message: "formatted output exceeds buffer capacity"}

	// ErrNotUnsigned is returned by Format when a %X argument cannot be
	// interpreted as an unsigned 64-bit integer.
	ErrNotUnsigned = &kernel.Error{Module: "kfmt", Message: "argument is not an unsigned 64-bit integer"}
)

// Format renders format into buf and returns the number of bytes written.
// It supports the following directives, each consuming one argument unless
// noted otherwise:
//
//	%%     a literal percent sign (no argument)
//	%d %i  default text form of the argument
//	%s     default text form of the argument
//	%f     fixed two-decimal form
//	%X[n]  upper-case hex zero-padded to n digits (2 if n is absent)
//	%c     any other character c is copied through (no argument)
//
// A directive without a matching argument renders nothing. If the output
// does not fit, Format stops at the last complete token and returns the
// bytes written so far together with ErrBufferFull; buf is never written
// past its length. A %X argument that is not an unsigned integer (or a
// string holding one) fails the call with ErrNotUnsigned.
//
// Format keeps no state between calls, takes no locks and does not allocate
// which makes it safe to use while servicing a fault.
func Format(buf []byte, format string, args ...interface{}) (int, *kernel.Error) {
	var (
		w        = bufWriter{buf: buf}
		argIndex int
		ok       bool
	)

	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			if !w.writeByte(format[i]) {
				return w.n, ErrBufferFull
			}
			continue
		}

		// A trailing '%' has no verb and is dropped.
		if i++; i == len(format) {
			break
		}

		switch verb := format[i]; verb {
		case '%':
			ok = w.writeByte('%')
		case 'd', 'i', 's':
			ok = true
			if argIndex < len(args) {
				ok = w.writeValue(args[argIndex])
			}
			argIndex++
		case 'f':
			ok = true
			if argIndex < len(args) {
				ok = w.writeFixed(args[argIndex])
			}
			argIndex++
		case 'X':
			width := 0
			for i+1 < len(format) && format[i+1] >= '0' && format[i+1] <= '9' {
				i++
				if width < maxHexWidth {
					width = width*10 + int(format[i]-'0')
				}
			}
			if width == 0 {
				width = defaultHexWidth
			}

			ok = true
			if argIndex < len(args) {
				val, valid := parseUint64(args[argIndex])
				if !valid {
					return w.n, ErrNotUnsigned
				}
				ok = w.writeHex(val, width)
			}
			argIndex++
		default:
			ok = w.writeByte(verb)
		}

		if !ok {
			return w.n, ErrBufferFull
		}
	}

	return w.n, nil
}

// Bprintf renders format into scratch using Format and writes the result to
// w. Whatever was rendered before a formatting error is still written.
func Bprintf(w io.Writer, scratch []byte, format string, args ...interface{}) (int, *kernel.Error) {
	n, err := Format(scratch, format, args...)
	if n > 0 {
		doWrite(w, scratch[:n])
	}
	return n, err
}

// bufWriter appends to a fixed capacity buffer. Each write either fits
// entirely or leaves the buffer untouched.
type bufWriter struct {
	buf []byte
	n   int
}

func (b *bufWriter) writeByte(c byte) bool {
	if b.n >= len(b.buf) {
		return false
	}
	b.buf[b.n] = c
	b.n++
	return true
}

func (b *bufWriter) writeBytes(p []byte) bool {
	if len(p) > len(b.buf)-b.n {
		return false
	}
	b.n += copy(b.buf[b.n:], p)
	return true
}

func (b *bufWriter) writeString(s string) bool {
	if len(s) > len(b.buf)-b.n {
		return false
	}
	b.n += copy(b.buf[b.n:], s)
	return true
}

// writeInt writes the base-10 form of an integer argument.
func (b *bufWriter) writeInt(mag uint64, neg bool) bool {
	var num [maxBufSize]byte

	start := fmtUint(&num, mag, 10, lowerHexDigits)
	if neg {
		start--
		num[start] = '-'
	}
	return b.writeBytes(num[start:])
}

// writeValue writes the default text form of v.
func (b *bufWriter) writeValue(v interface{}) bool {
	if mag, neg, isInt := splitInt(v); isInt {
		return b.writeInt(mag, neg)
	}

	switch t := v.(type) {
	case string:
		return b.writeString(t)
	case []byte:
		return b.writeBytes(t)
	case bool:
		if t {
			return b.writeBytes(trueValue)
		}
		return b.writeBytes(falseValue)
	case float64:
		return b.writeFloat(t, -1, 64)
	case float32:
		return b.writeFloat(float64(t), -1, 32)
	default:
		return b.writeBytes(errWrongArgType)
	}
}

// writeFixed writes v using two decimals. Integers get a ".00" suffix;
// other kinds fall back to their default text form.
func (b *bufWriter) writeFixed(v interface{}) bool {
	if mag, neg, isInt := splitInt(v); isInt {
		return b.writeInt(mag, neg) && b.writeString(".00")
	}

	switch t := v.(type) {
	case float64:
		return b.writeFloat(t, 2, 64)
	case float32:
		return b.writeFloat(float64(t), 2, 32)
	default:
		return b.writeValue(v)
	}
}

// writeFloat renders f with the requested precision (-1 selects the
// shortest representation). Values whose fixed-point form would not fit the
// stack scratch buffer use exponent notation instead.
func (b *bufWriter) writeFloat(f float64, prec, bitSize int) bool {
	var scratch [64]byte

	fmtCh := byte('f')
	if abs := math.Abs(f); abs >= 1e21 || (prec < 0 && abs != 0 && abs < 1e-6) {
		fmtCh = 'e'
	}

	return b.writeBytes(strconv.AppendFloat(scratch[:0], f, fmtCh, prec, bitSize))
}

// writeHex writes val as upper-case hex, zero-padded to width digits.
func (b *bufWriter) writeHex(val uint64, width int) bool {
	var num [maxBufSize]byte

	start := fmtUint(&num, val, 16, upperHexDigits)
	for pad := width - (maxBufSize - start); pad > 0; pad-- {
		if !b.writeByte('0') {
			return false
		}
	}
	return b.writeBytes(num[start:])
}

// parseUint64 interprets v as an unsigned 64-bit integer. Strings must
// contain a base-10 number with an optional leading '+'; floats must be
// integral and in range.
func parseUint64(v interface{}) (uint64, bool) {
	if mag, neg, isInt := splitInt(v); isInt {
		return mag, !neg || mag == 0
	}

	switch t := v.(type) {
	case string:
		return parseDecimal(unsafeStringBytes(t))
	case []byte:
		return parseDecimal(t)
	case float64:
		return floatToUint64(t)
	case float32:
		return floatToUint64(float64(t))
	default:
		return 0, false
	}
}

func floatToUint64(f float64) (uint64, bool) {
	if f < 0 || f >= 1<<64 || f != math.Trunc(f) {
		return 0, false
	}
	return uint64(f), true
}

func parseDecimal(p []byte) (uint64, bool) {
	if len(p) > 0 && p[0] == '+' {
		p = p[1:]
	}
	if len(p) == 0 {
		return 0, false
	}

	var val uint64
	for _, ch := range p {
		if ch < '0' || ch > '9' {
			return 0, false
		}

		digit := uint64(ch - '0')
		if val > (math.MaxUint64-digit)/10 {
			return 0, false
		}
		val = val*10 + digit
	}

	return val, true
}
