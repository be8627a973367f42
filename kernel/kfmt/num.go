package kfmt

import "unsafe"

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

const (
	lowerHexDigits = "0123456789abcdef"
	upperHexDigits = "0123456789ABCDEF"
)

// fmtUint renders v using the requested base into the tail of buf and
// returns the index of the most significant digit. Bases up to 16 are
// supported; digits selects the letter case for bases above 10.
func fmtUint(buf *[maxBufSize]byte, v, base uint64, digits string) int {
	i := maxBufSize
	for {
		i--
		buf[i] = digits[v%base]
		v /= base
		if v == 0 {
			return i
		}
	}
}

// splitInt reports the magnitude and sign of any built-in integer type.
// The ok result is false if v is not an integer.
func splitInt(v interface{}) (mag uint64, neg, ok bool) {
	var sval int64

	switch t := v.(type) {
	case uint8:
		return uint64(t), false, true
	case uint16:
		return uint64(t), false, true
	case uint32:
		return uint64(t), false, true
	case uint64:
		return t, false, true
	case uint:
		return uint64(t), false, true
	case uintptr:
		return uint64(t), false, true
	case int8:
		sval = int64(t)
	case int16:
		sval = int64(t)
	case int32:
		sval = int64(t)
	case int64:
		sval = t
	case int:
		sval = int64(t)
	default:
		return 0, false, false
	}

	if sval < 0 {
		// two's complement negation also handles math.MinInt64
		return uint64(-sval), true, true
	}
	return uint64(sval), false, true
}

// unsafeStringBytes returns the bytes backing s without copying them. The
// returned slice must not be modified.
func unsafeStringBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
