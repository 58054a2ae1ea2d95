package ssocket

// Cell is the unit of script string buffers, holding one character each.
type Cell = int32

// StrUnpack copies the NUL terminated string packed in src into dst, one
// byte per cell. At most len(dst) cells are written, and the result is always
// NUL terminated: a string that does not fit is truncated to len(dst)-1
// characters. The end of src counts as a terminator.
//
// The length of the unpacked string, not counting the terminator, is
// returned.
func StrUnpack(dst []Cell, src []byte) int {
	if len(dst) == 0 {
		return 0
	}
	for i := range dst {
		var c byte
		if i < len(src) {
			c = src[i]
		}
		dst[i] = Cell(c)
		if c == 0 {
			return i
		}
	}
	n := len(dst) - 1
	dst[n] = 0
	return n
}

// UnpackString returns the string that StrUnpack would store in a buffer of
// maxLength cells, without the terminator.
func UnpackString(src []byte, maxLength int) string {
	if maxLength <= 0 {
		return ""
	}
	n := maxLength - 1
	if n > len(src) {
		n = len(src)
	}
	for i, c := range src[:n] {
		if c == 0 {
			return string(src[:i])
		}
	}
	return string(src[:n])
}
