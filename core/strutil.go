package core

// Number formatting for debug messages without fmt, which is too large
// for the firmware image.

// Itoa formats a signed integer in decimal
func Itoa(n int) string {
	if n < 0 {
		return "-" + utoa64(uint64(-int64(n)))
	}
	return utoa64(uint64(n))
}

// Utoa formats an unsigned integer in decimal
func Utoa(n uint32) string {
	return utoa64(uint64(n))
}

func utoa64(n uint64) string {
	var buf [20]byte
	pos := len(buf)
	for {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return string(buf[pos:])
}

// Hex8 formats a byte as two hex digits
func Hex8(v uint8) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[v>>4], digits[v&0x0F]})
}
