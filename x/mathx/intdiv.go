package mathx

import "golang.org/x/exp/constraints"

// CeilDiv returns ceil(a/b) for unsigned integers. Division by zero yields 0.
func CeilDiv[T constraints.Unsigned](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// SatU16 narrows v to uint16, saturating at 0xFFFF.
func SatU16[T constraints.Unsigned](v T) uint16 {
	if uint64(v) > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}
