// Package bitmask converts between sets of single-bit flags and the integer
// masks the native library expects.
//
// Every function is pure. Flags are expected to be distinct powers of two;
// masks may carry bits outside the known set, which Decode reports separately
// so callers can keep them for round-tripping.
package bitmask

import (
	"fmt"
	"strings"
)

// Flag is any integer type whose values are single bits.
type Flag interface {
	~uint32 | ~uint64
}

// Encode ORs the given flags together. No flags encode to 0.
func Encode[F Flag](flags ...F) F {
	var mask F
	for _, f := range flags {
		mask |= f
	}
	return mask
}

// Decode returns the known flags set in mask, in the order of known, together
// with the bits of mask not covered by any known flag.
func Decode[F Flag](mask F, known []F) (members []F, unknown F) {
	unknown = mask
	for _, f := range known {
		if mask&f == f && f != 0 {
			members = append(members, f)
			unknown &^= f
		}
	}
	return members, unknown
}

// Contains reports whether every bit of flag is set in mask. The zero flag is
// never contained.
func Contains[F Flag](mask, flag F) bool {
	return flag != 0 && mask&flag == flag
}

// Format renders mask as names joined by "|", using name for the known flags
// and a hexadecimal literal for anything left over. The empty mask renders
// as "0".
func Format[F Flag](mask F, known []F, name func(F) string) string {
	members, unknown := Decode(mask, known)
	if len(members) == 0 && unknown == 0 {
		return "0"
	}

	parts := make([]string, 0, len(members)+1)
	for _, f := range members {
		parts = append(parts, name(f))
	}
	if unknown != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint64(unknown)))
	}
	return strings.Join(parts, "|")
}
