package model

import (
	"strconv"
	"strings"
)

// ParseEmission extracts a number from a loosely formatted emission string such
// as "0.08 kg". Every digit and decimal point is kept in order and the result is
// parsed as a float, so "kg 1 to 2" yields 12 and "1.2.3" yields 0. Anything
// that does not parse yields 0.
func ParseEmission(s string) float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return v
}
