// Package util contains small helpers shared by the drivers.
package util

import (
	"fmt"
	"strconv"
)

// Limiter is a type which can check if a value lies within an inclusive range
type Limiter struct {
	Min float64 `json:"min" yaml:"Min" koanf:"Min"`
	Max float64 `json:"max" yaml:"Max" koanf:"Max"`
}

// Check returns true if min <= input <= max
func (l Limiter) Check(input float64) bool {
	return input >= l.Min && input <= l.Max
}

// String renders the limiter as "[min, max]"
func (l Limiter) String() string {
	return fmt.Sprintf("[%s, %s]", FormatFloat(l.Min), FormatFloat(l.Max))
}

// FormatFloat formats a float without an exponent and without trailing zeros,
// e.g. 10 => "10", 2.5 => "2.5".  Instruments that parse ASCII numbers rarely
// understand "1e-07"
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// GetBit returns the value of a given bit in a byte
func GetBit(b byte, bitIndex uint) bool {
	return (b>>bitIndex)&1 == 1
}
