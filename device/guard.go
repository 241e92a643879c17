package device

import "strconv"

// Guard is a precondition.  It returns ok=false and the failure to report when
// the precondition does not hold
type Guard func() (Result, bool)

// Porter is the part of a transport the serial-open guard needs
type Porter interface {
	IsOpen() bool
	Port() string
}

// Check evaluates guards in order and returns the first failure.
// ok is true only if every guard passed
func Check(guards ...Guard) (Result, bool) {
	for _, g := range guards {
		if res, ok := g(); !ok {
			return res, false
		}
	}
	return Result{}, true
}

// SerialOpen fails with NotConnected if the transport is nil or closed
func SerialOpen(p Porter) Guard {
	return func() (Result, bool) {
		if p == nil {
			return Failure(NotConnected, "no serial port is attached"), false
		}
		if !p.IsOpen() {
			return Failuref(NotConnected, "Serial port %s is not open.", p.Port()), false
		}
		return Result{}, true
	}
}

// Initialized fails with NotInitialized if initialized() is false
func Initialized(initialized func() bool) Guard {
	return func() (Result, bool) {
		if !initialized() {
			return Failure(NotInitialized, "device is not initialized"), false
		}
		return Result{}, true
	}
}

// Axis fails with InvalidAxis if valid(axis) is false
func Axis(axis int, valid func(int) bool) Guard {
	return func() (Result, bool) {
		if !valid(axis) {
			return Failure(InvalidAxis, "axis "+strconv.Itoa(axis)+" is not valid or not part of the configured axis list"), false
		}
		return Result{}, true
	}
}
