/*Package device provides the result contract, failure taxonomy, and precondition
guards shared by every instrument driver.

Driver operations never return a Go error for an expected failure.  They return
a Result, which is either a success carrying a message (and, for numeric
queries, a value) or a failure carrying a Kind and a human readable message.

Guards are plain functions evaluated in order at the top of an operation; the
first one to fail short-circuits the operation before anything is written to the
transport:

	func (d *Driver) Move(axis int, pos float64) device.Result {
		if res, ok := device.Check(
			device.SerialOpen(d.t),
			device.Initialized(d.Initialized),
			device.Axis(axis, d.validAxis),
		); !ok {
			return res
		}
		...
	}
*/
package device

import (
	"errors"
	"fmt"
)

// Kind enumerates the outcome categories of a driver operation
type Kind int

const (
	// OK is the kind of every successful result
	OK Kind = iota

	// NotConnected is returned when the transport is not open
	NotConnected

	// NotInitialized is returned when an operation requires an initialized device
	NotInitialized

	// InvalidAxis is returned when an axis is not part of the configured set
	InvalidAxis

	// InvalidSpeed is returned when a speed is <= 0 or above the axis maximum
	InvalidSpeed

	// InvalidArgument is returned for other out of range or unrecognized inputs
	InvalidArgument

	// ResponseTimeout is returned when the instrument did not answer within the read timeout
	ResponseTimeout

	// ControllerFault is returned when the instrument reports an error; the
	// message holds the instrument's raw fault text
	ControllerFault

	// UnspecifiedFailure is returned when a command was accepted but the
	// instrument did not reach the expected state, or replied with garbage
	UnspecifiedFailure
)

var kindNames = map[Kind]string{
	OK:                 "OK",
	NotConnected:       "NotConnected",
	NotInitialized:     "NotInitialized",
	InvalidAxis:        "InvalidAxis",
	InvalidSpeed:       "InvalidSpeed",
	InvalidArgument:    "InvalidArgument",
	ResponseTimeout:    "ResponseTimeout",
	ControllerFault:    "ControllerFault",
	UnspecifiedFailure: "UnspecifiedFailure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText encodes the kind by name, so JSON payloads read "InvalidAxis"
// and not 3
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Result is the outcome of every driver operation
type Result struct {
	OK      bool    `json:"ok"`
	Kind    Kind    `json:"kind"`
	Message string  `json:"msg"`
	Value   float64 `json:"f64"`
}

// Success returns a successful result with a message
func Success(msg string) Result {
	return Result{OK: true, Kind: OK, Message: msg}
}

// Successf is Success with fmt.Sprintf formatting
func Successf(format string, a ...interface{}) Result {
	return Success(fmt.Sprintf(format, a...))
}

// Measured returns a successful result carrying a numeric payload
func Measured(v float64, msg string) Result {
	return Result{OK: true, Kind: OK, Message: msg, Value: v}
}

// Failure returns a failed result of the given kind
func Failure(kind Kind, msg string) Result {
	return Result{Kind: kind, Message: msg}
}

// Failuref is Failure with fmt.Sprintf formatting
func Failuref(kind Kind, format string, a ...interface{}) Result {
	return Failure(kind, fmt.Sprintf(format, a...))
}

func (r Result) String() string {
	if r.OK {
		return r.Message
	}
	return r.Kind.String() + ": " + r.Message
}

// Err converts a failed result to an error, and a successful one to nil
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return &Error{Kind: r.Kind, Msg: r.Message}
}

// Error is the error form of a failed Result
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is reports whether target is an *Error of the same Kind, which lets callers
// write errors.Is(err, device.ErrInvalidAxis)
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	// ErrNotConnected matches any NotConnected failure via errors.Is
	ErrNotConnected = &Error{Kind: NotConnected}

	// ErrNotInitialized matches any NotInitialized failure via errors.Is
	ErrNotInitialized = &Error{Kind: NotInitialized}

	// ErrInvalidAxis matches any InvalidAxis failure via errors.Is
	ErrInvalidAxis = &Error{Kind: InvalidAxis}

	// ErrInvalidSpeed matches any InvalidSpeed failure via errors.Is
	ErrInvalidSpeed = &Error{Kind: InvalidSpeed}

	// ErrInvalidArgument matches any InvalidArgument failure via errors.Is
	ErrInvalidArgument = &Error{Kind: InvalidArgument}

	// ErrResponseTimeout matches any ResponseTimeout failure via errors.Is
	ErrResponseTimeout = &Error{Kind: ResponseTimeout}

	// ErrControllerFault matches any ControllerFault failure via errors.Is
	ErrControllerFault = &Error{Kind: ControllerFault}

	// ErrUnspecifiedFailure matches any UnspecifiedFailure via errors.Is
	ErrUnspecifiedFailure = &Error{Kind: UnspecifiedFailure}
)
