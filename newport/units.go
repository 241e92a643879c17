package newport

import (
	"fmt"
	"strings"
)

// Unit is a physical unit an ESP axis can be programmed in
type Unit int

// the value of each Unit is its controller code for the SN command
const (
	EncoderCount Unit = iota
	MotorStep
	Millimeter
	Micrometer
	Inch
	MilliInch
	MicroInch
	Degree
	Gradian
	Radian
	Milliradian
	Microradian
)

// unitNames is indexed by Unit; the first name is canonical
var unitNames = [...][]string{
	EncoderCount: {"encoder count", "encoder-count", "count", "counts"},
	MotorStep:    {"motor step", "motor-step", "step", "steps"},
	Millimeter:   {"millimeter", "mm", "millimeters"},
	Micrometer:   {"micrometer", "um", "micron", "micrometers"},
	Inch:         {"inches", "inch", "in"},
	MilliInch:    {"milli-inches", "milli-inch", "mil"},
	MicroInch:    {"micro-inches", "micro-inch", "uin"},
	Degree:       {"degree", "deg", "degrees"},
	Gradian:      {"gradian", "grad", "gradians"},
	Radian:       {"radian", "rad", "radians"},
	Milliradian:  {"milliradian", "mrad", "milliradians"},
	Microradian:  {"microradian", "urad", "microradians"},
}

var unitLookup = func() map[string]Unit {
	m := make(map[string]Unit)
	for u, names := range unitNames {
		for _, n := range names {
			m[n] = Unit(u)
		}
	}
	return m
}()

// ParseUnit converts a unit name, case insensitive, to a Unit
func ParseUnit(s string) (Unit, error) {
	u, ok := unitLookup[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%s is not a valid unit type", s)
	}
	return u, nil
}

// UnitFromCode converts a controller code (the reply to SN?) to a Unit
func UnitFromCode(code int) (Unit, error) {
	if code < 0 || code >= len(unitNames) {
		return 0, fmt.Errorf("unit code %d out of range [0, %d]", code, len(unitNames)-1)
	}
	return Unit(code), nil
}

// Code returns the controller's code for the unit
func (u Unit) Code() int {
	return int(u)
}

// String returns the canonical name of the unit
func (u Unit) String() string {
	if u < 0 || int(u) >= len(unitNames) {
		return fmt.Sprintf("Unit(%d)", int(u))
	}
	return unitNames[u][0]
}

// MarshalText encodes the canonical name
func (u Unit) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText accepts any name ParseUnit does, so configuration files can
// say "mm" or "Degree"
func (u *Unit) UnmarshalText(b []byte) error {
	v, err := ParseUnit(string(b))
	if err != nil {
		return err
	}
	*u = v
	return nil
}
