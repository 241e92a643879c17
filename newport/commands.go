package newport

import (
	"fmt"

	"github.com/sdlab/labdev/command"
	"github.com/sdlab/labdev/device"
	"github.com/sdlab/labdev/util"
)

// ConnectCmd opens the controller's transport
func ConnectCmd(esp *ESP301) command.Command {
	return command.New("esp301.connect", esp.Connect)
}

// DisconnectCmd closes the controller's transport
func DisconnectCmd(esp *ESP301) command.Command {
	return command.New("esp301.disconnect", esp.Disconnect)
}

// InitializeCmd initializes the controller
func InitializeCmd(esp *ESP301) command.Command {
	return command.New("esp301.initialize", esp.Initialize)
}

// DeinitializeCmd parks every axis at zero
func DeinitializeCmd(esp *ESP301, reset bool) command.Command {
	return command.New("esp301.deinitialize", func() device.Result { return esp.Deinitialize(reset) })
}

// HomeCmd homes one axis
func HomeCmd(esp *ESP301, axis int) command.Command {
	return command.New(fmt.Sprintf("esp301.home(%d)", axis), func() device.Result { return esp.Home(axis) })
}

// MoveAbsoluteCmd moves an axis to a position at its default speed
func MoveAbsoluteCmd(esp *ESP301, axis int, position float64) command.Command {
	return command.New(fmt.Sprintf("esp301.move_absolute(%d, %s)", axis, util.FormatFloat(position)),
		func() device.Result { return esp.MoveAbsolute(axis, position) })
}

// MoveSpeedAbsoluteCmd moves an axis to a position at a given speed
func MoveSpeedAbsoluteCmd(esp *ESP301, axis int, position, speed float64) command.Command {
	return command.New(fmt.Sprintf("esp301.move_speed_absolute(%d, %s, %s)", axis, util.FormatFloat(position), util.FormatFloat(speed)),
		func() device.Result { return esp.MoveSpeedAbsolute(axis, position, speed) })
}

// MoveRelativeCmd moves an axis by a distance at its default speed
func MoveRelativeCmd(esp *ESP301, axis int, distance float64) command.Command {
	return command.New(fmt.Sprintf("esp301.move_relative(%d, %s)", axis, util.FormatFloat(distance)),
		func() device.Result { return esp.MoveRelative(axis, distance) })
}

// MoveSpeedRelativeCmd moves an axis by a distance at a given speed
func MoveSpeedRelativeCmd(esp *ESP301, axis int, distance, speed float64) command.Command {
	return command.New(fmt.Sprintf("esp301.move_speed_relative(%d, %s, %s)", axis, util.FormatFloat(distance), util.FormatFloat(speed)),
		func() device.Result { return esp.MoveSpeedRelative(axis, distance, speed) })
}

// AxisOnCmd enables an axis
func AxisOnCmd(esp *ESP301, axis int) command.Command {
	return command.New(fmt.Sprintf("esp301.axis_on(%d)", axis), func() device.Result { return esp.AxisOn(axis) })
}

// AxisOffCmd disables an axis
func AxisOffCmd(esp *ESP301, axis int) command.Command {
	return command.New(fmt.Sprintf("esp301.axis_off(%d)", axis), func() device.Result { return esp.AxisOff(axis) })
}

// PositionCmd reads the position of an axis
func PositionCmd(esp *ESP301, axis int) command.Command {
	return command.New(fmt.Sprintf("esp301.position(%d)", axis), func() device.Result { return esp.Position(axis) })
}

// AxisUnitCmd reads the unit of an axis
func AxisUnitCmd(esp *ESP301, axis int) command.Command {
	return command.New(fmt.Sprintf("esp301.axis_unit(%d)", axis), func() device.Result { return esp.AxisUnit(axis) })
}

// ChangeAxisUnitCmd programs the unit of an axis
func ChangeAxisUnitCmd(esp *ESP301, axis int, unit string) command.Command {
	return command.New(fmt.Sprintf("esp301.change_axis_unit(%d, %s)", axis, unit),
		func() device.Result { return esp.ChangeAxisUnit(axis, unit) })
}

// SetAxisDefaultSpeedCmd sets the default speed of an axis
func SetAxisDefaultSpeedCmd(esp *ESP301, axis int, speed float64) command.Command {
	return command.New(fmt.Sprintf("esp301.set_axis_default_speed(%d, %s)", axis, util.FormatFloat(speed)),
		func() device.Result { return esp.SetAxisDefaultSpeed(axis, speed) })
}

// CheckErrorCmd queries the controller error register
func CheckErrorCmd(esp *ESP301) command.Command {
	return command.New("esp301.check_error", esp.CheckError)
}

// StartupCmd is the usual bring-up: connect then initialize
func StartupCmd(esp *ESP301) command.Command {
	return command.Sequence("esp301.startup", ConnectCmd(esp), InitializeCmd(esp))
}

// PS69907InitializeCmd initializes the arc lamp supply
func PS69907InitializeCmd(ps *PS69907) command.Command {
	return command.New("ps69907.initialize", ps.Initialize)
}

// PS69907DeinitializeCmd turns the lamp off and releases the supply
func PS69907DeinitializeCmd(ps *PS69907) command.Command {
	return command.New("ps69907.deinitialize", ps.Deinitialize)
}

// PS69907TurnOnCmd lights the lamp
func PS69907TurnOnCmd(ps *PS69907) command.Command {
	return command.New("ps69907.turn_on", ps.TurnOn)
}

// PS69907TurnOffCmd extinguishes the lamp
func PS69907TurnOffCmd(ps *PS69907) command.Command {
	return command.New("ps69907.turn_off", ps.TurnOff)
}

// PS69907SetPowerLimitCmd programs the power limit
func PS69907SetPowerLimitCmd(ps *PS69907, watts float64) command.Command {
	return command.New(fmt.Sprintf("ps69907.set_power_limit(%s)", util.FormatFloat(watts)),
		func() device.Result { return ps.SetPowerLimit(watts) })
}
