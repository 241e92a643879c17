package ika

import (
	"fmt"

	"github.com/sdlab/labdev/command"
	"github.com/sdlab/labdev/device"
	"github.com/sdlab/labdev/util"
)

// InitializeCmd initializes the stirrer
func InitializeCmd(s *Stirrer) command.Command {
	return command.New("ika.initialize", s.Initialize)
}

// DeinitializeCmd stops heating and stirring
func DeinitializeCmd(s *Stirrer) command.Command {
	return command.New("ika.deinitialize", s.Deinitialize)
}

// ChangeTemperatureCmd heats toward temp
func ChangeTemperatureCmd(s *Stirrer, temp float64) command.Command {
	return command.New(fmt.Sprintf("ika.change_temperature(%s)", util.FormatFloat(temp)),
		func() device.Result { return s.ChangeTemperature(temp) })
}

// ChangeStirRateCmd stirs at rate
func ChangeStirRateCmd(s *Stirrer, rate float64) command.Command {
	return command.New(fmt.Sprintf("ika.change_stir_rate(%s)", util.FormatFloat(rate)),
		func() device.Result { return s.ChangeStirRate(rate) })
}

// StopHeatingCmd switches the heater off
func StopHeatingCmd(s *Stirrer) command.Command {
	return command.New("ika.stop_heating", s.StopHeating)
}

// StopStirringCmd stops the motor
func StopStirringCmd(s *Stirrer) command.Command {
	return command.New("ika.stop_stirring", s.StopStirring)
}

// HaltCmd stops heating, then stirring
func HaltCmd(s *Stirrer) command.Command {
	return command.Sequence("ika.halt", StopHeatingCmd(s), StopStirringCmd(s))
}
