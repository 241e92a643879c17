package sciencetech

import (
	"fmt"

	"github.com/sdlab/labdev/command"
	"github.com/sdlab/labdev/device"
	"github.com/sdlab/labdev/util"
)

// InitializeCmd initializes the lamp
func InitializeCmd(l *Lamp) command.Command {
	return command.New("sciencetech.initialize", l.Initialize)
}

// DeinitializeCmd releases the lamp
func DeinitializeCmd(l *Lamp) command.Command {
	return command.New("sciencetech.deinitialize", l.Deinitialize)
}

// CloseShutterCmd closes the shutter
func CloseShutterCmd(l *Lamp) command.Command {
	return command.New("sciencetech.close_shutter", l.CloseShutter)
}

// OpenShutterCmd opens the shutter
func OpenShutterCmd(l *Lamp) command.Command {
	return command.New("sciencetech.open_shutter", l.OpenShutter)
}

// EnableCoolingCmd turns cooling on
func EnableCoolingCmd(l *Lamp) command.Command {
	return command.New("sciencetech.enable_cooling", l.EnableCooling)
}

// DisableCoolingCmd turns cooling off
func DisableCoolingCmd(l *Lamp) command.Command {
	return command.New("sciencetech.disable_cooling", l.DisableCooling)
}

// EnableArcLampCmd strikes the arc
func EnableArcLampCmd(l *Lamp) command.Command {
	return command.New("sciencetech.enable_arc_lamp", l.EnableArcLamp)
}

// DisableArcLampCmd extinguishes the arc
func DisableArcLampCmd(l *Lamp) command.Command {
	return command.New("sciencetech.disable_arc_lamp", l.DisableArcLamp)
}

// OpenAttenuatorCmd opens the attenuator fully
func OpenAttenuatorCmd(l *Lamp) command.Command {
	return command.New("sciencetech.open_attenuator", l.OpenAttenuator)
}

// SetAttenuatorCmd sets the attenuator transmission
func SetAttenuatorCmd(l *Lamp, pct int) command.Command {
	return command.New(fmt.Sprintf("sciencetech.set_attenuator(%d)", pct),
		func() device.Result { return l.SetAttenuator(pct) })
}

// SetCurrentCmd sets the output current
func SetCurrentCmd(l *Lamp, pct float64) command.Command {
	return command.New(fmt.Sprintf("sciencetech.set_current(%s)", util.FormatFloat(pct)),
		func() device.Result { return l.SetCurrent(pct) })
}

// FeedbackCmd reads one status field
func FeedbackCmd(l *Lamp, name string) command.Command {
	return command.New(fmt.Sprintf("sciencetech.get_feedback(%s)", name),
		func() device.Result { return l.Feedback(name) })
}

// IlluminateCmd brings the lamp up and exposes the sample: initialize,
// strike the arc, then open the shutter
func IlluminateCmd(l *Lamp) command.Command {
	return command.Sequence("sciencetech.illuminate", InitializeCmd(l), EnableArcLampCmd(l), OpenShutterCmd(l))
}

// DarkenCmd closes the shutter and extinguishes the arc
func DarkenCmd(l *Lamp) command.Command {
	return command.Sequence("sciencetech.darken", CloseShutterCmd(l), DisableArcLampCmd(l))
}
