// Package sciencetech provides a driver for Sciencetech solar simulator lamp
// controllers.
//
// The controller accepts short ASCII commands (S1, C0, A=050x, P=0850) and
// never replies to them.  All state is read back from the full status dump
// that follows FS, one field per line and terminated by END.  Each command
// takes effect slowly, so the driver waits a settle delay before confirming
package sciencetech

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sdlab/labdev/comm"
	"github.com/sdlab/labdev/device"
	"github.com/sdlab/labdev/util"
)

// maxStatusLines bounds how many lines Status reads while waiting for END
const maxStatusLines = 64

// currentTolerance is how far the read back current may be from the setpoint, in percent
const currentTolerance = 0.2

// FeedbackIndex maps a feedback field name to its line in the FS dump
var FeedbackIndex = map[string]int{
	"current":      3,
	"voltage":      4,
	"power":        5,
	"po":           6,
	"cool":         7,
	"lamp":         8,
	"starts":       9,
	"runtime":      10,
	"output":       11,
	"hours":        12,
	"lamp minutes": 13,
	"shutter":      14,
	"attenuator":   15,
}

var percent = util.Limiter{Min: 0, Max: 100}

// Config configures a Lamp
type Config struct {
	// Settle is how long to wait after a command before reading it back
	Settle time.Duration

	// Current is the output current Initialize programs, in percent
	Current float64

	Clock  device.Clock
	Logger *log.Logger
}

// DefaultConfig waits 5 s after each command and initializes to 85% current
func DefaultConfig() Config {
	return Config{Settle: 5 * time.Second, Current: 85}
}

// Lamp is a Sciencetech arc lamp controller.  It is not safe for concurrent use
type Lamp struct {
	t           comm.Transport
	settle      time.Duration
	setpoint    float64
	clock       device.Clock
	logger      *log.Logger
	initialized bool
}

// NewLamp returns a new Lamp talking over t
func NewLamp(t comm.Transport, cfg Config) *Lamp {
	def := DefaultConfig()
	if cfg.Settle == 0 {
		cfg.Settle = def.Settle
	}
	if cfg.Current == 0 {
		cfg.Current = def.Current
	}
	if cfg.Clock == nil {
		cfg.Clock = device.SystemClock
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Lamp{t: t, settle: cfg.Settle, setpoint: cfg.Current, clock: cfg.Clock, logger: cfg.Logger}
}

// NewLampSerial returns a Lamp on a serial port or terminal server at 9600 8N1
func NewLampSerial(addr string, serial bool, cfg Config) *Lamp {
	t := comm.NewRemoteDevice(comm.Config{Addr: addr, Serial: serial, Baud: 9600, Timeout: time.Second})
	return NewLamp(t, cfg)
}

// Initialized reports whether Initialize succeeded
func (l *Lamp) Initialized() bool {
	return l.initialized
}

func (l *Lamp) serialOpen() device.Guard {
	return device.SerialOpen(l.t)
}

func (l *Lamp) isInitialized() device.Guard {
	return device.Initialized(l.Initialized)
}

func (l *Lamp) send(cmd string) device.Result {
	if err := l.t.Write([]byte(cmd)); err != nil {
		return comm.Failure(err)
	}
	return device.Result{OK: true}
}

// Status requests the full status dump and returns its lines, END excluded
func (l *Lamp) Status() ([]string, device.Result) {
	if res, ok := device.Check(l.serialOpen()); !ok {
		return nil, res
	}
	return l.status()
}

func (l *Lamp) status() ([]string, device.Result) {
	if err := l.t.ResetInputBuffer(); err != nil {
		return nil, comm.Failure(err)
	}
	if res := l.send("FS"); !res.OK {
		return nil, res
	}
	var lines []string
	for i := 0; i < maxStatusLines; i++ {
		line, err := l.t.ReadLine()
		if err != nil {
			return lines, comm.Failure(err)
		}
		if line == "END" {
			return lines, device.Successf("%d status lines read.", len(lines))
		}
		lines = append(lines, line)
	}
	// a controller that never ends its dump is treated like one that went quiet
	return lines, device.Failuref(device.ResponseTimeout, "Response timed out, no END after %d status lines.", maxStatusLines)
}

// Feedback returns one line of the status dump, by field name (see
// FeedbackIndex), as the Result message
func (l *Lamp) Feedback(name string) device.Result {
	if res, ok := device.Check(l.serialOpen()); !ok {
		return res
	}
	return l.feedback(name)
}

func (l *Lamp) feedback(name string) device.Result {
	idx, ok := FeedbackIndex[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return device.Failuref(device.InvalidArgument, "Invalid type %q.", name)
	}
	lines, res := l.status()
	if !res.OK {
		return res
	}
	if idx >= len(lines) {
		return device.Failuref(device.UnspecifiedFailure, "status has %d lines, %s is line %d", len(lines), name, idx)
	}
	return device.Success(lines[idx])
}

// lastField returns the last whitespace separated token of s
func lastField(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[len(f)-1]
}

// flag reads a field whose line ends in 0 or 1
func (l *Lamp) flag(name string) (bool, device.Result) {
	res := l.feedback(name)
	if !res.OK {
		return false, res
	}
	s := strings.TrimSpace(res.Message)
	switch {
	case strings.HasSuffix(s, "1"):
		return true, res
	case strings.HasSuffix(s, "0"):
		return false, res
	}
	return false, device.Failuref(device.UnspecifiedFailure, "could not read a 0 or 1 from %s feedback %q", name, s)
}

// number reads a field whose last token is numeric
func (l *Lamp) number(name string) (float64, device.Result) {
	res := l.feedback(name)
	if !res.OK {
		return 0, res
	}
	v, err := strconv.ParseFloat(lastField(res.Message), 64)
	if err != nil {
		return 0, device.Failuref(device.UnspecifiedFailure, "could not read a number from %s feedback %q", name, res.Message)
	}
	return v, res
}

// switchable describes one of the on/off controls
type switchable struct {
	field   string
	name    string
	on, off string
	onWord  string
	offWord string
}

var (
	shutter = switchable{field: "shutter", name: "Shutter", on: "S1", off: "S0", onWord: "closed", offWord: "open"}
	cooling = switchable{field: "cool", name: "Cooling", on: "C1", off: "C0", onWord: "on", offWord: "off"}
	arcLamp = switchable{field: "lamp", name: "Arc lamp", on: "L1", off: "L0", onWord: "enabled", offWord: "disabled"}
)

func (l *Lamp) set(s switchable, on bool) device.Result {
	cmd, word := s.off, s.offWord
	if on {
		cmd, word = s.on, s.onWord
	}
	cur, res := l.flag(s.field)
	if !res.OK {
		return res
	}
	if cur == on {
		return device.Successf("%s was already %s.", s.name, word)
	}
	if res := l.send(cmd); !res.OK {
		return res
	}
	l.clock.Sleep(l.settle)
	cur, res = l.flag(s.field)
	if !res.OK {
		return res
	}
	if cur != on {
		return device.Failuref(device.UnspecifiedFailure, "%s failed to become %s.", s.name, word)
	}
	return device.Successf("%s is now %s.", s.name, word)
}

func (l *Lamp) guarded(fcn func() device.Result) device.Result {
	if res, ok := device.Check(l.serialOpen(), l.isInitialized()); !ok {
		return res
	}
	return fcn()
}

// CloseShutter closes (enables) the shutter.  A closed shutter is left alone
func (l *Lamp) CloseShutter() device.Result {
	return l.guarded(func() device.Result { return l.set(shutter, true) })
}

// OpenShutter opens (disables) the shutter.  An open shutter is left alone
func (l *Lamp) OpenShutter() device.Result {
	return l.guarded(func() device.Result { return l.set(shutter, false) })
}

// EnableCooling turns the lamp housing fan on
func (l *Lamp) EnableCooling() device.Result {
	return l.guarded(func() device.Result { return l.set(cooling, true) })
}

// DisableCooling turns the lamp housing fan off
func (l *Lamp) DisableCooling() device.Result {
	return l.guarded(func() device.Result { return l.set(cooling, false) })
}

// EnableArcLamp strikes the arc
func (l *Lamp) EnableArcLamp() device.Result {
	return l.guarded(func() device.Result { return l.set(arcLamp, true) })
}

// DisableArcLamp extinguishes the arc
func (l *Lamp) DisableArcLamp() device.Result {
	return l.guarded(func() device.Result { return l.set(arcLamp, false) })
}

// ShutterClosed reads the shutter; the value is 1 when closed
func (l *Lamp) ShutterClosed() device.Result {
	return l.state(shutter)
}

// CoolingOn reads the cooling state; the value is 1 when on
func (l *Lamp) CoolingOn() device.Result {
	return l.state(cooling)
}

// ArcLampOn reads the arc lamp state; the value is 1 when enabled
func (l *Lamp) ArcLampOn() device.Result {
	return l.state(arcLamp)
}

func (l *Lamp) state(s switchable) device.Result {
	if res, ok := device.Check(l.serialOpen()); !ok {
		return res
	}
	on, res := l.flag(s.field)
	if !res.OK {
		return res
	}
	if on {
		return device.Measured(1, fmt.Sprintf("%s is %s.", s.name, s.onWord))
	}
	return device.Measured(0, fmt.Sprintf("%s is %s.", s.name, s.offWord))
}

// OpenAttenuator opens the attenuator fully
func (l *Lamp) OpenAttenuator() device.Result {
	return l.guarded(l.openAttenuator)
}

func (l *Lamp) openAttenuator() device.Result {
	if res := l.send("A1xxxx"); !res.OK {
		return res
	}
	l.clock.Sleep(l.settle)
	v, res := l.number("attenuator")
	if !res.OK {
		return res
	}
	if int(v) != 100 {
		return device.Failuref(device.UnspecifiedFailure, "Failed to open attenuator to max opening, it reads %s%%.", util.FormatFloat(v))
	}
	return device.Success("Successfully opened attenuator to max opening.")
}

// SetAttenuator sets the attenuator transmission in whole percent, 0 to 100
func (l *Lamp) SetAttenuator(pct int) device.Result {
	return l.guarded(func() device.Result {
		if !percent.Check(float64(pct)) {
			return device.Failuref(device.InvalidArgument, "Invalid percentage %d, must be in %s.", pct, percent)
		}
		if res := l.send(fmt.Sprintf("A=%03dx", pct)); !res.OK {
			return res
		}
		l.clock.Sleep(l.settle)
		v, res := l.number("attenuator")
		if !res.OK {
			return res
		}
		if int(v) != pct {
			return device.Failuref(device.UnspecifiedFailure,
				"Failed to set attenuator transmission percentage to %d percent, it reads %s.", pct, util.FormatFloat(v))
		}
		return device.Successf("Successfully set attenuator transmission percentage to %d percent.", pct)
	})
}

// Attenuator reads the attenuator transmission in percent
func (l *Lamp) Attenuator() device.Result {
	if res, ok := device.Check(l.serialOpen()); !ok {
		return res
	}
	v, res := l.number("attenuator")
	if !res.OK {
		return res
	}
	return device.Measured(v, fmt.Sprintf("%s%%", util.FormatFloat(v)))
}

// SetCurrent sets the output current as a percentage of full scale.  The
// controller resolves tenths of a percent
func (l *Lamp) SetCurrent(pct float64) device.Result {
	return l.guarded(func() device.Result { return l.setCurrent(pct) })
}

func (l *Lamp) setCurrent(pct float64) device.Result {
	if math.IsNaN(pct) || !percent.Check(pct) {
		return device.Failuref(device.InvalidArgument, "Invalid percentage %s, must be in %s.", util.FormatFloat(pct), percent)
	}
	if res := l.send(fmt.Sprintf("P=%04d", int(math.Round(pct*10)))); !res.OK {
		return res
	}
	l.clock.Sleep(l.settle)
	res := l.current()
	if !res.OK {
		return res
	}
	if math.Abs(res.Value-pct) > currentTolerance {
		return device.Failuref(device.UnspecifiedFailure,
			"Failed to set output current percentage to %s percent, it reads %s.", util.FormatFloat(pct), util.FormatFloat(res.Value))
	}
	l.setpoint = pct
	return device.Successf("Successfully set output current percentage to %s percent.", util.FormatFloat(pct))
}

// Current reads the output current as a percentage of full scale
func (l *Lamp) Current() device.Result {
	if res, ok := device.Check(l.serialOpen()); !ok {
		return res
	}
	return l.current()
}

func (l *Lamp) current() device.Result {
	v, res := l.number("current")
	if !res.OK {
		return res
	}
	v /= 10
	return device.Measured(v, fmt.Sprintf("%s%%", util.FormatFloat(v)))
}

// Initialize turns cooling on, opens the attenuator, and programs the
// default current
func (l *Lamp) Initialize() device.Result {
	if res, ok := device.Check(l.serialOpen()); !ok {
		return res
	}
	l.initialized = false
	steps := []func() device.Result{
		func() device.Result { return l.set(cooling, true) },
		l.openAttenuator,
		func() device.Result { return l.setCurrent(l.setpoint) },
	}
	for _, step := range steps {
		if res := step(); !res.OK {
			return res
		}
	}
	l.initialized = true
	l.logger.Printf("sciencetech lamp on %s initialized", l.t.Port())
	return device.Success("Successfully initialized the device.")
}

// Deinitialize releases the lamp.  Cooling is left on
func (l *Lamp) Deinitialize() device.Result {
	if res, ok := device.Check(l.serialOpen()); !ok {
		return res
	}
	l.initialized = false
	return device.Success("Successfully deinitialized the device.")
}
