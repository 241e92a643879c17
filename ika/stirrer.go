// Package ika provides a driver for IKA C-MAG HS magnetic stirrers with
// heating, which speak the NAMUR ASCII protocol.
//
// NAMUR commands are words such as IN_PV_2 (read the hotplate temperature)
// or OUT_SP_4 300 (set the stirring speed to 300 rpm).  Reads reply with the
// value followed by the channel number, e.g. "25.3 2"; writes do not reply
package ika

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

// NAMUR channel commands
const (
	readName        = "IN_NAME"
	readPlateTemp   = "IN_PV_2"
	readSpeed       = "IN_PV_4"
	readTempSetpt   = "IN_SP_1"
	readSpeedSetpt  = "IN_SP_4"
	writeTempSetpt  = "OUT_SP_1"
	writeSpeedSetpt = "OUT_SP_4"
	startHeating    = "START_1"
	stopHeating     = "STOP_1"
	startMotor      = "START_4"
	stopMotor       = "STOP_4"
)

var (
	// TemperatureLimits bounds temperature setpoints, in Celsius
	TemperatureLimits = util.Limiter{Min: 0, Max: 500}

	// StirRateLimits bounds stirring speed setpoints, in rpm
	StirRateLimits = util.Limiter{Min: 50, Max: 1500}
)

// setpointTolerance is the largest difference between a programmed and a
// read back setpoint that counts as a match
const setpointTolerance = 0.5

// Config configures a Stirrer
type Config struct {
	// DefaultTemperature is used when no temperature is given, in Celsius.
	// Zero is a valid setpoint and is kept, so start from DefaultConfig
	DefaultTemperature float64

	// DefaultStirRate is used when no speed is given, in rpm
	DefaultStirRate float64

	// Settle is how long to wait after a new setpoint before reading it back
	Settle time.Duration

	Clock  device.Clock
	Logger *log.Logger
}

// DefaultConfig is 50 C, 200 rpm, and a 10 s settle
func DefaultConfig() Config {
	return Config{DefaultTemperature: 50, DefaultStirRate: 200, Settle: 10 * time.Second}
}

// Stirrer is an IKA hotplate stirrer.  It is not safe for concurrent use
type Stirrer struct {
	t           comm.Transport
	defaultTemp float64
	defaultRate float64
	settle      time.Duration
	clock       device.Clock
	logger      *log.Logger
	initialized bool
}

// NewStirrer returns a new Stirrer talking over t.  A zero stir rate or
// settle takes the DefaultConfig value; the temperature is used as given
func NewStirrer(t comm.Transport, cfg Config) *Stirrer {
	def := DefaultConfig()
	if cfg.DefaultStirRate == 0 {
		cfg.DefaultStirRate = def.DefaultStirRate
	}
	if cfg.Settle == 0 {
		cfg.Settle = def.Settle
	}
	if cfg.Clock == nil {
		cfg.Clock = device.SystemClock
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Stirrer{
		t:           t,
		defaultTemp: cfg.DefaultTemperature,
		defaultRate: cfg.DefaultStirRate,
		settle:      cfg.Settle,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
	}
}

// NewStirrerSerial returns a Stirrer on a serial port or terminal server with
// the NAMUR line settings, 9600 7E1 and CRLF
func NewStirrerSerial(addr string, serial bool, cfg Config) *Stirrer {
	t := comm.NewRemoteDevice(comm.Config{
		Addr:        addr,
		Serial:      serial,
		Baud:        9600,
		DataBits:    7,
		Parity:      "E",
		Timeout:     time.Second,
		Terminators: comm.NAMURTerminators,
	})
	return NewStirrer(t, cfg)
}

// Initialized reports whether Initialize succeeded
func (s *Stirrer) Initialized() bool {
	return s.initialized
}

// DefaultTemperature returns the temperature used when none is given
func (s *Stirrer) DefaultTemperature() float64 {
	return s.defaultTemp
}

// DefaultStirRate returns the stirring speed used when none is given
func (s *Stirrer) DefaultStirRate() float64 {
	return s.defaultRate
}

func (s *Stirrer) send(cmd string) device.Result {
	if err := s.t.Write([]byte(cmd)); err != nil {
		return comm.Failure(err)
	}
	return device.Result{OK: true}
}

func (s *Stirrer) query(cmd string) (string, device.Result) {
	if res := s.send(cmd); !res.OK {
		return "", res
	}
	line, err := s.t.ReadLine()
	if err != nil {
		return "", comm.Failure(err)
	}
	return line, device.Result{OK: true}
}

// value reads a channel, discarding the channel number after the value
func (s *Stirrer) value(cmd string) (float64, device.Result) {
	line, res := s.query(cmd)
	if !res.OK {
		return 0, res
	}
	f := strings.Fields(line)
	if len(f) == 0 {
		return 0, device.Failuref(device.UnspecifiedFailure, "empty reply to %s", cmd)
	}
	v, err := strconv.ParseFloat(f[0], 64)
	if err != nil {
		return 0, device.Failuref(device.UnspecifiedFailure, "could not parse %q from %s", line, cmd)
	}
	return v, res
}

// Name reads the device name
func (s *Stirrer) Name() device.Result {
	if res, ok := device.Check(device.SerialOpen(s.t)); !ok {
		return res
	}
	line, res := s.query(readName)
	if !res.OK {
		return res
	}
	return device.Success(line)
}

// Initialize identifies the stirrer, starts stirring at the default rate,
// then starts heating to the default temperature
func (s *Stirrer) Initialize() device.Result {
	if res, ok := device.Check(device.SerialOpen(s.t)); !ok {
		return res
	}
	s.initialized = false
	name := s.Name()
	if !name.OK {
		return name
	}
	steps := []string{
		fmt.Sprintf("%s %s", writeSpeedSetpt, util.FormatFloat(s.defaultRate)),
		startMotor,
	}
	for _, cmd := range steps {
		if res := s.send(cmd); !res.OK {
			return res
		}
	}
	s.clock.Sleep(s.settle)
	steps = []string{
		fmt.Sprintf("%s %s", writeTempSetpt, util.FormatFloat(s.defaultTemp)),
		startHeating,
	}
	for _, cmd := range steps {
		if res := s.send(cmd); !res.OK {
			return res
		}
	}
	s.initialized = true
	s.logger.Printf("ika stirrer %s on %s initialized", name.Message, s.t.Port())
	return device.Success("Successfully initialized hot plate.")
}

// Deinitialize stops heating and stirring
func (s *Stirrer) Deinitialize() device.Result {
	if res := s.StopHeating(); !res.OK {
		return res
	}
	if res := s.StopStirring(); !res.OK {
		return res
	}
	s.initialized = false
	return device.Success("Successfully deinitialized hot plate.")
}

// SetDefaultTemperature sets the temperature ChangeToDefaultTemperature uses.
// It does not talk to the stirrer
func (s *Stirrer) SetDefaultTemperature(temp float64) device.Result {
	if !TemperatureLimits.Check(temp) {
		return device.Failuref(device.InvalidArgument, "Invalid temperature %s, must be in %s.", util.FormatFloat(temp), TemperatureLimits)
	}
	s.defaultTemp = temp
	return device.Successf("Successfully set default temperature to %s.", util.FormatFloat(temp))
}

// SetDefaultStirRate sets the speed ChangeToDefaultStirRate uses.  It does
// not talk to the stirrer
func (s *Stirrer) SetDefaultStirRate(rate float64) device.Result {
	if !StirRateLimits.Check(rate) {
		return device.Failuref(device.InvalidArgument, "Invalid stir rate %s, must be in %s.", util.FormatFloat(rate), StirRateLimits)
	}
	s.defaultRate = rate
	return device.Successf("Successfully set default stir rate to %s.", util.FormatFloat(rate))
}

// channel groups the commands that drive one of the two outputs
type channel struct {
	noun     string
	unit     string
	limits   util.Limiter
	start    string
	write    string
	setpoint string
	actual   string
}

var (
	heater = channel{noun: "temperature", unit: "C", limits: TemperatureLimits,
		start: startHeating, write: writeTempSetpt, setpoint: readTempSetpt, actual: readPlateTemp}
	motor = channel{noun: "stir rate", unit: "rpm", limits: StirRateLimits,
		start: startMotor, write: writeSpeedSetpt, setpoint: readSpeedSetpt, actual: readSpeed}
)

// change programs a new setpoint, waits, and confirms the stirrer took it.
// The Result value is the measured temperature or speed
func (s *Stirrer) change(c channel, v float64) device.Result {
	if res, ok := device.Check(device.SerialOpen(s.t), device.Initialized(s.Initialized)); !ok {
		return res
	}
	if math.IsNaN(v) || !c.limits.Check(v) {
		return device.Failuref(device.InvalidArgument, "Invalid %s %s, must be in %s.", c.noun, util.FormatFloat(v), c.limits)
	}
	for _, cmd := range []string{c.start, fmt.Sprintf("%s %s", c.write, util.FormatFloat(v))} {
		if res := s.send(cmd); !res.OK {
			return res
		}
	}
	s.clock.Sleep(s.settle)
	sp, res := s.value(c.setpoint)
	if !res.OK {
		return res
	}
	if math.Abs(sp-v) > setpointTolerance {
		return device.Failuref(device.UnspecifiedFailure, "Failed to set %s to %s, the setpoint reads %s.",
			c.noun, util.FormatFloat(v), util.FormatFloat(sp))
	}
	pv, res := s.value(c.actual)
	if !res.OK {
		return res
	}
	return device.Measured(pv, fmt.Sprintf("Successfully set %s to %s %s, now at %s %s.",
		c.noun, util.FormatFloat(v), c.unit, util.FormatFloat(pv), c.unit))
}

// ChangeTemperature starts heating toward temp, in Celsius
func (s *Stirrer) ChangeTemperature(temp float64) device.Result {
	return s.change(heater, temp)
}

// ChangeToDefaultTemperature starts heating toward the default temperature
func (s *Stirrer) ChangeToDefaultTemperature() device.Result {
	return s.change(heater, s.defaultTemp)
}

// ChangeStirRate starts stirring at rate, in rpm
func (s *Stirrer) ChangeStirRate(rate float64) device.Result {
	return s.change(motor, rate)
}

// ChangeToDefaultStirRate starts stirring at the default rate
func (s *Stirrer) ChangeToDefaultStirRate() device.Result {
	return s.change(motor, s.defaultRate)
}

func (s *Stirrer) stop(cmd, msg string) device.Result {
	if res, ok := device.Check(device.SerialOpen(s.t)); !ok {
		return res
	}
	if res := s.send(cmd); !res.OK {
		return res
	}
	return device.Success(msg)
}

// StopStirring stops the motor
func (s *Stirrer) StopStirring() device.Result {
	return s.stop(stopMotor, "Successfully stopped stirring.")
}

// StopHeating switches the heater off
func (s *Stirrer) StopHeating() device.Result {
	return s.stop(stopHeating, "Successfully stopped heating.")
}

func (s *Stirrer) measure(cmd, unit string) device.Result {
	if res, ok := device.Check(device.SerialOpen(s.t)); !ok {
		return res
	}
	v, res := s.value(cmd)
	if !res.OK {
		return res
	}
	return device.Measured(v, fmt.Sprintf("%s %s", util.FormatFloat(v), unit))
}

// Temperature reads the hotplate temperature in Celsius
func (s *Stirrer) Temperature() device.Result {
	return s.measure(readPlateTemp, "C")
}

// StirRate reads the stirring speed in rpm
func (s *Stirrer) StirRate() device.Result {
	return s.measure(readSpeed, "rpm")
}
