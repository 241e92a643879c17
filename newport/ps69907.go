package newport

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

// status byte (STB?) bits
const (
	stbPowerMode = 5
	stbLampOn    = 7
)

// event status register (ESR?) bits and what they mean
var esrBits = []struct {
	bit  uint
	text string
}{
	{7, "Power on event"},
	{5, "Command Error"},
	{4, "Execution Error"},
	{3, "Device Dependent Error"},
	{2, "Query Error"},
}

// PS69907Config configures a 69907 arc lamp power supply
type PS69907Config struct {
	// DefaultLimit is the power limit in watts
	DefaultLimit float64

	// Limits bounds what SetPowerLimit accepts
	Limits util.Limiter

	Logger *log.Logger
}

// DefaultPS69907Config is a 440 W limit settable between 320 and 440 W
func DefaultPS69907Config() PS69907Config {
	return PS69907Config{DefaultLimit: 440, Limits: util.Limiter{Min: 320, Max: 440}}
}

// PS69907 is a Newport (Oriel) 69907 arc lamp power supply operated in
// constant power mode
type PS69907 struct {
	t           comm.Transport
	limit       float64
	limits      util.Limiter
	logger      *log.Logger
	initialized bool
}

// NewPS69907 returns a new power supply talking over t
func NewPS69907(t comm.Transport, cfg PS69907Config) *PS69907 {
	if cfg.Limits == (util.Limiter{}) {
		cfg.Limits = DefaultPS69907Config().Limits
	}
	if cfg.DefaultLimit == 0 {
		cfg.DefaultLimit = cfg.Limits.Max
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &PS69907{t: t, limit: cfg.DefaultLimit, limits: cfg.Limits, logger: cfg.Logger}
}

// NewPS69907Serial returns a supply on a serial port at 9600 8N1
func NewPS69907Serial(addr string, serial bool, cfg PS69907Config) *PS69907 {
	t := comm.NewRemoteDevice(comm.Config{Addr: addr, Serial: serial, Baud: 9600, Timeout: time.Second})
	return NewPS69907(t, cfg)
}

// Initialized reports whether Initialize succeeded
func (ps *PS69907) Initialized() bool {
	return ps.initialized
}

// DefaultLimit returns the power limit Initialize leaves programmed, in watts
func (ps *PS69907) DefaultLimit() float64 {
	return ps.limit
}

func (ps *PS69907) query(cmd string) (string, device.Result, bool) {
	if err := ps.t.Write([]byte(cmd)); err != nil {
		return "", comm.Failure(err), false
	}
	line, err := ps.t.ReadLine()
	if err != nil {
		return "", comm.Failure(err), false
	}
	return line, device.Result{}, true
}

// register reads a query whose reply ends in two hex digits, like "STB1D"
func (ps *PS69907) register(cmd string) (byte, device.Result) {
	resp, res, ok := ps.query(cmd)
	if !ok {
		return 0, res
	}
	if len(resp) < 2 {
		return 0, device.Failuref(device.UnspecifiedFailure, "short reply %q to %s", resp, cmd)
	}
	v, err := strconv.ParseUint(resp[len(resp)-2:], 16, 8)
	if err != nil {
		return 0, device.Failuref(device.UnspecifiedFailure, "could not parse %q from %s as hex", resp, cmd)
	}
	return byte(v), device.Result{OK: true}
}

// Status reads the status byte; it is the Result value
func (ps *PS69907) Status() device.Result {
	if res, ok := device.Check(device.SerialOpen(ps.t)); !ok {
		return res
	}
	stb, res := ps.register("STB?")
	if !res.OK {
		return res
	}
	return device.Measured(float64(stb), fmt.Sprintf("STB %02X, lamp on: %t", stb, util.GetBit(stb, stbLampOn)))
}

// LampOn reports whether the lamp is lit.  The value is 1 when it is
func (ps *PS69907) LampOn() device.Result {
	if res, ok := device.Check(device.SerialOpen(ps.t)); !ok {
		return res
	}
	stb, res := ps.register("STB?")
	if !res.OK {
		return res
	}
	if util.GetBit(stb, stbLampOn) {
		return device.Measured(1, "Lamp is on.")
	}
	return device.Measured(0, "Lamp is off.")
}

// CheckError reads the event status register and fails naming every fault
// bit that is set
func (ps *PS69907) CheckError() device.Result {
	if res, ok := device.Check(device.SerialOpen(ps.t)); !ok {
		return res
	}
	esr, res := ps.register("ESR?")
	if !res.OK {
		return res
	}
	var faults []string
	for _, b := range esrBits {
		if util.GetBit(esr, b.bit) {
			faults = append(faults, b.text)
		}
	}
	if len(faults) > 0 {
		return device.Failure(device.ControllerFault, strings.Join(faults, "; "))
	}
	return device.Success("No errors.")
}

// Initialize turns the lamp off, selects power mode, and programs the default limit
func (ps *PS69907) Initialize() device.Result {
	ps.initialized = false
	steps := []func() device.Result{ps.Status, ps.turnOff, ps.PowerMode, func() device.Result {
		return ps.setPowerLimit(ps.limit)
	}}
	for _, step := range steps {
		if res := step(); !res.OK {
			return res
		}
	}
	ps.initialized = true
	return device.Success("Successfully initialized the device.")
}

// Deinitialize turns the lamp off
func (ps *PS69907) Deinitialize() device.Result {
	if res := ps.Status(); !res.OK {
		return res
	}
	if res := ps.turnOff(); !res.OK {
		return res
	}
	ps.initialized = false
	return device.Success("Successfully deinitialized the device.")
}

// TurnOn starts the lamp.  A lamp already lit is left alone
func (ps *PS69907) TurnOn() device.Result {
	if res, ok := device.Check(device.SerialOpen(ps.t), device.Initialized(ps.Initialized)); !ok {
		return res
	}
	return ps.switchLamp(true)
}

// TurnOff stops the lamp.  A lamp already off is left alone
func (ps *PS69907) TurnOff() device.Result {
	if res, ok := device.Check(device.SerialOpen(ps.t), device.Initialized(ps.Initialized)); !ok {
		return res
	}
	return ps.turnOff()
}

func (ps *PS69907) turnOff() device.Result {
	return ps.switchLamp(false)
}

func (ps *PS69907) switchLamp(on bool) device.Result {
	word, cmd := "off", "STOP"
	if on {
		word, cmd = "on", "START"
	}
	stb, res := ps.register("STB?")
	if !res.OK {
		return res
	}
	if util.GetBit(stb, stbLampOn) == on {
		return device.Successf("Lamp was already %s.", word)
	}
	if err := ps.t.Write([]byte(cmd)); err != nil {
		return comm.Failure(err)
	}
	if stb, res = ps.register("STB?"); !res.OK {
		return res
	}
	if res = ps.CheckError(); !res.OK {
		return res
	}
	if util.GetBit(stb, stbLampOn) != on {
		return device.Failuref(device.UnspecifiedFailure, "Failed to turn lamp %s.", word)
	}
	ps.logger.Printf("arc lamp on %s turned %s", ps.t.Port(), word)
	return device.Successf("Lamp successfully turned %s.", word)
}

// PowerMode puts the supply in constant power mode
func (ps *PS69907) PowerMode() device.Result {
	if res, ok := device.Check(device.SerialOpen(ps.t)); !ok {
		return res
	}
	if err := ps.t.Write([]byte("MODE=0")); err != nil {
		return comm.Failure(err)
	}
	stb, res := ps.register("STB?")
	if !res.OK {
		return res
	}
	if res = ps.CheckError(); !res.OK {
		return res
	}
	if !util.GetBit(stb, stbPowerMode) {
		return device.Failure(device.UnspecifiedFailure, "Failed to select power mode.")
	}
	return device.Success("Lamp is in power mode.")
}

// PowerLimit reads the programmed power limit in watts
func (ps *PS69907) PowerLimit() device.Result {
	if res, ok := device.Check(device.SerialOpen(ps.t)); !ok {
		return res
	}
	return ps.powerLimit()
}

func (ps *PS69907) powerLimit() device.Result {
	resp, res, ok := ps.query("P-LIM?")
	if !ok {
		return res
	}
	v, err := strconv.ParseUint(strings.TrimSpace(resp), 16, 16)
	if err != nil {
		return device.Failuref(device.UnspecifiedFailure, "could not parse power limit %q as hex", resp)
	}
	return device.Measured(float64(v), fmt.Sprintf("%d W", v))
}

// SetPowerLimit programs the power limit in watts and confirms it by reading
// it back.  It becomes the default for later initializations
func (ps *PS69907) SetPowerLimit(watts float64) device.Result {
	if res, ok := device.Check(device.SerialOpen(ps.t), device.Initialized(ps.Initialized)); !ok {
		return res
	}
	return ps.setPowerLimit(watts)
}

func (ps *PS69907) setPowerLimit(watts float64) device.Result {
	if !ps.limits.Check(watts) {
		return device.Failuref(device.InvalidArgument, "power limit %s W is outside %s", util.FormatFloat(watts), ps.limits)
	}
	w := int(math.Round(watts))
	if err := ps.t.Write([]byte(fmt.Sprintf("P-PRESET=%04X", w))); err != nil {
		return comm.Failure(err)
	}
	if res := ps.CheckError(); !res.OK {
		return res
	}
	res := ps.powerLimit()
	if !res.OK {
		return res
	}
	if int(res.Value) != w {
		return device.Failuref(device.UnspecifiedFailure, "power limit reads %v W after setting %d W", res.Value, w)
	}
	ps.limit = watts
	return device.Successf("Successfully set the power limit to %d W.", w)
}
