package newport

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sdlab/labdev/comm"
	"github.com/sdlab/labdev/device"
	"github.com/sdlab/labdev/util"
)

const (
	// ESP301RemoteBufferSize is the number of ASCII characters that fit in the buffer on the ESP301.
	ESP301RemoteBufferSize = 80

	// errorDrainAttempts is how many times TB? is reissued to empty the
	// controller's error queue after a fault.  The queue holds ten entries
	errorDrainAttempts = 10

	errorDrainPause = 100 * time.Millisecond
)

// State is the lifecycle state of an ESP301
type State int

const (
	// Uninitialized is the state after construction or a failed initialize
	Uninitialized State = iota

	// Initializing is held for the duration of Initialize
	Initializing

	// Ready means every axis is enabled, configured, and homed
	Ready

	// Moving is held while a move is polling for completion
	Moving

	// Deinitialized means the axes were parked at zero and the device released
	Deinitialized
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Initializing:
		return "Initializing"
	case Ready:
		return "Ready"
	case Moving:
		return "Moving"
	case Deinitialized:
		return "Deinitialized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// AxisConfig holds the per-axis settings
type AxisConfig struct {
	DefaultSpeed float64 `koanf:"DefaultSpeed" yaml:"DefaultSpeed"`
	MaxSpeed     float64 `koanf:"MaxSpeed" yaml:"MaxSpeed"`
	Unit         Unit    `koanf:"Unit" yaml:"Unit"`
}

// ESP301Config configures an ESP301
type ESP301Config struct {
	// Axes maps axis number (1-based) to its settings
	Axes map[int]AxisConfig

	// PollInterval is the pause between motion-done queries
	PollInterval time.Duration

	// MaxWait bounds how long a move or home may poll.  Zero waits forever
	MaxWait time.Duration

	// Clock is used for every pause.  Nil means the wall clock
	Clock device.Clock

	// Logger receives notable transitions.  Nil means the standard logger
	Logger *log.Logger
}

// DefaultESP301Config returns three axes, two linear stages and one rotation
// stage, polled every 100 ms
func DefaultESP301Config() ESP301Config {
	return ESP301Config{
		Axes: map[int]AxisConfig{
			1: {DefaultSpeed: 10, MaxSpeed: 100, Unit: Millimeter},
			2: {DefaultSpeed: 10, MaxSpeed: 40, Unit: Millimeter},
			3: {DefaultSpeed: 10, MaxSpeed: 20, Unit: Degree},
		},
		PollInterval: 100 * time.Millisecond,
	}
}

type axisState struct {
	AxisConfig
	homed bool
}

// ESP301 is a Newport ESP301 multi-axis motion controller.
//
// Every operation returns a device.Result.  Motion operations block, polling
// the controller, until the motion is done.  An ESP301 is not safe for
// concurrent use; serialize access to it (the HTTP layer does so with a lock)
type ESP301 struct {
	t      comm.Transport
	axes   map[int]*axisState
	order  []int
	poll   time.Duration
	wait   time.Duration
	clock  device.Clock
	logger *log.Logger

	initialized bool
	state       State
}

// NewESP301 returns a new ESP301 talking over t.  The transport is borrowed;
// Connect and Disconnect open and close it if it is a comm.Opener
func NewESP301(t comm.Transport, cfg ESP301Config) *ESP301 {
	esp := &ESP301{
		t:      t,
		axes:   make(map[int]*axisState, len(cfg.Axes)),
		poll:   cfg.PollInterval,
		wait:   cfg.MaxWait,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}
	for axis, ac := range cfg.Axes {
		esp.axes[axis] = &axisState{AxisConfig: ac}
		esp.order = append(esp.order, axis)
	}
	sort.Ints(esp.order)
	if esp.clock == nil {
		esp.clock = device.SystemClock
	}
	if esp.logger == nil {
		esp.logger = log.Default()
	}
	return esp
}

// NewESP301Serial returns an ESP301 on a local serial port or terminal server
// with the controller's factory line settings
func NewESP301Serial(addr string, serial bool, cfg ESP301Config) *ESP301 {
	t := comm.NewRemoteDevice(comm.Config{
		Addr:    addr,
		Serial:  serial,
		Baud:    921600,
		Timeout: time.Second,
	})
	return NewESP301(t, cfg)
}

// Axes returns the configured axis numbers in ascending order
func (esp *ESP301) Axes() []int {
	out := make([]int, len(esp.order))
	copy(out, esp.order)
	return out
}

// Initialized reports whether Initialize completed successfully and the
// device has not been deinitialized since
func (esp *ESP301) Initialized() bool {
	return esp.initialized
}

// State returns the lifecycle state
func (esp *ESP301) State() State {
	return esp.state
}

func (esp *ESP301) validAxis(axis int) bool {
	_, ok := esp.axes[axis]
	return ok
}

func (esp *ESP301) serialOpen() device.Guard {
	return device.SerialOpen(esp.t)
}

func (esp *ESP301) isInitialized() device.Guard {
	return device.Initialized(esp.Initialized)
}

func (esp *ESP301) axisValid(axis int) device.Guard {
	return device.Axis(axis, esp.validAxis)
}

func (esp *ESP301) send(cmd string) (device.Result, bool) {
	if len(cmd) > ESP301RemoteBufferSize {
		return device.Failuref(device.InvalidArgument,
			"command %q is %d characters, the controller buffer holds %d", cmd, len(cmd), ESP301RemoteBufferSize), false
	}
	if err := esp.t.Write([]byte(cmd)); err != nil {
		return comm.Failure(err), false
	}
	return device.Result{}, true
}

// query sends cmd and reads one line.  A timeout is a ResponseTimeout failure
func (esp *ESP301) query(cmd string) (string, device.Result, bool) {
	if res, ok := esp.send(cmd); !ok {
		return "", res, false
	}
	line, err := esp.t.ReadLine()
	if err != nil {
		return "", comm.Failure(err), false
	}
	return line, device.Result{}, true
}

func signed(f float64) string {
	if f >= 0 {
		return "+" + util.FormatFloat(f)
	}
	return "-" + util.FormatFloat(math.Abs(f))
}

// Connect opens the transport if it can be opened
func (esp *ESP301) Connect() device.Result {
	if o, ok := esp.t.(comm.Opener); ok {
		if err := o.Open(); err != nil {
			return device.Failure(device.NotConnected, err.Error())
		}
	}
	if !esp.t.IsOpen() {
		return device.Failuref(device.NotConnected, "Serial port %s is not open.", esp.t.Port())
	}
	return device.Successf("Connected to %s.", esp.t.Port())
}

// Disconnect closes the transport if it can be closed.  The device must be
// initialized again afterwards
func (esp *ESP301) Disconnect() device.Result {
	esp.initialized = false
	esp.state = Uninitialized
	if o, ok := esp.t.(comm.Opener); ok {
		if err := o.Close(); err != nil {
			return device.Failure(device.UnspecifiedFailure, err.Error())
		}
	}
	return device.Successf("Disconnected from %s.", esp.t.Port())
}

// CheckError queries the error register.  On a fault it drains the
// controller's error queue, pauses, and flushes the input buffer before
// returning the fault text.  It should follow every command that changes
// controller state
func (esp *ESP301) CheckError() device.Result {
	if res, ok := device.Check(esp.serialOpen()); !ok {
		return res
	}
	return esp.checkError()
}

func (esp *ESP301) checkError() device.Result {
	resp, res, ok := esp.query("TB?")
	if !ok {
		return res
	}
	if strings.HasPrefix(resp, "0") {
		return device.Success("No errors.")
	}
	for i := 0; i < errorDrainAttempts; i++ {
		if esp.t.Write([]byte("TB?")) != nil {
			break
		}
		esp.t.ReadLine()
	}
	esp.clock.Sleep(errorDrainPause)
	esp.t.ResetInputBuffer()
	if resp == "" {
		return device.Failure(device.UnspecifiedFailure, "empty reply to TB?")
	}
	return device.Failure(device.ControllerFault, resp)
}

// ReadErrors reads every error from the controller queue, oldest first.  The
// slice may be partially filled if communication fails partway through
func (esp *ESP301) ReadErrors() ([]ControllerError, device.Result) {
	errs := []ControllerError{}
	if res, ok := device.Check(esp.serialOpen()); !ok {
		return errs, res
	}
	for i := 0; i < errorDrainAttempts; i++ {
		resp, res, ok := esp.query("TB?")
		if !ok {
			return errs, res
		}
		e, err := parseTB(resp)
		if err != nil {
			return errs, device.Failure(device.UnspecifiedFailure, err.Error())
		}
		if e.Code == 0 {
			break
		}
		errs = append(errs, e)
	}
	return errs, device.Successf("%d errors read.", len(errs))
}

// Raw sends cmd as-is (the terminator is appended) and returns the reply as
// the message.  Commands with no reply succeed with an empty message
func (esp *ESP301) Raw(cmd string) device.Result {
	if res, ok := device.Check(esp.serialOpen()); !ok {
		return res
	}
	if res, ok := esp.send(cmd); !ok {
		return res
	}
	line, err := esp.t.ReadLine()
	if err != nil && !errors.Is(err, comm.ErrTimeout) {
		return comm.Failure(err)
	}
	return device.Success(line)
}

// Initialize flushes stale errors, enables every axis, programs units, home
// reference and speeds, then homes each axis.  The first failure aborts the
// sequence and leaves the device uninitialized
func (esp *ESP301) Initialize() device.Result {
	if res, ok := device.Check(esp.serialOpen()); !ok {
		return res
	}
	esp.initialized = false
	esp.state = Initializing
	esp.logger.Printf("initializing ESP301 on %s, axes %v", esp.t.Port(), esp.order)
	for _, a := range esp.axes {
		a.homed = false
	}

	abort := func(step string, res device.Result) device.Result {
		esp.state = Uninitialized
		res.Message = step + ": " + res.Message
		esp.logger.Printf("ESP301 initialization aborted, %s", res)
		return res
	}

	// errors left over from before we were connected are not ours
	if res := esp.checkError(); !res.OK {
		if res.Kind != device.ControllerFault {
			return abort("flushing errors", res)
		}
		esp.logger.Printf("ESP301 on %s had a stale fault, cleared: %s", esp.t.Port(), res.Message)
	}
	esp.t.ResetInputBuffer()

	for _, axis := range esp.order {
		if res := esp.axisOn(axis); !res.OK {
			return abort(fmt.Sprintf("axis %d enable", axis), res)
		}
	}

	for _, axis := range esp.order {
		a := esp.axes[axis]
		cmd := fmt.Sprintf("%dSN%d;%dSH0;%dVU%s;%dVA%s",
			axis, a.Unit.Code(),
			axis,
			axis, util.FormatFloat(a.MaxSpeed),
			axis, util.FormatFloat(a.DefaultSpeed))
		if res, ok := esp.send(cmd); !ok {
			return abort(fmt.Sprintf("axis %d configure", axis), res)
		}
	}
	if res := esp.checkError(); !res.OK {
		return abort("configure", res)
	}

	for _, axis := range esp.order {
		if res := esp.home(axis); !res.OK {
			return abort(fmt.Sprintf("axis %d home", axis), res)
		}
	}

	esp.initialized = true
	esp.state = Ready
	esp.logger.Printf("ESP301 on %s initialized", esp.t.Port())
	return device.Success("Successfully initialized axes by setting units, max/current speeds, and homing. Current position set to zero.")
}

// Deinitialize moves every axis to zero at its default speed.  The first axis
// that fails stops the sequence.  If reset is true the device is marked
// uninitialized whether or not parking succeeded
func (esp *ESP301) Deinitialize(reset bool) device.Result {
	var res device.Result
	ok := true
	for _, axis := range esp.order {
		res = esp.MoveAbsolute(axis, 0)
		if !res.OK {
			res.Message = fmt.Sprintf("axis %d return to zero: %s", axis, res.Message)
			ok = false
			break
		}
	}
	if reset {
		esp.initialized = false
		for _, a := range esp.axes {
			a.homed = false
		}
		if ok {
			esp.state = Deinitialized
		} else {
			esp.state = Uninitialized
		}
	}
	if !ok {
		return res
	}
	return device.Success("Successfully deinitialized axes by moving to position zero.")
}

// Home homes one axis with OR4 and waits for all motion to stop.  An axis
// homed earlier that still reads zero is left alone
func (esp *ESP301) Home(axis int) device.Result {
	if res, ok := device.Check(esp.serialOpen(), esp.axisValid(axis)); !ok {
		return res
	}
	if esp.axes[axis].homed {
		if pos, res := esp.position(axis); res.OK && pos == 0 {
			return device.Successf("Axis %d was already homed.", axis)
		}
	}
	return esp.home(axis)
}

func (esp *ESP301) home(axis int) device.Result {
	if res, ok := esp.send(fmt.Sprintf("%dOR4", axis)); !ok {
		return res
	}
	if res := esp.waitFor(esp.anyMoving); !res.OK {
		return res
	}
	// the position register lags the motion-done flag
	esp.clock.Sleep(esp.poll)
	if res := esp.checkError(); !res.OK {
		return res
	}
	esp.axes[axis].homed = true
	return device.Successf("Successfully homed axis %d.", axis)
}

// waitFor polls moving until it reports false, or MaxWait elapses
func (esp *ESP301) waitFor(moving func() bool) device.Result {
	start := esp.clock.Now()
	for moving() {
		if esp.wait > 0 && esp.clock.Now().Sub(start) >= esp.wait {
			return device.Failuref(device.UnspecifiedFailure, "motion did not complete within %v", esp.wait)
		}
		esp.clock.Sleep(esp.poll)
	}
	return device.Result{OK: true}
}

// MoveAbsolute moves axis to position at the axis' default speed
func (esp *ESP301) MoveAbsolute(axis int, position float64) device.Result {
	return esp.move(axis, position, nil, "PA")
}

// MoveSpeedAbsolute moves axis to position at speed
func (esp *ESP301) MoveSpeedAbsolute(axis int, position, speed float64) device.Result {
	return esp.move(axis, position, &speed, "PA")
}

// MoveRelative moves axis by distance at the axis' default speed
func (esp *ESP301) MoveRelative(axis int, distance float64) device.Result {
	return esp.move(axis, distance, nil, "PR")
}

// MoveSpeedRelative moves axis by distance at speed
func (esp *ESP301) MoveSpeedRelative(axis int, distance, speed float64) device.Result {
	return esp.move(axis, distance, &speed, "PR")
}

func (esp *ESP301) move(axis int, x float64, speed *float64, mnemonic string) device.Result {
	if res, ok := device.Check(esp.serialOpen(), esp.isInitialized(), esp.axisValid(axis)); !ok {
		return res
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return device.Failuref(device.InvalidArgument, "%v is not a finite position", x)
	}
	a := esp.axes[axis]
	v := a.DefaultSpeed
	if speed != nil {
		v = *speed
	}
	if !(v > 0 && v <= a.MaxSpeed) {
		return device.Failuref(device.InvalidSpeed, "Speed %s is out of bounds (0, %s].",
			util.FormatFloat(v), util.FormatFloat(a.MaxSpeed))
	}

	if res, ok := esp.send(fmt.Sprintf("%dVA%s", axis, util.FormatFloat(v))); !ok {
		return res
	}
	if res := esp.checkError(); !res.OK {
		return res
	}
	if res, ok := esp.send(fmt.Sprintf("%d%s%s", axis, mnemonic, signed(x))); !ok {
		return res
	}
	esp.state = Moving
	res := esp.waitFor(func() bool { return esp.moving(axis) })
	esp.state = Ready
	if !res.OK {
		return res
	}
	if res := esp.checkError(); !res.OK {
		return res
	}
	if mnemonic == "PR" {
		return device.Successf("Successfully completed relative move by %s.", util.FormatFloat(x))
	}
	return device.Successf("Successfully completed absolute move at %s.", util.FormatFloat(x))
}

// moving reports whether MD? says motion is not done.  "0" means still moving;
// anything else, including silence, means stopped
func (esp *ESP301) moving(axis int) bool {
	resp, _, ok := esp.query(fmt.Sprintf("%dMD?", axis))
	return ok && resp == "0"
}

func (esp *ESP301) anyMoving() bool {
	for _, axis := range esp.order {
		if esp.moving(axis) {
			return true
		}
	}
	return false
}

// IsMoving reports whether axis is in motion.  The Result is a guard failure
// if the query could not be made
func (esp *ESP301) IsMoving(axis int) (bool, device.Result) {
	if res, ok := device.Check(esp.serialOpen(), esp.axisValid(axis)); !ok {
		return false, res
	}
	m := esp.moving(axis)
	return m, device.Successf("Axis %d moving: %t", axis, m)
}

// IsAnyMoving reports whether any configured axis is in motion
func (esp *ESP301) IsAnyMoving() (bool, device.Result) {
	if res, ok := device.Check(esp.serialOpen()); !ok {
		return false, res
	}
	m := esp.anyMoving()
	return m, device.Successf("Any axis moving: %t", m)
}

// AxisOn enables the motor of axis.  An axis already on is left alone
func (esp *ESP301) AxisOn(axis int) device.Result {
	if res, ok := device.Check(esp.serialOpen(), esp.axisValid(axis)); !ok {
		return res
	}
	return esp.axisOn(axis)
}

func (esp *ESP301) axisOn(axis int) device.Result {
	if resp, _, ok := esp.query(fmt.Sprintf("%dMO?", axis)); ok && resp == "1" {
		return device.Successf("Axis %d motor was already ON.", axis)
	}
	if res, ok := esp.send(fmt.Sprintf("%dMO", axis)); !ok {
		return res
	}
	if res := esp.checkError(); !res.OK {
		return res
	}
	if resp, _, ok := esp.query(fmt.Sprintf("%dMO?", axis)); !ok || resp != "1" {
		return device.Failuref(device.UnspecifiedFailure, "Axis %d motor failed to turn ON.", axis)
	}
	return device.Successf("Axis %d motor successfully turned ON.", axis)
}

// AxisOff disables the motor of axis.  An axis already off is left alone
func (esp *ESP301) AxisOff(axis int) device.Result {
	if res, ok := device.Check(esp.serialOpen(), esp.axisValid(axis)); !ok {
		return res
	}
	if resp, _, ok := esp.query(fmt.Sprintf("%dMF?", axis)); ok && resp == "0" {
		return device.Successf("Axis %d motor was already OFF.", axis)
	}
	if res, ok := esp.send(fmt.Sprintf("%dMF", axis)); !ok {
		return res
	}
	if res := esp.checkError(); !res.OK {
		return res
	}
	if resp, _, ok := esp.query(fmt.Sprintf("%dMF?", axis)); !ok || resp != "0" {
		return device.Failuref(device.UnspecifiedFailure, "Axis %d motor failed to turn OFF.", axis)
	}
	esp.axes[axis].homed = false
	return device.Successf("Axis %d motor successfully turned OFF.", axis)
}

// AxisEnabled reports whether the motor of axis is on.  The value is 1 when
// it is and 0 when it is not
func (esp *ESP301) AxisEnabled(axis int) device.Result {
	if res, ok := device.Check(esp.serialOpen(), esp.axisValid(axis)); !ok {
		return res
	}
	resp, res, ok := esp.query(fmt.Sprintf("%dMO?", axis))
	if !ok {
		return res
	}
	if resp == "1" {
		return device.Measured(1, fmt.Sprintf("Axis %d motor is ON.", axis))
	}
	return device.Measured(0, fmt.Sprintf("Axis %d motor is OFF.", axis))
}

// Position returns the position of axis in its current unit as the Result value
func (esp *ESP301) Position(axis int) device.Result {
	if res, ok := device.Check(esp.serialOpen(), esp.axisValid(axis)); !ok {
		return res
	}
	pos, res := esp.position(axis)
	if !res.OK {
		return res
	}
	return device.Measured(pos, fmt.Sprintf("Axis %d is at %s %s.", axis, util.FormatFloat(pos), esp.axes[axis].Unit))
}

func (esp *ESP301) position(axis int) (float64, device.Result) {
	resp, res, ok := esp.query(fmt.Sprintf("%dTP", axis))
	if !ok {
		return 0, res
	}
	pos, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, device.Failuref(device.UnspecifiedFailure, "could not parse position %q from axis %d", resp, axis)
	}
	return pos, device.Result{OK: true}
}

// AxisUnit queries the unit axis is programmed in.  The message is the unit
// name and the value its controller code
func (esp *ESP301) AxisUnit(axis int) device.Result {
	if res, ok := device.Check(esp.serialOpen(), esp.isInitialized(), esp.axisValid(axis)); !ok {
		return res
	}
	u, res := esp.axisUnit(axis)
	if !res.OK {
		return res
	}
	return device.Measured(float64(u.Code()), u.String())
}

func (esp *ESP301) axisUnit(axis int) (Unit, device.Result) {
	resp, res, ok := esp.query(fmt.Sprintf("%dSN?", axis))
	if !ok {
		return 0, res
	}
	code, err := strconv.Atoi(resp)
	if err != nil {
		return 0, device.Failuref(device.UnspecifiedFailure, "could not parse unit code %q from axis %d", resp, axis)
	}
	u, err := UnitFromCode(code)
	if err != nil {
		return 0, device.Failure(device.UnspecifiedFailure, err.Error())
	}
	if res := esp.checkError(); !res.OK {
		return 0, res
	}
	esp.axes[axis].Unit = u
	return u, device.Result{OK: true}
}

// ChangeAxisUnit programs axis to unit, any name ParseUnit accepts.  Nothing
// is sent if the axis already uses that unit
func (esp *ESP301) ChangeAxisUnit(axis int, unit string) device.Result {
	if res, ok := device.Check(esp.serialOpen(), esp.isInitialized(), esp.axisValid(axis)); !ok {
		return res
	}
	u, err := ParseUnit(unit)
	if err != nil {
		return device.Failuref(device.InvalidArgument, "%s is not a valid unit type.", unit)
	}
	cur, res := esp.axisUnit(axis)
	if !res.OK {
		return res
	}
	if cur == u {
		return device.Successf("Axis %d was already set to unit: %q", axis, u.String())
	}
	if res, ok := esp.send(fmt.Sprintf("%dSN%d", axis, u.Code())); !ok {
		return res
	}
	if res := esp.checkError(); !res.OK {
		return res
	}
	esp.axes[axis].Unit = u
	return device.Successf("Successfully set axis %d unit to %s.", axis, u)
}

// ChangeAxisToDegrees programs axis in degrees
func (esp *ESP301) ChangeAxisToDegrees(axis int) device.Result {
	return esp.ChangeAxisUnit(axis, Degree.String())
}

// ChangeAxisToMillimeters programs axis in millimeters
func (esp *ESP301) ChangeAxisToMillimeters(axis int) device.Result {
	return esp.ChangeAxisUnit(axis, Millimeter.String())
}

// SetAxisDefaultSpeed sets the speed used by moves that do not name one.
// It does not talk to the controller
func (esp *ESP301) SetAxisDefaultSpeed(axis int, speed float64) device.Result {
	if res, ok := device.Check(esp.axisValid(axis)); !ok {
		return res
	}
	a := esp.axes[axis]
	if !(speed > 0 && speed <= a.MaxSpeed) {
		return device.Failuref(device.InvalidSpeed, "Speed %s is out of bounds (0, %s].",
			util.FormatFloat(speed), util.FormatFloat(a.MaxSpeed))
	}
	a.DefaultSpeed = speed
	return device.Successf("Successfully set default speed for axis %d to %s %s/s.", axis, util.FormatFloat(speed), a.Unit)
}

// AxisDefaultSpeed returns the default speed of axis as the Result value
func (esp *ESP301) AxisDefaultSpeed(axis int) device.Result {
	if res, ok := device.Check(esp.axisValid(axis)); !ok {
		return res
	}
	a := esp.axes[axis]
	return device.Measured(a.DefaultSpeed, fmt.Sprintf("%s %s/s", util.FormatFloat(a.DefaultSpeed), a.Unit))
}

// AxisMaxSpeed returns the maximum speed of axis as the Result value
func (esp *ESP301) AxisMaxSpeed(axis int) device.Result {
	if res, ok := device.Check(esp.axisValid(axis)); !ok {
		return res
	}
	a := esp.axes[axis]
	return device.Measured(a.MaxSpeed, fmt.Sprintf("%s %s/s", util.FormatFloat(a.MaxSpeed), a.Unit))
}
