package newport

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/sdlab/labdev/comm"
	"github.com/sdlab/labdev/util"
)

type mockAxis struct {
	on         bool
	failEnable bool
	unit       int
	vel        float64
	maxVel     float64
	pos        float64
	target     float64
	remaining  int
}

// MockESP301 simulates an ESP301 at the protocol level.  It satisfies
// comm.Transport and comm.Opener, so an ESP301 can drive it exactly as it
// drives hardware.
//
// Motion is not timed; a move completes after MotionPolls motion-done
// queries have answered "0"
type MockESP301 struct {
	// MotionPolls is the number of MD? queries that report "still moving"
	// after each move or home
	MotionPolls int

	mu      sync.Mutex
	open    bool
	axes    map[int]*mockAxis
	errs    []int
	silent  map[string]bool
	pending []string
	writes  []string
	resets  int
	clock   int
}

// NewMockESP301 returns an open simulator with the given axes present, every
// motor off and in millimeters
func NewMockESP301(axes ...int) *MockESP301 {
	m := &MockESP301{
		open:   true,
		axes:   make(map[int]*mockAxis),
		silent: make(map[string]bool),
	}
	for _, a := range axes {
		m.axes[a] = &mockAxis{unit: Millimeter.Code()}
	}
	return m
}

// Open marks the simulator open
func (m *MockESP301) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	return nil
}

// Close marks the simulator closed
func (m *MockESP301) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

// IsOpen returns the open flag
func (m *MockESP301) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Port names the simulator
func (m *MockESP301) Port() string {
	return "mock-esp301"
}

// Write executes one line of ;-separated commands
func (m *MockESP301) Write(b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return comm.ErrNotConnected
	}
	line := string(b)
	m.writes = append(m.writes, line)
	for _, cmd := range strings.Split(line, ";") {
		m.exec(strings.TrimSpace(cmd))
	}
	return nil
}

// ReadLine pops the oldest reply, or times out
func (m *MockESP301) ReadLine() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return "", comm.ErrNotConnected
	}
	if len(m.pending) == 0 {
		return "", comm.ErrTimeout
	}
	s := m.pending[0]
	m.pending = m.pending[1:]
	return s, nil
}

// ResetInputBuffer drops unread replies
func (m *MockESP301) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	m.resets++
	return nil
}

// Silence stops the simulator replying to queries of mnemonic (e.g. "TB",
// "MD"), which the driver sees as read timeouts.  Commands still take effect
func (m *MockESP301) Silence(mnemonic string, silent bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.silent[mnemonic] = silent
}

// PushError appends code to the error queue
func (m *MockESP301) PushError(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, code)
}

// FailEnable makes MO on axis raise an amplifier fault instead of enabling it
func (m *MockESP301) FailEnable(axis int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.axes[axis]; ok {
		a.failEnable = true
	}
}

// SetMotor forces the motor state of axis
func (m *MockESP301) SetMotor(axis int, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.axes[axis]; ok {
		a.on = on
	}
}

// MotorOn returns the motor state of axis
func (m *MockESP301) MotorOn(axis int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.axes[axis]
	return ok && a.on
}

// AxisPosition returns the simulated position of axis
func (m *MockESP301) AxisPosition(axis int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.axes[axis]; ok {
		return a.pos
	}
	return 0
}

// AxisVelocity returns the programmed velocity of axis
func (m *MockESP301) AxisVelocity(axis int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.axes[axis]; ok {
		return a.vel
	}
	return 0
}

// AxisUnitCode returns the programmed unit code of axis
func (m *MockESP301) AxisUnitCode(axis int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.axes[axis]; ok {
		return a.unit
	}
	return -1
}

// Writes returns a copy of every line written
func (m *MockESP301) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.writes))
	copy(out, m.writes)
	return out
}

// ClearWrites forgets the recorded writes
func (m *MockESP301) ClearWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
}

// Resets returns the number of input buffer resets
func (m *MockESP301) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// Axes returns the simulated axis numbers in ascending order
func (m *MockESP301) Axes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, len(m.axes))
	for a := range m.axes {
		out = append(out, a)
	}
	sort.Ints(out)
	return out
}

func (m *MockESP301) reply(mnemonic, s string) {
	if m.silent[mnemonic] {
		return
	}
	m.pending = append(m.pending, s)
}

func (m *MockESP301) axisError(axis, code int) {
	m.errs = append(m.errs, axis*100+code)
}

// exec runs one command of the form [axis]MN[arg]
func (m *MockESP301) exec(cmd string) {
	if cmd == "" {
		return
	}
	i := strings.IndexFunc(cmd, func(r rune) bool { return !unicode.IsDigit(r) })
	if i < 0 || len(cmd) < i+2 {
		m.errs = append(m.errs, 6)
		return
	}
	axis := 0
	if i > 0 {
		axis, _ = strconv.Atoi(cmd[:i])
	}
	mnemonic := strings.ToUpper(cmd[i : i+2])
	arg := cmd[i+2:]
	query := arg == "?"

	if mnemonic == "TB" {
		m.clock++
		if len(m.errs) == 0 {
			m.reply(mnemonic, fmt.Sprintf("0, %d, %s", m.clock, DescribeError(0)))
			return
		}
		code := m.errs[0]
		m.errs = m.errs[1:]
		m.reply(mnemonic, fmt.Sprintf("%d, %d, %s", code, m.clock, DescribeError(code)))
		return
	}

	if axis == 0 {
		m.errs = append(m.errs, 37)
		return
	}
	a, ok := m.axes[axis]
	if !ok {
		m.errs = append(m.errs, 9)
		return
	}

	switch mnemonic {
	case "MO":
		if query {
			m.reply(mnemonic, boolReply(a.on))
			return
		}
		if a.failEnable {
			m.axisError(axis, 2)
			return
		}
		a.on = true
	case "MF":
		if query {
			m.reply(mnemonic, boolReply(a.on))
			return
		}
		a.on = false
		a.remaining = 0
		a.target = a.pos
	case "MD":
		if a.remaining > 0 {
			a.remaining--
			if a.remaining == 0 {
				a.pos = a.target
			}
			m.reply(mnemonic, "0")
			return
		}
		m.reply(mnemonic, "1")
	case "TP":
		m.reply(mnemonic, util.FormatFloat(a.pos))
	case "SN":
		if query {
			m.reply(mnemonic, strconv.Itoa(a.unit))
			return
		}
		u, err := strconv.Atoi(arg)
		if err != nil || u < 0 || u > int(Microradian) {
			m.axisError(axis, 1)
			return
		}
		a.unit = u
	case "SH":
	case "VU":
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil || v <= 0 {
			m.axisError(axis, 1)
			return
		}
		a.maxVel = v
	case "VA":
		if query {
			m.reply(mnemonic, util.FormatFloat(a.vel))
			return
		}
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil || v <= 0 {
			m.axisError(axis, 1)
			return
		}
		if a.maxVel > 0 && v > a.maxVel {
			m.axisError(axis, 10)
			return
		}
		a.vel = v
	case "PA", "PR", "OR":
		if !a.on {
			m.axisError(axis, 13)
			return
		}
		var target float64
		switch mnemonic {
		case "OR":
			target = 0
		default:
			x, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				m.axisError(axis, 1)
				return
			}
			target = x
			if mnemonic == "PR" {
				target = a.pos + x
			}
		}
		a.target = target
		a.remaining = m.MotionPolls
		if a.remaining == 0 {
			a.pos = target
		}
	default:
		m.errs = append(m.errs, 6)
	}
}

func boolReply(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
