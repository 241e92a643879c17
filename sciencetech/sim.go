package sciencetech

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sdlab/labdev/comm"
)

// Sim simulates a Sciencetech controller behind a comm.MockTransport.  The
// exported fields may be changed between driver calls
type Sim struct {
	*comm.MockTransport

	// CurrentTenths is the output current in tenths of a percent
	CurrentTenths int
	Attenuator    int
	Shutter       bool
	Cooling       bool
	Arc           bool

	// Ignore lists command prefixes the simulator accepts but does not act on
	Ignore []string
}

// NewSim returns a simulated controller with the shutter closed, cooling and
// lamp off, attenuator shut and current at zero
func NewSim() *Sim {
	s := &Sim{Shutter: true}
	s.MockTransport = comm.NewMockTransport("mock-sciencetech", s.respond)
	return s
}

func bit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (s *Sim) dump() []string {
	return []string{
		"SCIENCETECH",
		"MODEL SF300",
		"FIRMWARE 2.1",
		fmt.Sprintf("CURRENT %04d", s.CurrentTenths),
		"VOLTAGE 0180",
		"POWER 0255",
		"PO 0",
		"COOL " + bit(s.Cooling),
		"LAMP " + bit(s.Arc),
		"STARTS 0042",
		"RUNTIME 0007",
		"OUTPUT " + bit(s.Arc && !s.Shutter),
		"HOURS 0311",
		"LAMP MINUTES 0018",
		"SHUTTER " + bit(s.Shutter),
		fmt.Sprintf("ATTENUATOR %03d", s.Attenuator),
		"END",
	}
}

func (s *Sim) respond(cmd string) []string {
	if cmd == "FS" {
		return s.dump()
	}
	for _, p := range s.Ignore {
		if strings.HasPrefix(cmd, p) {
			return nil
		}
	}
	switch {
	case cmd == "S1":
		s.Shutter = true
	case cmd == "S0":
		s.Shutter = false
	case cmd == "C1":
		s.Cooling = true
	case cmd == "C0":
		s.Cooling = false
	case cmd == "L1":
		s.Arc = true
	case cmd == "L0":
		s.Arc = false
	case cmd == "A1xxxx":
		s.Attenuator = 100
	case strings.HasPrefix(cmd, "A=") && strings.HasSuffix(cmd, "x"):
		if v, err := strconv.Atoi(cmd[2 : len(cmd)-1]); err == nil {
			s.Attenuator = v
		}
	case strings.HasPrefix(cmd, "P="):
		if v, err := strconv.Atoi(cmd[2:]); err == nil {
			s.CurrentTenths = v
		}
	}
	return nil
}
