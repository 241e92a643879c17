package newport

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sdlab/labdev/comm"
)

// PS69907Sim simulates a 69907 supply behind a comm.MockTransport.  Reading
// ESR? clears it, as on the instrument.  The exported fields may be changed
// between driver calls
type PS69907Sim struct {
	*comm.MockTransport

	LampOn    bool
	PowerMode bool
	Limit     int
	ESR       byte

	// StuckOff makes START do nothing, as with a failed igniter
	StuckOff bool
}

// NewPS69907Sim returns a simulated supply, lamp off, in current mode
func NewPS69907Sim() *PS69907Sim {
	s := &PS69907Sim{Limit: 400}
	s.MockTransport = comm.NewMockTransport("mock-69907", s.respond)
	return s
}

func (s *PS69907Sim) stb() byte {
	var b byte
	if s.PowerMode {
		b |= 1 << stbPowerMode
	}
	if s.LampOn {
		b |= 1 << stbLampOn
	}
	return b
}

func (s *PS69907Sim) respond(cmd string) []string {
	switch {
	case cmd == "STB?":
		return []string{fmt.Sprintf("STB%02X", s.stb())}
	case cmd == "ESR?":
		esr := s.ESR
		s.ESR = 0
		return []string{fmt.Sprintf("ESR%02X", esr)}
	case cmd == "START":
		if !s.StuckOff {
			s.LampOn = true
		}
	case cmd == "STOP":
		s.LampOn = false
	case cmd == "MODE=0":
		s.PowerMode = true
	case cmd == "P-LIM?":
		return []string{fmt.Sprintf("%04X", s.Limit)}
	case strings.HasPrefix(cmd, "P-PRESET="):
		v, err := strconv.ParseUint(strings.TrimPrefix(cmd, "P-PRESET="), 16, 16)
		if err != nil {
			s.ESR |= 1 << 5
			return nil
		}
		s.Limit = int(v)
	default:
		s.ESR |= 1 << 5
	}
	return nil
}
