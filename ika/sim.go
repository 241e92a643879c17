package ika

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sdlab/labdev/comm"
	"github.com/sdlab/labdev/util"
)

// Sim simulates a NAMUR stirrer behind a comm.MockTransport.  The measured
// values jump straight to the setpoint while the output is running
type Sim struct {
	*comm.MockTransport

	Model     string
	TempSP    float64
	SpeedSP   float64
	PlateTemp float64
	Speed     float64
	Heating   bool
	Stirring  bool

	// Ignore lists command prefixes the simulator accepts but does not act on
	Ignore []string
}

// NewSim returns an idle simulated stirrer at room temperature
func NewSim() *Sim {
	s := &Sim{Model: "C-MAG HS7", PlateTemp: 22}
	s.MockTransport = comm.NewMockTransport("mock-ika", s.respond)
	return s
}

func reading(v float64, ch int) []string {
	return []string{fmt.Sprintf("%s %d", util.FormatFloat(v), ch)}
}

func (s *Sim) track() {
	if s.Heating {
		s.PlateTemp = s.TempSP
	}
	if s.Stirring {
		s.Speed = s.SpeedSP
	} else {
		s.Speed = 0
	}
}

func (s *Sim) respond(cmd string) []string {
	for _, p := range s.Ignore {
		if strings.HasPrefix(cmd, p) {
			return nil
		}
	}
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case readName:
		return []string{s.Model}
	case readPlateTemp:
		return reading(s.PlateTemp, 2)
	case readSpeed:
		return reading(s.Speed, 4)
	case readTempSetpt:
		return reading(s.TempSP, 1)
	case readSpeedSetpt:
		return reading(s.SpeedSP, 4)
	case writeTempSetpt, writeSpeedSetpt:
		if len(fields) != 2 {
			return nil
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil
		}
		if fields[0] == writeTempSetpt {
			s.TempSP = v
		} else {
			s.SpeedSP = v
		}
	case startHeating:
		s.Heating = true
	case stopHeating:
		s.Heating = false
	case startMotor:
		s.Stirring = true
	case stopMotor:
		s.Stirring = false
	}
	s.track()
	return nil
}
