package newport

import (
	"fmt"
	"strconv"
	"strings"
)

var (
	// ESPErrorCodesWithoutAxes maps error codes to error strings when the errors
	// are not axis specific
	ESPErrorCodesWithoutAxes = map[int]string{
		0:  "NO ERROR DETECTED",
		4:  "EMERGENCY STOP ACTIVATED",
		6:  "COMMAND DOES NOT EXIST",
		7:  "PARAMETER OUT OF RANGE",
		8:  "CABLE INTERLOCK ERROR",
		9:  "AXIS NUMBER OUT OF RANGE",
		13: "GROUP NUMBER MISSING",
		14: "GROUP NUMBER OUT OF RANGE",
		15: "GROUP NUMBER NOT ASSIGNED",
		16: "GROUP NUMBER ALREADY ASSIGNED",
		17: "GROUP AXIS OUT OF RANGE",
		18: "GROUP AXIS ALREADY ASSIGNED",
		19: "GROUP AXIS DUPLICATED",
		20: "DATA ACQUISITION IS BUSY",
		21: "DATA ACQUISITION SETUP ERROR",
		22: "DATA ACQUISITION NOT ENABLED",
		23: "SERVO CYCLE (400μS) TICK FAILURE",
		25: "DOWNLOAD IN PROGRESS",
		26: "STORED PROGRAM NOT STARTED",
		27: "COMMAND NOT ALLOWED",
		28: "STORED PROGRAM FLASH AREA FULL",
		29: "GROUP PARAMETER MISSING",
		30: "GROUP PARAMETER OUT OF RANGE",
		31: "GROUP MAXIMUM VELOCITY EXCEEDED",
		32: "GROUP MAXIMUM ACCELERATION EXCEEDED",
		33: "GROUP MAXIMUM DECELERATION EXCEEDED",
		34: "GROUP MOVE NOT ALLOWED DURING MOTION",
		35: "PROGRAM NOT FOUND",
		37: "AXIS NUMBER MISSING",
		38: "COMMAND PARAMETER MISSING",
		40: "LAST COMMAND CANNOT BE REPEATED",
		41: "MAX NUMBER OF LABELS PER PROGRAM EXCEEDED",
	}

	// ESPErrorCodesWithAxes maps the final two digits of an axis-specific
	// error code to a string.  The axis number is excluded from the key.
	ESPErrorCodesWithAxes = map[int]string{
		0:  "MOTOR TYPE NOT DEFINED",
		1:  "PARAMETER OUT OF RANGE",
		2:  "AMPLIFIER FAULT DETECTED",
		3:  "FOLLOWING ERROR THRESHOLD EXCEEDED",
		4:  "POSITIVE HARDWARE LIMIT REACHED",
		5:  "NEGATIVE HARDWARE LIMIT REACHED",
		6:  "POSITIVE SOFTWARE LIMIT REACHED",
		7:  "NEGATIVE SOFTWARE LIMIT REACHED",
		8:  "MOTOR / STAGE NOT CONNECTED",
		9:  "FEEDBACK SIGNAL FAULT DETECTED",
		10: "MAXIMUM VELOCITY EXCEEDED",
		11: "MAXIMUM ACCELERATION EXCEEDED",
		13: "MOTOR NOT ENABLED",
		15: "MAXIMUM JERK EXCEEDED",
		16: "MAXIMUM DAC OFFSET EXCEEDED",
		17: "ESP CRITICAL SETTINGS ARE PROTECTED",
		18: "ESP STAGE DEVICE ERROR",
		19: "ESP STAGE DATA INVALID",
		20: "HOMING ABORTED",
		21: "MOTOR CURRENT NOT DEFINED",
		22: "UNIDRIVE COMMUNICATIONS ERROR",
		23: "UNIDRIVE NOT DETECTED",
		24: "SPEED OUT OF RANGE",
		25: "INVALID TRAJECTORY MASTER AXIS",
		26: "PARAMETER CHARGE NOT ALLOWED",
		28: "INVALID ENCODER STEP RATIO",
		29: "DIGITAL I/O INTERLOCK DETECTED",
		30: "COMMAND NOT ALLOWED DURING HOMING",
		31: "COMMAND NOT ALLOWED DUE TO GROUP ASSIGNMENT",
		32: "INVALID TRAJECTORY MODE FOR MOVING",
	}
)

// DescribeError converts an ESP error code to text.  Codes of three or more
// digits carry the axis number in front of the last two digits
func DescribeError(code int) string {
	if code >= 100 {
		axis, c := code/100, code%100
		s, ok := ESPErrorCodesWithAxes[c]
		if !ok {
			s = fmt.Sprintf("UNKNOWN AXIS ERROR %d", c)
		}
		return fmt.Sprintf("AXIS %d %s", axis, s)
	}
	s, ok := ESPErrorCodesWithoutAxes[code]
	if !ok {
		return fmt.Sprintf("UNKNOWN ERROR %d", code)
	}
	return s
}

// ControllerError is one entry of the controller's error queue, the reply to TB?
type ControllerError struct {
	Code      int    `json:"code"`
	Timestamp int    `json:"timestamp"`
	Text      string `json:"text"`
}

func (e ControllerError) String() string {
	return DescribeError(e.Code)
}

// parseTB parses a TB? reply of the form "code, timestamp, message".
// Older firmware sends only the code
func parseTB(resp string) (ControllerError, error) {
	pieces := strings.Split(resp, ",")
	for i := range pieces {
		pieces[i] = strings.TrimSpace(pieces[i])
	}
	code, err := strconv.Atoi(pieces[0])
	if err != nil {
		return ControllerError{}, fmt.Errorf("expected an integer error code from TB?, got %q", resp)
	}
	e := ControllerError{Code: code, Text: DescribeError(code)}
	if len(pieces) >= 2 {
		e.Timestamp, _ = strconv.Atoi(pieces[1])
	}
	if len(pieces) >= 3 && pieces[2] != "" {
		e.Text = strings.Join(pieces[2:], ",")
	}
	return e, nil
}
