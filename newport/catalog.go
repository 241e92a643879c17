package newport

import (
	"fmt"
	"strings"

	"github.com/sdlab/labdev/util"
)

// Mnemonic describes one ESP command that may be sent through the
// structured raw interface
type Mnemonic struct {
	Cmd         string `json:"cmd"`
	Alias       string `json:"alias"`
	Description string `json:"description"`
	UsesAxis    bool   `json:"usesAxis"`
	IsReadOnly  bool   `json:"isReadOnly"`
}

// ESPMnemonics is the catalog of commands usable through JSONCommand
var ESPMnemonics = []Mnemonic{
	// status
	{Cmd: "TB", Alias: "err-msg", Description: "get error message", IsReadOnly: true},
	{Cmd: "TE", Alias: "err-num", Description: "get error number", IsReadOnly: true},
	{Cmd: "TP", Alias: "get-position", Description: "get position", UsesAxis: true, IsReadOnly: true},
	{Cmd: "TS", Alias: "controller-status", Description: "get controller status", IsReadOnly: true},
	{Cmd: "TV", Alias: "get-velocity", Description: "get velocity", UsesAxis: true, IsReadOnly: true},
	{Cmd: "MD", Alias: "motion-done", Description: "get motion done status, 0 while moving", UsesAxis: true, IsReadOnly: true},
	{Cmd: "VE", Alias: "controller-firmware", Description: "get controller firmware version", IsReadOnly: true},

	// motion
	{Cmd: "MO", Alias: "motor-on", Description: "enable the motor", UsesAxis: true},
	{Cmd: "MF", Alias: "motor-off", Description: "disable the motor", UsesAxis: true},
	{Cmd: "OR", Alias: "origin-search", Description: "origin searching", UsesAxis: true},
	{Cmd: "PA", Alias: "move-abs", Description: "move absolute", UsesAxis: true},
	{Cmd: "PR", Alias: "move-rel", Description: "move relative", UsesAxis: true},
	{Cmd: "ST", Alias: "stop", Description: "stop motion", UsesAxis: true},

	// trajectory and units
	{Cmd: "AC", Alias: "set-accel", Description: "set acceleration", UsesAxis: true},
	{Cmd: "AG", Alias: "set-decel", Description: "set deceleration", UsesAxis: true},
	{Cmd: "SH", Alias: "set-home", Description: "set home preset position", UsesAxis: true},
	{Cmd: "SN", Alias: "set-units", Description: "set axis displacement units", UsesAxis: true},
	{Cmd: "VA", Alias: "set-velocity", Description: "set velocity", UsesAxis: true},
	{Cmd: "VU", Alias: "set-max-speed", Description: "set maximum speed", UsesAxis: true},
}

// JSONCommand is a primitive describing a command sent as JSON.
// Cmd may either be a command (Mnemonic.Cmd) or an alias (Mnemonic.Alias).
// If Write is true, the data (F64) will be used.  If false, it is a query
type JSONCommand struct {
	Axis  int     `json:"axis"`
	Cmd   string  `json:"cmd"`
	F64   float64 `json:"f64"`
	Write bool    `json:"write"`
}

// ErrMnemonicNotFound is generated when a command or alias is not in the catalog
type ErrMnemonicNotFound struct {
	Cmd string
}

func (e ErrMnemonicNotFound) Error() string {
	return fmt.Sprintf("command or alias %s not found", e.Cmd)
}

// LookupMnemonic finds a catalog entry by command or alias, case insensitive
func LookupMnemonic(cmdOrAlias string) (Mnemonic, error) {
	for _, m := range ESPMnemonics {
		if strings.EqualFold(m.Cmd, cmdOrAlias) || strings.EqualFold(m.Alias, cmdOrAlias) {
			return m, nil
		}
	}
	return Mnemonic{}, ErrMnemonicNotFound{cmdOrAlias}
}

// Telegram renders c as wire text, e.g. {1, "move-abs", 5, true} => "1PA5"
func (c JSONCommand) Telegram() (string, error) {
	m, err := LookupMnemonic(c.Cmd)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if m.UsesAxis {
		if c.Axis < 1 {
			return "", fmt.Errorf("%s requires an axis", m.Cmd)
		}
		fmt.Fprintf(&b, "%d", c.Axis)
	}
	b.WriteString(m.Cmd)
	if m.IsReadOnly || !c.Write {
		b.WriteString("?")
	} else {
		b.WriteString(util.FormatFloat(c.F64))
	}
	return b.String(), nil
}

// Telegrams joins several commands with ';' into one line
func Telegrams(cmds []JSONCommand) (string, error) {
	parts := make([]string, 0, len(cmds))
	for _, c := range cmds {
		t, err := c.Telegram()
		if err != nil {
			return "", err
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, ";"), nil
}
