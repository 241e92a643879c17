package comm

import (
	"strings"

	pkgerrors "github.com/pkg/errors"
	tarm "github.com/tarm/serial"
	bugst "go.bug.st/serial"
)

const (
	// BackendTarm selects github.com/tarm/serial
	BackendTarm = "tarm"

	// BackendBugst selects go.bug.st/serial
	BackendBugst = "bugst"
)

func openSerial(cfg Config) (conn, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendTarm:
		return openTarm(cfg)
	case BackendBugst:
		return openBugst(cfg)
	default:
		return nil, pkgerrors.Wrap(ErrUnknownBackend, cfg.Backend)
	}
}

type tarmConn struct {
	*tarm.Port
}

func (c tarmConn) resetInput() error {
	return c.Flush()
}

func openTarm(cfg Config) (conn, error) {
	parity := tarm.ParityNone
	switch strings.ToUpper(cfg.Parity) {
	case "E":
		parity = tarm.ParityEven
	case "O":
		parity = tarm.ParityOdd
	}
	p, err := tarm.OpenPort(&tarm.Config{
		Name:        cfg.Addr,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.Timeout,
		Size:        byte(cfg.DataBits),
		Parity:      parity,
		StopBits:    tarm.Stop1,
	})
	if err != nil {
		return nil, err
	}
	return tarmConn{p}, nil
}

type bugstConn struct {
	bugst.Port
}

func (c bugstConn) resetInput() error {
	return c.ResetInputBuffer()
}

func openBugst(cfg Config) (conn, error) {
	parity := bugst.NoParity
	switch strings.ToUpper(cfg.Parity) {
	case "E":
		parity = bugst.EvenParity
	case "O":
		parity = bugst.OddParity
	}
	p, err := bugst.Open(cfg.Addr, &bugst.Mode{
		BaudRate: cfg.Baud,
		DataBits: cfg.DataBits,
		Parity:   parity,
		StopBits: bugst.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if err = p.SetReadTimeout(cfg.Timeout); err != nil {
		p.Close()
		return nil, err
	}
	return bugstConn{p}, nil
}
