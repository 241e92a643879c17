/*Package comm provides line-oriented ASCII transports to lab hardware.

Every instrument in this module speaks the same shape of protocol: a short
command terminated by a carriage return, answered (or not) by a single line.
A driver borrows a Transport and never cares whether it is a local serial port
or a serial-over-TCP terminal server.

A minimal example for a sensor that answers "RD?" with its temperature:

	t := comm.NewRemoteDevice(comm.Config{Addr: "/dev/ttyUSB0", Serial: true, Baud: 9600})
	if err := t.Open(); err != nil {
		return err
	}
	defer t.Close()
	if err := t.Write([]byte("RD?")); err != nil {
		return err
	}
	line, err := t.ReadLine()
	if err != nil {
		return err
	}
	return strconv.ParseFloat(line, 64)
*/
package comm

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/sdlab/labdev/device"
)

var (
	// ErrNotConnected is generated when the connection is nil and Write or ReadLine is called
	ErrNotConnected = errors.New("conn is nil, not connected to remote")

	// ErrTimeout is generated when no complete line arrived within the read timeout
	ErrTimeout = errors.New("timeout waiting for response")

	// ErrUnknownBackend is generated when Config.Backend names no serial implementation
	ErrUnknownBackend = errors.New("unknown serial backend, use tarm or bugst")
)

// Transport is a borrowed, line-oriented channel to one instrument
type Transport interface {
	// Write sends b followed by the transmit terminator
	Write(b []byte) error

	// ReadLine returns one response line with the terminators stripped.
	// It returns "" and ErrTimeout if nothing arrived in time
	ReadLine() (string, error)

	// ResetInputBuffer discards anything waiting to be read
	ResetInputBuffer() error

	// IsOpen reports whether the channel is usable
	IsOpen() bool

	// Port names the channel for diagnostics
	Port() string
}

// Opener can open ("establish a connection" but in io language) and close
type Opener interface {
	Open() error
	Close() error
}

// Terminators holds the line terminators of a protocol.  Rx ends a reply
// and Tx is appended to every command
type Terminators struct {
	Rx byte
	Tx string
}

// DefaultTerminators is the CR-out, LF-in convention of the Newport and
// Sciencetech instruments
var DefaultTerminators = Terminators{Rx: '\n', Tx: "\r"}

// NAMURTerminators is CRLF out, LF in, as used by IKA lab equipment
var NAMURTerminators = Terminators{Rx: '\n', Tx: "\r\n"}

// Config describes how to reach an instrument
type Config struct {
	// Addr is a device path (/dev/ttyUSB0, COM3) or host:port
	Addr string

	// Serial selects a local serial port; false means TCP
	Serial bool

	// Backend selects the serial implementation, "tarm" (default) or "bugst"
	Backend string

	Baud     int
	DataBits int

	// Parity is one of N, E, O
	Parity string

	// Timeout bounds each ReadLine.  Zero means one second
	Timeout time.Duration

	Terminators Terminators

	// MinCommandGap is the minimum spacing between writes.  Some controllers
	// drop characters when commands arrive back-to-back
	MinCommandGap time.Duration
}

func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendTarm
	}
	if c.Baud == 0 {
		c.Baud = 9600
	}
	if c.DataBits == 0 {
		c.DataBits = 8
	}
	if c.Parity == "" {
		c.Parity = "N"
	}
	if c.Timeout == 0 {
		c.Timeout = time.Second
	}
	if c.Terminators == (Terminators{}) {
		c.Terminators = DefaultTerminators
	}
	return c
}

// conn is what an opened backend hands back
type conn interface {
	io.ReadWriteCloser
	resetInput() error
}

/*RemoteDevice has an address and implements Transport and Opener over either a
serial port or a TCP socket.

It is safe for concurrent use in the sense that calls do not corrupt each
other, but interleaving commands from several goroutines on one instrument
is the caller's problem.
*/
type RemoteDevice struct {
	cfg     Config
	limiter *rate.Limiter

	mu   sync.Mutex
	conn conn
	rd   *bufio.Reader
}

// NewRemoteDevice creates a new RemoteDevice instance.  It does not open it
func NewRemoteDevice(cfg Config) *RemoteDevice {
	cfg = cfg.withDefaults()
	rd := &RemoteDevice{cfg: cfg}
	if cfg.MinCommandGap > 0 {
		rd.limiter = rate.NewLimiter(rate.Every(cfg.MinCommandGap), 1)
	}
	return rd
}

// Config returns the effective configuration, defaults applied
func (rd *RemoteDevice) Config() Config {
	return rd.cfg
}

// Open the connection.  Opening an open device is a no-op
func (rd *RemoteDevice) Open() error {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	if rd.conn != nil {
		return nil
	}
	// terminal servers and USB adapters that were just power cycled
	// refuse the first few attempts, so back off and retry
	var c conn
	op := func() error {
		var err error
		c, err = rd.dial()
		return err
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err != nil {
		return pkgerrors.Wrapf(err, "opening %s", rd.cfg.Addr)
	}
	rd.conn = c
	rd.rd = bufio.NewReader(timeoutReader{c})
	return nil
}

func (rd *RemoteDevice) dial() (conn, error) {
	if rd.cfg.Serial {
		return openSerial(rd.cfg)
	}
	nc, err := TCPSetup(rd.cfg.Addr, rd.cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return &tcpConn{Conn: nc, timeout: rd.cfg.Timeout}, nil
}

// Close the connection, nil-ing the conn
func (rd *RemoteDevice) Close() error {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	if rd.conn == nil {
		return nil
	}
	err := rd.conn.Close()
	rd.conn = nil
	rd.rd = nil
	return pkgerrors.Wrapf(err, "closing %s", rd.cfg.Addr)
}

// IsOpen reports whether Open succeeded and Close has not been called since
func (rd *RemoteDevice) IsOpen() bool {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	return rd.conn != nil
}

// Port returns the address
func (rd *RemoteDevice) Port() string {
	return rd.cfg.Addr
}

// Write sends b with the Tx terminator appended
func (rd *RemoteDevice) Write(b []byte) error {
	if rd.limiter != nil {
		if err := rd.limiter.Wait(context.Background()); err != nil {
			return err
		}
	}
	rd.mu.Lock()
	defer rd.mu.Unlock()
	if rd.conn == nil {
		return ErrNotConnected
	}
	buf := make([]byte, 0, len(b)+len(rd.cfg.Terminators.Tx))
	buf = append(buf, b...)
	buf = append(buf, rd.cfg.Terminators.Tx...)
	_, err := rd.conn.Write(buf)
	return pkgerrors.Wrapf(err, "writing %q to %s", b, rd.cfg.Addr)
}

// ReadLine reads up to the Rx terminator and strips surrounding whitespace,
// which also removes a CR preceding an LF terminator
func (rd *RemoteDevice) ReadLine() (string, error) {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	if rd.conn == nil {
		return "", ErrNotConnected
	}
	if tc, ok := rd.conn.(*tcpConn); ok {
		tc.SetReadDeadline(time.Now().Add(tc.timeout))
	}
	line, err := rd.rd.ReadString(rd.cfg.Terminators.Rx)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return "", ErrTimeout
		}
		return "", pkgerrors.Wrapf(err, "reading from %s", rd.cfg.Addr)
	}
	return strings.TrimSpace(line), nil
}

// ResetInputBuffer drops both the OS receive buffer and anything already
// pulled into the line reader
func (rd *RemoteDevice) ResetInputBuffer() error {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	if rd.conn == nil {
		return ErrNotConnected
	}
	rd.rd.Reset(timeoutReader{rd.conn})
	return pkgerrors.Wrapf(rd.conn.resetInput(), "resetting input of %s", rd.cfg.Addr)
}

// timeoutReader maps the various ways a read timeout surfaces into ErrTimeout.
// Serial drivers return (0, nil) or (0, io.EOF) when VTIME expires and sockets
// return a net.Error with Timeout() true
type timeoutReader struct {
	r io.Reader
}

func (t timeoutReader) Read(b []byte) (int, error) {
	n, err := t.r.Read(b)
	if n > 0 {
		return n, err
	}
	if err == nil || err == io.EOF {
		return 0, ErrTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 0, ErrTimeout
	}
	return 0, err
}

// TCPSetup opens a new TCP connection and sets a timeout on connect
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, timeout)
}

type tcpConn struct {
	net.Conn
	timeout time.Duration
}

// resetInput drains whatever the terminal server has already forwarded
func (c *tcpConn) resetInput() error {
	buf := make([]byte, 256)
	for {
		c.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
		n, err := c.Read(buf)
		if n == 0 || err != nil {
			break
		}
	}
	return nil
}

// Failure converts an error from a Transport to a failed device.Result
func Failure(err error) device.Result {
	switch {
	case errors.Is(err, ErrTimeout):
		return device.Failure(device.ResponseTimeout, "Response timed out.")
	case errors.Is(err, ErrNotConnected):
		return device.Failure(device.NotConnected, err.Error())
	default:
		return device.Failure(device.UnspecifiedFailure, err.Error())
	}
}
