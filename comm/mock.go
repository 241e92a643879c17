package comm

import (
	"sync"
)

// Responder maps one command, terminator stripped, to the lines the
// instrument would send back.  Returning nil simulates silence
type Responder func(cmd string) []string

// MockTransport is an in-memory Transport that records every write and answers
// from a Responder.  Lines not yet read accumulate, as they would in a real
// receive buffer, until ReadLine or ResetInputBuffer consumes them
type MockTransport struct {
	Name      string
	Responder Responder

	mu      sync.Mutex
	open    bool
	writes  []string
	pending []string
	resets  int
}

// NewMockTransport returns an open MockTransport
func NewMockTransport(name string, r Responder) *MockTransport {
	return &MockTransport{Name: name, Responder: r, open: true}
}

// Open marks the transport open
func (m *MockTransport) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	return nil
}

// Close marks the transport closed
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

// IsOpen returns the open flag
func (m *MockTransport) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Port returns Name
func (m *MockTransport) Port() string {
	return m.Name
}

// Write records b and queues the responder's reply
func (m *MockTransport) Write(b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return ErrNotConnected
	}
	cmd := string(b)
	m.writes = append(m.writes, cmd)
	if m.Responder != nil {
		m.pending = append(m.pending, m.Responder(cmd)...)
	}
	return nil
}

// ReadLine pops the oldest pending line, or times out
func (m *MockTransport) ReadLine() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return "", ErrNotConnected
	}
	if len(m.pending) == 0 {
		return "", ErrTimeout
	}
	line := m.pending[0]
	m.pending = m.pending[1:]
	return line, nil
}

// ResetInputBuffer drops pending lines
func (m *MockTransport) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	m.resets++
	return nil
}

// Writes returns a copy of every command written so far
func (m *MockTransport) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.writes))
	copy(out, m.writes)
	return out
}

// ClearWrites forgets the recorded writes
func (m *MockTransport) ClearWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
}

// Resets returns how many times ResetInputBuffer was called
func (m *MockTransport) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// Pending returns the number of unread lines
func (m *MockTransport) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
