package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// mockConnection implements Connection for tests. Writes are captured,
// reads block until Queue or Fail is called.
type mockConnection struct {
	mu       sync.Mutex
	written  []mockFrame
	inbound  chan mockFrame
	closed   bool
	writeErr error

	readLimit   int64
	pongHandler func(string) error
}

type mockFrame struct {
	messageType int
	data        []byte
	err         error
}

func newMockConnection() *mockConnection {
	return &mockConnection{inbound: make(chan mockFrame, 8)}
}

// Queue makes the next ReadMessage return a text frame.
func (m *mockConnection) Queue(data []byte) {
	m.inbound <- mockFrame{messageType: websocket.TextMessage, data: data}
}

// Fail makes the next ReadMessage return err.
func (m *mockConnection) Fail(err error) {
	m.inbound <- mockFrame{err: err}
}

// FailWrites makes subsequent WriteMessage calls return err.
func (m *mockConnection) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

func (m *mockConnection) Written() []mockFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockFrame, len(m.written))
	copy(out, m.written)
	return out
}

func (m *mockConnection) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockConnection) ReadMessage() (int, []byte, error) {
	f, ok := <-m.inbound
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	if f.err != nil {
		return 0, nil, f.err
	}
	return f.messageType, f.data, nil
}

func (m *mockConnection) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written = append(m.written, mockFrame{messageType: messageType, data: append([]byte(nil), data...)})
	return nil
}

func (m *mockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.inbound)
	}
	return nil
}

func (m *mockConnection) SetReadLimit(limit int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readLimit = limit
}

func (m *mockConnection) SetReadDeadline(t time.Time) error  { return nil }
func (m *mockConnection) SetWriteDeadline(t time.Time) error { return nil }

func (m *mockConnection) SetPongHandler(h func(string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pongHandler = h
}

func (m *mockConnection) RemoteAddr() string { return "mock:0" }
