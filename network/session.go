package network

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrSessionClosed indicates a write on a session that has been torn down.
var ErrSessionClosed = errors.New("network: session closed")

// wsConn is the subset of *websocket.Conn a session uses.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	RemoteAddr() net.Addr
	Close() error
}

// Session is one live WebSocket connection from a phone.
type Session struct {
	id           string
	conn         wsConn
	remoteAddr   string
	connectedAt  time.Time
	writeTimeout time.Duration

	writeMu sync.Mutex

	closed    chan struct{}
	closeOnce sync.Once
}

func newSession(conn wsConn, writeTimeout time.Duration) *Session {
	remote := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	return &Session{
		id:           uuid.NewString(),
		conn:         conn,
		remoteAddr:   remote,
		connectedAt:  time.Now(),
		writeTimeout: writeTimeout,
		closed:       make(chan struct{}),
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// RemoteAddr returns the peer address as seen at accept time.
func (s *Session) RemoteAddr() string {
	return s.remoteAddr
}

// Done is closed when the session is torn down.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// WriteRaw writes one text frame with the session write deadline.
func (s *Session) WriteRaw(payload []byte) error {
	select {
	case <-s.closed:
		return ErrSessionClosed
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (s *Session) ping() error {
	select {
	case <-s.closed:
		return ErrSessionClosed
	default:
	}
	if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout)); err != nil {
		return fmt.Errorf("write ping: %w", err)
	}
	return nil
}

// Close sends a best-effort close frame and releases the socket.
func (s *Session) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		closeErr = s.conn.Close()
	})
	return closeErr
}
