package network

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"airsync/state"
)

var (
	// ErrNilStore indicates a server built without a state store.
	ErrNilStore = errors.New("network: store is required")
	// ErrAlreadyRunning indicates Start on a running server.
	ErrAlreadyRunning = errors.New("network: server already running")
)

// Options configures the message channel server.
type Options struct {
	Store  *state.Store
	Logger zerolog.Logger

	// Host is the bind address; empty means all interfaces.
	Host string

	WriteTimeout      time.Duration
	PongTimeout       time.Duration
	PingInterval      time.Duration
	OutboundQueueSize int
	IconQueueSize     int
}

func (o Options) withDefaults() Options {
	if o.Host == "" {
		o.Host = "0.0.0.0"
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = DefaultPongTimeout
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongTimeout {
		o.PingInterval = (o.PongTimeout * 9) / 10
	}
	if o.OutboundQueueSize <= 0 {
		o.OutboundQueueSize = DefaultOutboundQueueSize
	}
	if o.IconQueueSize <= 0 {
		o.IconQueueSize = DefaultIconQueueSize
	}
	return o
}

// Server accepts phone sessions over WebSocket and routes their messages
// into the store. It also implements state.Peer for outbound traffic.
type Server struct {
	store    *state.Store
	log      zerolog.Logger
	options  Options
	upgrader websocket.Upgrader

	mu         sync.Mutex
	running    bool
	listener   net.Listener
	httpServer *http.Server
	sessions   map[*Session]struct{}
	outbound   chan []byte
	icons      chan AppIconsPayload
	stopped    chan struct{}
	wg         sync.WaitGroup
}

// NewServer builds a stopped server bound to store.
func NewServer(options Options) (*Server, error) {
	if options.Store == nil {
		return nil, ErrNilStore
	}
	opts := options.withDefaults()
	return &Server{
		store:   opts.Store,
		log:     opts.Logger.With().Str("component", "network").Logger(),
		options: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Phones are not browsers; Origin is not meaningful here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sessions: make(map[*Session]struct{}),
	}, nil
}

// Start binds host:port and begins accepting sessions. The outcome is
// recorded as the store's server status.
func (s *Server) Start(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	address := net.JoinHostPort(s.options.Host, strconv.Itoa(port))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		err = fmt.Errorf("listen on %q: %w", address, err)
		s.store.SetServerStatus("failed: " + err.Error())
		s.log.Error().Err(err).Msg("server failed to start")
		return err
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.newRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.outbound = make(chan []byte, s.options.OutboundQueueSize)
	s.icons = make(chan AppIconsPayload, s.options.IconQueueSize)
	s.stopped = make(chan struct{})
	s.running = true

	s.wg.Add(3)
	go s.serve(s.httpServer, listener)
	go s.sendLoop(s.outbound, s.stopped)
	go s.iconLoop(s.icons, s.stopped)

	s.store.SetServerStatus(state.ServerStatusStarted)
	s.log.Info().Str("address", listener.Addr().String()).Msg("server started")
	return nil
}

// Stop closes the listener and every session. Stop on a stopped server is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopped)
	httpServer := s.httpServer
	sessions := s.snapshotLocked()
	s.mu.Unlock()

	closeErr := httpServer.Close()
	for _, session := range sessions {
		_ = session.Close()
	}
	s.wg.Wait()

	s.store.SetServerStatus(state.ServerStatusStopped)
	s.log.Info().Msg("server stopped")
	if errors.Is(closeErr, http.ErrServerClosed) {
		return nil
	}
	return closeErr
}

// Restart stops the server if running and starts it on port.
func (s *Server) Restart(port int) error {
	if err := s.Stop(); err != nil {
		s.log.Warn().Err(err).Msg("stop before restart")
	}
	return s.Start(port)
}

// Running reports whether the listener is accepting.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Addr returns the bound address, or nil when stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Broadcast writes msg to every live session concurrently and returns how
// many writes succeeded. Sessions whose write fails are evicted.
func (s *Server) Broadcast(msg Outbound) int {
	payload, err := EncodeJSON(msg)
	if err != nil {
		s.log.Error().Err(err).Str("type", msg.Type).Msg("encode outbound message")
		return 0
	}
	return s.broadcastRaw(payload)
}

// Send queues msg for delivery without blocking the caller.
func (s *Server) Send(msg Outbound) {
	payload, err := EncodeJSON(msg)
	if err != nil {
		s.log.Error().Err(err).Str("type", msg.Type).Msg("encode outbound message")
		return
	}

	s.mu.Lock()
	running := s.running
	queue := s.outbound
	s.mu.Unlock()

	if !running {
		s.log.Debug().Str("type", msg.Type).Msg("server stopped, dropping outbound message")
		return
	}
	select {
	case queue <- payload:
	default:
		s.log.Warn().Str("type", msg.Type).Msg("outbound queue full, dropping message")
	}
}

// SendDisconnectRequest implements state.Peer. With no session connected the
// request is dropped, so a phone that reconnects never reads a stale one.
func (s *Server) SendDisconnectRequest() {
	if s.SessionCount() == 0 {
		s.log.Debug().Msg("no active sessions, disconnect request dropped")
		return
	}
	s.Send(DisconnectRequest())
}

// SendDismissNotification implements state.Peer.
func (s *Server) SendDismissNotification(nid string) { s.Send(DismissNotification(nid)) }

// SendMediaControl implements state.Peer.
func (s *Server) SendMediaControl(action string) { s.Send(MediaControl(action)) }

// SendVolumeControl implements state.Peer.
func (s *Server) SendVolumeControl(action string, volume *int) {
	s.Send(VolumeControl(action, volume))
}

// SendClipboard implements state.Peer.
func (s *Server) SendClipboard(text string) { s.Send(ClipboardUpdate(text)) }

func (s *Server) serve(httpServer *http.Server, listener net.Listener) {
	defer s.wg.Done()
	if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error().Err(err).Msg("serve")
	}
}

func (s *Server) sendLoop(queue <-chan []byte, stopped <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case payload := <-queue:
			s.broadcastRaw(payload)
		case <-stopped:
			return
		}
	}
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(MaxMessageSize)

	session := newSession(conn, s.options.WriteTimeout)
	if !s.register(session) {
		_ = session.Close()
		return
	}
	defer s.wg.Done()

	go s.keepAliveLoop(session)
	s.readLoop(session)
	_ = session.Close()
	s.unregister(session)
}

// register adds session and holds a wait-group slot for its handler.
func (s *Server) register(session *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.sessions[session] = struct{}{}
	s.wg.Add(1)
	s.log.Info().
		Str("session", session.ID()).
		Str("remote", session.RemoteAddr()).
		Int("sessions", len(s.sessions)).
		Msg("device connected")
	return true
}

// unregister removes session once. Removing the last session tears the
// device down.
func (s *Server) unregister(session *Session) {
	s.mu.Lock()
	_, ok := s.sessions[session]
	if ok {
		delete(s.sessions, session)
	}
	remaining := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return
	}
	s.log.Info().
		Str("session", session.ID()).
		Dur("duration", time.Since(session.connectedAt)).
		Int("sessions", remaining).
		Msg("device disconnected")
	if remaining == 0 {
		s.store.DisconnectDevice()
	}
}

func (s *Server) evict(session *Session, cause error) {
	s.log.Warn().Err(cause).Str("session", session.ID()).Msg("evicting session")
	_ = session.Close()
	s.unregister(session)
}

func (s *Server) readLoop(session *Session) {
	conn := session.conn
	extend := func() {
		_ = conn.SetReadDeadline(time.Now().Add(s.options.PongTimeout))
	}
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-session.Done():
			default:
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseNoStatusReceived,
				) {
					s.log.Warn().Err(err).Str("session", session.ID()).Msg("read failed")
				}
			}
			return
		}
		extend()
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		s.handleMessage(session, payload)
	}
}

func (s *Server) keepAliveLoop(session *Session) {
	ticker := time.NewTicker(s.options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-session.Done():
			return
		case <-ticker.C:
			if err := session.ping(); err != nil {
				if !errors.Is(err, ErrSessionClosed) {
					s.evict(session, err)
				}
				return
			}
		}
	}
}

func (s *Server) broadcastRaw(payload []byte) int {
	sessions := s.snapshot()
	if len(sessions) == 0 {
		s.log.Debug().Msg("no active sessions, message not delivered")
		return 0
	}

	var (
		wg        sync.WaitGroup
		delivered atomic.Int64
	)
	for _, session := range sessions {
		wg.Add(1)
		go func(session *Session) {
			defer wg.Done()
			if err := session.WriteRaw(payload); err != nil {
				s.evict(session, err)
				return
			}
			delivered.Add(1)
		}(session)
	}
	wg.Wait()
	return int(delivered.Load())
}

func (s *Server) snapshot() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Server) snapshotLocked() []*Session {
	sessions := make([]*Session, 0, len(s.sessions))
	for session := range s.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}
