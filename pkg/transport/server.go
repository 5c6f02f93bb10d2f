package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/secline-protocol/secline-go/pkg/cert"
	"github.com/secline-protocol/secline-go/pkg/log"
)

// SessionHandler runs the command session for one established connection.
// It is invoked in the connection's own goroutine and owns the connection
// for its full lifetime; the connection is closed when the handler returns.
type SessionHandler func(conn *ServerConn)

// ServerConfig configures a secline server.
type ServerConfig struct {
	// Endpoint contains the certificate material and verification policy.
	Endpoint EndpointConfig

	// Address to listen on (default "localhost:8443").
	Address string

	// Logger for protocol logging (optional).
	Logger log.Logger

	// Handler runs each established session. Required.
	Handler SessionHandler

	// OnError is called for accept and handshake failures (optional).
	// Failures never affect other in-flight connections.
	OnError func(err error)
}

// Server is a secline TLS server accepting mutually authenticated clients.
type Server struct {
	config   ServerConfig
	tlsConf  *tls.Config
	listener net.Listener

	// Active connections
	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	// State
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new secline server.
// Certificate problems surface here as a ConfigError, never at first accept.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Handler == nil {
		return nil, errors.New("session handler is required")
	}
	if config.Address == "" {
		config.Address = fmt.Sprintf("%s:%d", DefaultHost, DefaultPort)
	}

	tlsConf, err := NewServerTLSConfig(config.Endpoint)
	if err != nil {
		return nil, err
	}

	return &Server{
		config:  config,
		tlsConf: tlsConf,
		conns:   make(map[*ServerConn]struct{}),
	}, nil
}

// Start starts the server and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return errors.New("server already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return &TransportError{Op: "listen", Err: err}
	}
	s.listener = listener

	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop stops accepting, closes all connections and waits for in-flight
// handlers to finish.
func (s *Server) Stop() error {
	if !s.running.Load() {
		return nil
	}

	s.running.Store(false)
	s.cancel()

	// Close listener to stop the accept loop
	if s.listener != nil {
		s.listener.Close()
	}

	// Close all connections
	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()

	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

// acceptLoop accepts incoming connections.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() {
				s.reportError(&TransportError{Op: "accept", Err: err})
			}
			continue
		}

		// Each connection gets its own goroutine; a stalled peer cannot
		// block the listener or sibling sessions.
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection performs the handshake and runs the session handler for a
// single connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	tlsConn := tls.Server(conn, s.tlsConf)
	if err := tlsConn.HandshakeContext(s.ctx); err != nil {
		conn.Close()
		s.reportError(&HandshakeError{Addr: conn.RemoteAddr().String(), Err: err})
		return
	}

	state := tlsConn.ConnectionState()
	identity, _ := cert.FromConnectionState(state)
	connID := uuid.New().String()

	sconn := &ServerConn{
		conn:       tlsConn,
		tlsState:   state,
		identity:   identity,
		server:     s,
		closeCh:    make(chan struct{}),
		remoteAddr: conn.RemoteAddr(),
		connID:     connID,
	}

	s.logState(sconn, "", "CONNECTED")

	if !s.registerConn(sconn) {
		s.logState(sconn, "CONNECTED", "DISCONNECTED")
		return
	}

	s.config.Handler(sconn)

	s.unregisterConn(sconn)
	sconn.Close()

	s.logState(sconn, "CONNECTED", "DISCONNECTED")
}

// registerConn tracks an established connection for Stop's close sweep.
// The sweep only reaches registered connections; a handshake finishing while
// Stop runs can register after it, so the server context is re-checked after
// registration. Reports false when the server was stopped, in which case the
// connection is already closed and must not be handed to the handler.
func (s *Server) registerConn(sconn *ServerConn) bool {
	s.connsMu.Lock()
	s.conns[sconn] = struct{}{}
	s.connsMu.Unlock()

	if s.ctx.Err() != nil {
		s.unregisterConn(sconn)
		sconn.Close()
		return false
	}
	return true
}

func (s *Server) unregisterConn(sconn *ServerConn) {
	s.connsMu.Lock()
	delete(s.conns, sconn)
	s.connsMu.Unlock()
}

// reportError forwards a connection failure without letting it escape to
// other connections.
func (s *Server) reportError(err error) {
	if s.config.OnError != nil {
		s.config.OnError(err)
	}
	if s.config.Logger != nil {
		s.config.Logger.Log(log.Event{
			Timestamp: time.Now(),
			Layer:     log.LayerTransport,
			Category:  log.CategoryError,
			Error: &log.ErrorEvent{
				Layer:   log.LayerTransport,
				Message: err.Error(),
				Context: "accept",
			},
		})
	}
}

// logState logs a connection state transition.
func (s *Server) logState(conn *ServerConn, oldState, newState string) {
	if s.config.Logger == nil {
		return
	}
	s.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: conn.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   conn.remoteAddr.String(),
		PeerCN:       conn.identity.CommonName,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
		},
	})
}

// ServerConn represents one established client connection.
// The session handler exclusively owns it; no other component retains a
// reference after the handler returns.
type ServerConn struct {
	conn       *tls.Conn
	tlsState   tls.ConnectionState
	identity   cert.Identity
	server     *Server
	closeCh    chan struct{}
	closeOnce  sync.Once
	remoteAddr net.Addr
	connID     string
}

// Read reads from the TLS stream.
func (c *ServerConn) Read(p []byte) (int, error) {
	return c.conn.Read(p)
}

// Write writes to the TLS stream.
func (c *ServerConn) Write(p []byte) (int, error) {
	return c.conn.Write(p)
}

// Close closes the connection. Safe to call multiple times.
func (c *ServerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

// RemoteAddr returns the remote address of the client.
func (c *ServerConn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// ConnID returns the unique connection identifier.
func (c *ServerConn) ConnID() string {
	return c.connID
}

// Identity returns the verified client identity.
func (c *ServerConn) Identity() cert.Identity {
	return c.identity
}

// CipherName returns the negotiated cipher suite name.
func (c *ServerConn) CipherName() string {
	return tls.CipherSuiteName(c.tlsState.CipherSuite)
}

// TLSState returns the TLS connection state.
func (c *ServerConn) TLSState() tls.ConnectionState {
	return c.tlsState
}
