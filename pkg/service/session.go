// Package service implements the secline command session: the line-oriented
// request/response loop that runs on top of an established connection.
package service

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/secline-protocol/secline-go/pkg/cert"
	"github.com/secline-protocol/secline-go/pkg/log"
	"github.com/secline-protocol/secline-go/pkg/wire"
)

// State is the session lifecycle state.
type State uint32

const (
	// StateHandshaking is the initial state before the session loop starts.
	StateHandshaking State = iota
	// StateActive means the session is reading and answering commands.
	StateActive
	// StateClosing means the session is tearing down.
	StateClosing
	// StateClosed means the transport has been released.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "HANDSHAKING"
	case StateActive:
		return "ACTIVE"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Conn is the transport capability a session needs: a byte stream plus close.
// The engine has no knowledge of TLS; this is what keeps it testable without
// a real socket.
type Conn interface {
	io.ReadWriter
	Close() error
}

// Config configures a Session.
type Config struct {
	// Conn is the established transport. The session takes exclusive
	// ownership and closes it on every exit path.
	Conn Conn

	// ConnID identifies the connection in log events.
	ConnID string

	// RemoteAddr is the peer address, used for the welcome banner and logs.
	RemoteAddr string

	// Identity is the verified peer identity, if any.
	Identity cert.Identity

	// Logger for protocol logging (optional).
	Logger log.Logger

	// SendWelcome sends the welcome banner before the first read.
	// Set on the server side only.
	SendWelcome bool
}

// Session runs one command exchange loop over one connection.
// A Session is created only after a successful handshake and is not safe for
// concurrent Run calls; Close may be called from any goroutine.
type Session struct {
	config Config
	codec  *wire.Codec
	state  atomic.Uint32

	closeOnce sync.Once
}

// New creates a session over an established connection.
func New(config Config) *Session {
	codec := wire.NewCodec(config.Conn)
	if config.Logger != nil {
		codec.SetLogger(config.Logger, config.ConnID)
	}

	s := &Session{
		config: config,
		codec:  codec,
	}
	s.state.Store(uint32(StateHandshaking))
	return s
}

// State returns the current session state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run executes the session loop until the peer quits, disconnects, or an
// error ends the exchange. The transport is closed on every exit path.
// Ordinary termination (quit, peer disconnect, owning process shutdown)
// returns nil.
func (s *Session) Run() error {
	s.transition(StateActive, "")

	if s.config.SendWelcome {
		if err := s.codec.WriteResponse(wire.Welcome(remoteIP(s.config.RemoteAddr))); err != nil {
			s.close("write error")
			return err
		}
	}

	for {
		line, err := s.codec.ReadLine()
		if err != nil {
			// Zero-length read: the peer closed its write side. Normal
			// termination, no response sent.
			if err == io.EOF {
				s.close("peer disconnect")
				return nil
			}
			// Owning process shutdown closed the transport under us.
			if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				s.close("shutdown")
				return nil
			}
			s.logError(err, "read line")
			s.close("read error")
			return err
		}

		cmd := wire.Parse(line)

		// One response per request, sent as a single write.
		if err := s.codec.WriteResponse(wire.ResponseFor(cmd)); err != nil {
			s.logError(err, "write response")
			s.close("write error")
			return err
		}

		if cmd.Verb == wire.VerbQuit {
			s.close("quit")
			return nil
		}
	}
}

// Close tears the session down. Safe to call multiple times and from any
// goroutine; the transport is closed exactly once.
func (s *Session) Close() error {
	return s.close("closed")
}

func (s *Session) close(reason string) error {
	var err error
	s.closeOnce.Do(func() {
		s.transition(StateClosing, reason)
		err = s.config.Conn.Close()
		s.transition(StateClosed, reason)
	})
	return err
}

// transition moves to a new state and logs the change.
func (s *Session) transition(next State, reason string) {
	old := State(s.state.Swap(uint32(next)))
	if s.config.Logger == nil || old == next {
		return
	}
	s.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.config.ConnID,
		Layer:        log.LayerSession,
		Category:     log.CategoryState,
		RemoteAddr:   s.config.RemoteAddr,
		PeerCN:       s.config.Identity.CommonName,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: old.String(),
			NewState: next.String(),
			Reason:   reason,
		},
	})
}

func (s *Session) logError(err error, context string) {
	if s.config.Logger == nil {
		return
	}
	s.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.config.ConnID,
		Layer:        log.LayerSession,
		Category:     log.CategoryError,
		RemoteAddr:   s.config.RemoteAddr,
		Error: &log.ErrorEvent{
			Layer:   log.LayerSession,
			Message: err.Error(),
			Context: context,
		},
	})
}

// remoteIP extracts the host part of an address for display.
func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
