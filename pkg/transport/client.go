package transport

import (
	"context"
	"crypto/tls"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/secline-protocol/secline-go/pkg/cert"
	"github.com/secline-protocol/secline-go/pkg/log"
)

// receiveBufferSize bounds a single response read.
const receiveBufferSize = 4096

// ClientConfig configures a secline client.
type ClientConfig struct {
	// Endpoint contains the certificate material and verification policy.
	Endpoint EndpointConfig

	// ConnectTimeout is the connection timeout (default: 30s).
	ConnectTimeout time.Duration

	// Logger for protocol logging (optional).
	Logger log.Logger
}

// Client is a secline TLS client.
type Client struct {
	config      ClientConfig
	tlsConf     *tls.Config
	certWarning error
}

// NewClient creates a new secline client.
// When the local certificate pair is missing the client still works with
// server-only authentication; CertWarning reports the degradation so the
// caller can log it.
func NewClient(config ClientConfig) (*Client, error) {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 30 * time.Second
	}

	clientTLS, err := NewClientTLSConfig(config.Endpoint)
	if err != nil {
		return nil, err
	}

	return &Client{
		config:      config,
		tlsConf:     clientTLS.Config,
		certWarning: clientTLS.CertWarning,
	}, nil
}

// CertWarning returns the degradation warning from configuration, or nil
// when a client certificate is loaded for mutual authentication.
func (c *Client) CertWarning() error {
	return c.certWarning
}

// Connect establishes a connection to the specified address and performs the
// TLS handshake. The establisher never retries; the caller reports and exits
// or retries per its own policy.
func (c *Client) Connect(ctx context.Context, address string) (*Conn, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	rawConn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, &TransportError{Op: "dial " + address, Err: err}
	}

	tlsConn := tls.Client(rawConn, c.tlsConf)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, &HandshakeError{Addr: address, Err: err}
	}

	state := tlsConn.ConnectionState()
	identity, _ := cert.FromConnectionState(state)
	connID := uuid.New().String()

	conn := &Conn{
		conn:     tlsConn,
		tlsState: state,
		identity: identity,
		connID:   connID,
		logger:   c.config.Logger,
		closeCh:  make(chan struct{}),
	}

	if c.config.Logger != nil {
		c.config.Logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: connID,
			Layer:        log.LayerTransport,
			Category:     log.CategoryState,
			RemoteAddr:   tlsConn.RemoteAddr().String(),
			PeerCN:       identity.CommonName,
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityConnection,
				NewState: "CONNECTED",
			},
		})
	}

	return conn, nil
}

// Conn represents an established connection from client to server.
type Conn struct {
	conn     *tls.Conn
	tlsState tls.ConnectionState
	identity cert.Identity
	connID   string
	logger   log.Logger

	closeCh   chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
}

// SendLine sends one command line, appending the terminator if missing.
func (c *Conn) SendLine(line string) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}

	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.conn.Write([]byte(line)); err != nil {
		return &TransportError{Op: "write", Err: err}
	}

	if c.logger != nil {
		c.logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: c.connID,
			Direction:    log.DirectionOut,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			Line:         log.NewLineEvent(strings.TrimSuffix(line, "\n")),
		})
	}

	return nil
}

// Receive reads one response. The server sends each response, multi-line
// included, as a single write, so one read returns one complete response.
// A zero-length read surfaces as the underlying io.EOF.
func (c *Conn) Receive() (string, error) {
	select {
	case <-c.closeCh:
		return "", ErrConnectionClosed
	default:
	}

	buf := make([]byte, receiveBufferSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		return "", err
	}

	resp := string(buf[:n])

	if c.logger != nil {
		c.logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: c.connID,
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			Line:         log.NewLineEvent(strings.TrimSuffix(resp, "\n")),
		})
	}

	return resp, nil
}

// Close closes the connection. Safe to call multiple times.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

// Identity returns the server identity from its certificate, when presented.
func (c *Conn) Identity() cert.Identity {
	return c.identity
}

// CipherName returns the negotiated cipher suite name.
func (c *Conn) CipherName() string {
	return tls.CipherSuiteName(c.tlsState.CipherSuite)
}

// ConnID returns the unique connection identifier.
func (c *Conn) ConnID() string {
	return c.connID
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// TLSState returns the TLS connection state.
func (c *Conn) TLSState() tls.ConnectionState {
	return c.tlsState
}
