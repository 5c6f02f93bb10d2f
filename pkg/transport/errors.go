package transport

import (
	"errors"
	"net"
)

// ErrConnectionClosed indicates use of an already closed connection.
var ErrConnectionClosed = errors.New("connection closed")

// ConfigError reports bad or missing certificate material at startup.
// It is fatal: a process must not listen or dial with a broken configuration.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "configuration: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// HandshakeError reports a certificate, cipher or protocol-version mismatch
// during connect or accept. Non-fatal to the process: the client reports and
// stops, the server drops the connection and keeps listening.
type HandshakeError struct {
	Addr string
	Err  error
}

func (e *HandshakeError) Error() string {
	return "TLS handshake with " + e.Addr + " failed: " + e.Err.Error()
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// TransportError reports a dial, read or write failure. A zero-length read
// (peer closed its write side) is normal session termination, not a
// TransportError.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is a startup configuration failure.
func IsConfigError(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}

// IsHandshakeError reports whether err is a TLS handshake failure.
func IsHandshakeError(err error) bool {
	var e *HandshakeError
	return errors.As(err, &e)
}

// IsTransportError reports whether err is a transport-level failure.
func IsTransportError(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

// IsTimeout reports whether err is a timeout at any network layer.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
