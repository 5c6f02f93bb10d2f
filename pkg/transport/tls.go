package transport

import (
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/secline-protocol/secline-go/pkg/cert"
)

// Transport defaults.
const (
	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultPort is the default secline port.
	DefaultPort = 8443
)

// EndpointConfig describes the certificate material and verification policy
// for one TLS endpoint.
type EndpointConfig struct {
	// CertFile and KeyFile are the local certificate pair (PEM).
	// Required for servers; optional for clients, which degrade to
	// server-only authentication without them.
	CertFile string
	KeyFile  string

	// TrustedCertFiles are PEM trust anchors for verifying the peer.
	// For servers these verify client certificates; for clients they verify
	// the server. Required whenever VerifyPeer is set.
	TrustedCertFiles []string

	// VerifyPeer requires the peer to present a certificate chaining to one
	// of the trust anchors.
	VerifyPeer bool

	// ServerName is the expected server name for client connections.
	// Passed through even when verification is disabled so logs stay
	// meaningful.
	ServerName string

	// InsecureSkipVerify disables server certificate verification on the
	// client. Only for self-signed test material; it is never set
	// implicitly.
	InsecureSkipVerify bool
}

// cipherSuites pins TLS 1.2 negotiation to forward-secret AEAD suites.
// Null-auth, MD5 and export-grade suites are excluded by omission.
// TLS 1.3 suites are fixed by the runtime and already meet this policy.
var cipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
}

// baseTLSConfig returns the settings shared by both roles: TLS 1.2 floor and
// the pinned cipher list.
func baseTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		CipherSuites: cipherSuites,

		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
	}
}

// NewServerTLSConfig creates the TLS configuration for a secline server.
// Missing or unreadable certificate material is a ConfigError: fatal to
// startup, never deferred to the first accept.
func NewServerTLSConfig(cfg EndpointConfig) (*tls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, &ConfigError{Err: errors.New("server certificate and key are required")}
	}

	certificate, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("failed to load server key pair: %w", err)}
	}

	tlsConf := baseTLSConfig()
	tlsConf.Certificates = []tls.Certificate{certificate}

	if cfg.VerifyPeer {
		pool, err := cert.LoadCertPool(cfg.TrustedCertFiles...)
		if err != nil {
			return nil, &ConfigError{Err: fmt.Errorf("failed to load client trust anchors: %w", err)}
		}
		tlsConf.ClientCAs = pool
		tlsConf.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return tlsConf, nil
}

// ClientTLS is the result of building a client TLS configuration.
type ClientTLS struct {
	// Config is the resulting TLS configuration.
	Config *tls.Config

	// CertWarning is non-nil when the local certificate pair was missing or
	// unreadable and the client degraded to server-only authentication.
	// Callers should surface it to the operator.
	CertWarning error
}

// NewClientTLSConfig creates the TLS configuration for a secline client.
// Unlike the server, a missing local certificate pair is not fatal: the
// server's identity always requires proof, the client's is optional unless
// the server enforces mutual auth at the transport layer.
func NewClientTLSConfig(cfg EndpointConfig) (*ClientTLS, error) {
	tlsConf := baseTLSConfig()
	tlsConf.ServerName = cfg.ServerName

	result := &ClientTLS{Config: tlsConf}

	switch {
	case cfg.CertFile == "" && cfg.KeyFile == "":
		result.CertWarning = errors.New("no client certificate configured, using server-only authentication")
	default:
		certificate, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			result.CertWarning = fmt.Errorf("could not load client certificates: %w", err)
		} else {
			tlsConf.Certificates = []tls.Certificate{certificate}
		}
	}

	if cfg.VerifyPeer {
		pool, err := cert.LoadCertPool(cfg.TrustedCertFiles...)
		if err != nil {
			return nil, &ConfigError{Err: fmt.Errorf("failed to load server trust anchors: %w", err)}
		}
		tlsConf.RootCAs = pool
	}

	// Never a silent default: skipping verification is an explicit caller
	// decision for self-signed test material.
	tlsConf.InsecureSkipVerify = cfg.InsecureSkipVerify

	return result, nil
}
