package cert

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// Identity is the subject identity extracted from a peer certificate.
// The field set is fixed and known in advance, so it is captured once at
// handshake time rather than queried dynamically.
type Identity struct {
	// CommonName from the certificate subject.
	CommonName string

	// Organization from the certificate subject, empty if not set.
	Organization string
}

// Present reports whether an identity was extracted at all.
// A zero Identity means the peer presented no certificate.
func (id Identity) Present() bool {
	return id.CommonName != "" || id.Organization != ""
}

// String formats the identity for display, e.g. "client (Acme Corp)".
func (id Identity) String() string {
	if !id.Present() {
		return "anonymous"
	}
	if id.Organization == "" {
		return id.CommonName
	}
	return fmt.Sprintf("%s (%s)", id.CommonName, id.Organization)
}

// FromCertificate extracts the identity from a certificate subject.
func FromCertificate(cert *x509.Certificate) Identity {
	id := Identity{CommonName: cert.Subject.CommonName}
	if len(cert.Subject.Organization) > 0 {
		id.Organization = cert.Subject.Organization[0]
	}
	return id
}

// FromConnectionState extracts the peer identity from a completed handshake.
// Returns a zero Identity and false when the peer presented no certificate.
func FromConnectionState(state tls.ConnectionState) (Identity, bool) {
	if len(state.PeerCertificates) == 0 {
		return Identity{}, false
	}
	return FromCertificate(state.PeerCertificates[0]), true
}
