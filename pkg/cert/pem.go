// Package cert provides PEM certificate loading and peer identity extraction
// for secline endpoints.
//
// Certificate generation is out of scope; endpoints load key and certificate
// material produced by an external CA tool (e.g. openssl).
package cert

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// PEM decoding errors.
var (
	ErrInvalidPEM = errors.New("invalid PEM data")
	ErrEmptyPool  = errors.New("no trusted certificates configured")
)

// DecodeCertPEM decodes a PEM-encoded X.509 certificate.
func DecodeCertPEM(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, ErrInvalidPEM
	}
	return x509.ParseCertificate(block.Bytes)
}

// ReadCertFile reads a certificate from a PEM file.
func ReadCertFile(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cert, err := DecodeCertPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cert, nil
}

// LoadCertPool builds a certificate pool from the given PEM files.
// Every file must contain at least one valid certificate; files are treated
// as trust anchors, so a missing or unparsable file is an error rather than
// a warning. An empty path list yields ErrEmptyPool.
func LoadCertPool(paths ...string) (*x509.CertPool, error) {
	if len(paths) == 0 {
		return nil, ErrEmptyPool
	}

	pool := x509.NewCertPool()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if !pool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("%s: %w", path, ErrInvalidPEM)
		}
	}
	return pool, nil
}
