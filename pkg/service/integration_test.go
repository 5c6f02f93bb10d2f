package service_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secline-protocol/secline-go/pkg/service"
	"github.com/secline-protocol/secline-go/pkg/transport"
	"github.com/secline-protocol/secline-go/pkg/wire"
)

// writeCertPair writes a self-signed certificate pair to PEM files.
func writeCertPair(t *testing.T, cn string) (certPath, keyPath string) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:   cn,
			Organization: []string{"Test Org"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)

	dir := t.TempDir()
	certPath = filepath.Join(dir, cn+".crt")
	keyPath = filepath.Join(dir, cn+".key")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}), 0644))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600))
	return certPath, keyPath
}

// startCommandServer wires the full stack: TLS transport plus command
// sessions with welcome banners, as the server binary does.
func startCommandServer(t *testing.T) (*transport.Server, transport.EndpointConfig) {
	t.Helper()

	serverCert, serverKey := writeCertPair(t, "localhost")
	clientCert, clientKey := writeCertPair(t, "client")

	server, err := transport.NewServer(transport.ServerConfig{
		Endpoint: transport.EndpointConfig{
			CertFile:         serverCert,
			KeyFile:          serverKey,
			TrustedCertFiles: []string{clientCert},
			VerifyPeer:       true,
		},
		Address: "127.0.0.1:0",
		Handler: func(conn *transport.ServerConn) {
			sess := service.New(service.Config{
				Conn:        conn,
				ConnID:      conn.ConnID(),
				RemoteAddr:  conn.RemoteAddr().String(),
				Identity:    conn.Identity(),
				SendWelcome: true,
			})
			_ = sess.Run()
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, server.Start(ctx))
	t.Cleanup(func() { server.Stop() })

	return server, transport.EndpointConfig{
		CertFile:         clientCert,
		KeyFile:          clientKey,
		TrustedCertFiles: []string{serverCert},
		VerifyPeer:       true,
		ServerName:       "localhost",
	}
}

func dialCommandServer(t *testing.T, server *transport.Server, endpoint transport.EndpointConfig) *transport.Conn {
	t.Helper()

	client, err := transport.NewClient(transport.ClientConfig{Endpoint: endpoint})
	require.NoError(t, err)

	conn, err := client.Connect(context.Background(), server.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Consume the welcome banner
	banner, err := conn.Receive()
	require.NoError(t, err)
	require.Contains(t, banner, "Connection secured")

	return conn
}

func TestCommandSessionOverTLS(t *testing.T) {
	server, endpoint := startCommandServer(t)
	conn := dialCommandServer(t, server, endpoint)

	require.NoError(t, conn.SendLine("echo over tls"))
	resp, err := conn.Receive()
	require.NoError(t, err)
	assert.Equal(t, "over tls\n", resp)

	require.NoError(t, conn.SendLine("help"))
	resp, err = conn.Receive()
	require.NoError(t, err)
	assert.Equal(t, wire.HelpResponse, resp)

	require.NoError(t, conn.SendLine("quit"))
	resp, err = conn.Receive()
	require.NoError(t, err)
	assert.Equal(t, wire.Farewell, resp)

	// After the farewell the transport is closed; no second response
	_, err = conn.Receive()
	assert.Error(t, err)
}

func TestConcurrentSessionsNoCrossTalk(t *testing.T) {
	server, endpoint := startCommandServer(t)

	const sessions = 4
	const rounds = 20

	var wg sync.WaitGroup
	errCh := make(chan error, sessions)

	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			conn := dialCommandServer(t, server, endpoint)
			token := fmt.Sprintf("session-%d", id)

			for r := 0; r < rounds; r++ {
				if err := conn.SendLine("echo " + token); err != nil {
					errCh <- fmt.Errorf("session %d send: %w", id, err)
					return
				}
				resp, err := conn.Receive()
				if err != nil {
					errCh <- fmt.Errorf("session %d receive: %w", id, err)
					return
				}
				if resp != token+"\n" {
					errCh <- fmt.Errorf("session %d got %q, want %q", id, resp, token+"\n")
					return
				}
			}
		}(i)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}
}

func TestOneSessionFailureDoesNotAffectOthers(t *testing.T) {
	server, endpoint := startCommandServer(t)

	// First session dies mid-line
	victim := dialCommandServer(t, server, endpoint)
	require.NoError(t, victim.SendLine(strings.Repeat("x", 100)))
	victim.Close()

	// A fresh session still works
	survivor := dialCommandServer(t, server, endpoint)
	require.NoError(t, survivor.SendLine("status"))
	resp, err := survivor.Receive()
	require.NoError(t, err)
	assert.Equal(t, wire.StatusResponse, resp)
}
