package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadServer(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "localhost:8443", cfg.Address())
	assert.Equal(t, DefaultServerCert, cfg.CertFile)
	assert.Equal(t, DefaultServerKey, cfg.KeyFile)
	assert.Equal(t, []string{DefaultClientCert}, cfg.TrustedCerts)
}

func TestLoadServerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	data := `
host: 0.0.0.0
port: 9443
certFile: /etc/secline/server.crt
keyFile: /etc/secline/server.key
trustedCerts:
  - /etc/secline/client-a.crt
  - /etc/secline/client-b.crt
logFile: /var/log/secline.cbor
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadServer(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9443", cfg.Address())
	assert.Equal(t, "/etc/secline/server.crt", cfg.CertFile)
	assert.Len(t, cfg.TrustedCerts, 2)
	assert.Equal(t, "/var/log/secline.cbor", cfg.LogFile)
}

func TestLoadServerPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\n"), 0644))

	cfg, err := LoadServer(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:9000", cfg.Address())
	assert.Equal(t, DefaultServerCert, cfg.CertFile)
}

func TestLoadServerInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not a number\n"), 0644))

	_, err := LoadServer(path)
	assert.Error(t, err)
}

func TestLoadClientMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadClient(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "localhost:8443", cfg.Address())
	assert.False(t, cfg.Insecure)

	ep := cfg.Endpoint()
	assert.True(t, ep.VerifyPeer)
	assert.False(t, ep.InsecureSkipVerify)
	assert.Equal(t, "localhost", ep.ServerName)
}

func TestClientInsecureEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte("insecure: true\n"), 0644))

	cfg, err := LoadClient(path)
	require.NoError(t, err)

	ep := cfg.Endpoint()
	assert.False(t, ep.VerifyPeer)
	assert.True(t, ep.InsecureSkipVerify)
}

func TestServerEndpointVerifiesPeer(t *testing.T) {
	ep := DefaultServer().Endpoint()
	assert.True(t, ep.VerifyPeer)
	assert.Equal(t, []string{DefaultClientCert}, ep.TrustedCertFiles)
}
