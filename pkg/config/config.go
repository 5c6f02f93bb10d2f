// Package config loads endpoint configuration for the secline binaries.
//
// Both binaries run with built-in defaults and need no configuration file.
// When a YAML file is present next to the binary it overrides the defaults,
// which keeps the command surface free of TLS flag plumbing.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/secline-protocol/secline-go/pkg/transport"
)

// Default file locations, relative to the working directory.
const (
	DefaultServerFile = "server.yaml"
	DefaultClientFile = "client.yaml"

	DefaultServerCert = "server.crt"
	DefaultServerKey  = "server.key"
	DefaultClientCert = "client.crt"
	DefaultClientKey  = "client.key"
)

// Server holds the server configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	CertFile     string   `yaml:"certFile"`
	KeyFile      string   `yaml:"keyFile"`
	TrustedCerts []string `yaml:"trustedCerts"`

	LogFile  string `yaml:"logFile"`
	LogLevel string `yaml:"logLevel"`
}

// Client holds the client configuration.
type Client struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	CertFile     string   `yaml:"certFile"`
	KeyFile      string   `yaml:"keyFile"`
	TrustedCerts []string `yaml:"trustedCerts"`

	// Insecure disables server certificate verification. Not settable from
	// the command line on purpose.
	Insecure bool `yaml:"insecure"`

	LogFile  string `yaml:"logFile"`
	LogLevel string `yaml:"logLevel"`
}

// DefaultServer returns the server configuration used when no file exists.
func DefaultServer() Server {
	return Server{
		Host:         transport.DefaultHost,
		Port:         transport.DefaultPort,
		CertFile:     DefaultServerCert,
		KeyFile:      DefaultServerKey,
		TrustedCerts: []string{DefaultClientCert},
		LogLevel:     "info",
	}
}

// DefaultClient returns the client configuration used when no file exists.
func DefaultClient() Client {
	return Client{
		Host:         transport.DefaultHost,
		Port:         transport.DefaultPort,
		CertFile:     DefaultClientCert,
		KeyFile:      DefaultClientKey,
		TrustedCerts: []string{DefaultServerCert},
		LogLevel:     "info",
	}
}

// LoadServer reads a server configuration file. A missing file is not an
// error: the defaults are returned unchanged.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()
	if err := loadYAML(path, &cfg); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// LoadClient reads a client configuration file. A missing file is not an
// error: the defaults are returned unchanged.
func LoadClient(path string) (Client, error) {
	cfg := DefaultClient()
	if err := loadYAML(path, &cfg); err != nil {
		return Client{}, err
	}
	return cfg, nil
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// Address returns the host:port string to listen on.
func (c Server) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Address returns the host:port string to connect to.
func (c Client) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Endpoint converts the server configuration into a transport endpoint.
func (c Server) Endpoint() transport.EndpointConfig {
	return transport.EndpointConfig{
		CertFile:         c.CertFile,
		KeyFile:          c.KeyFile,
		TrustedCertFiles: c.TrustedCerts,
		VerifyPeer:       true,
	}
}

// Endpoint converts the client configuration into a transport endpoint.
func (c Client) Endpoint() transport.EndpointConfig {
	return transport.EndpointConfig{
		CertFile:           c.CertFile,
		KeyFile:            c.KeyFile,
		TrustedCertFiles:   c.TrustedCerts,
		VerifyPeer:         !c.Insecure,
		ServerName:         c.Host,
		InsecureSkipVerify: c.Insecure,
	}
}
