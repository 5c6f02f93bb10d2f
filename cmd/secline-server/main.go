// Command secline-server runs the secline command server.
//
// The server listens on localhost:8443 with mutual TLS and answers
// line-oriented commands (echo, status, help, quit). It takes no command
// line arguments; certificate paths and the listen address come from an
// optional server.yaml in the working directory, with built-in defaults
// (server.crt and server.key next to the binary, client.crt as the sole
// trusted client).
//
// Usage:
//
//	secline-server
//
// The server runs until SIGINT or SIGTERM.
package main

import (
	"context"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/secline-protocol/secline-go/pkg/config"
	"github.com/secline-protocol/secline-go/pkg/log"
	"github.com/secline-protocol/secline-go/pkg/service"
	"github.com/secline-protocol/secline-go/pkg/transport"
)

func main() {
	cfg, err := config.LoadServer(config.DefaultServerFile)
	if err != nil {
		stdlog.Fatalf("Configuration error: %v", err)
	}

	setupLogging(cfg.LogLevel)

	logger, closeLogger, err := buildProtocolLogger(cfg)
	if err != nil {
		stdlog.Fatalf("Failed to open log file: %v", err)
	}
	defer closeLogger()

	server, err := transport.NewServer(transport.ServerConfig{
		Endpoint: cfg.Endpoint(),
		Address:  cfg.Address(),
		Logger:   logger,
		Handler: func(conn *transport.ServerConn) {
			sess := service.New(service.Config{
				Conn:        conn,
				ConnID:      conn.ConnID(),
				RemoteAddr:  conn.RemoteAddr().String(),
				Identity:    conn.Identity(),
				Logger:      logger,
				SendWelcome: true,
			})
			if err := sess.Run(); err != nil {
				stdlog.Printf("Session %s ended with error: %v", conn.ConnID(), err)
			}
		},
		OnError: func(err error) {
			stdlog.Printf("Accept error: %v", err)
		},
	})
	if err != nil {
		stdlog.Fatalf("Invalid TLS configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := server.Start(ctx); err != nil {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
	stdlog.Printf("Server listening on %s (mutual TLS)", server.Addr())

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	stdlog.Printf("Received signal: %v", sig)
	stdlog.Println("Shutting down...")

	if err := server.Stop(); err != nil {
		stdlog.Printf("Error stopping server: %v", err)
	}

	stdlog.Println("Goodbye!")
}

func setupLogging(level string) {
	stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds)

	switch level {
	case "debug":
		stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds | stdlog.Lshortfile)
	case "warn", "error":
		stdlog.SetFlags(stdlog.Ltime)
	}
}

// buildProtocolLogger assembles the protocol event logger: slog to stderr,
// plus a CBOR file log when one is configured.
func buildProtocolLogger(cfg config.Server) (log.Logger, func(), error) {
	slogLevel := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		slogLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})
	console := log.NewSlogAdapter(slog.New(handler))

	if cfg.LogFile == "" {
		return console, func() {}, nil
	}

	fileLogger, err := log.NewFileLogger(cfg.LogFile)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := fileLogger.Close(); err != nil {
			stdlog.Printf("Error closing log file: %v", err)
		}
	}
	return log.NewMultiLogger(console, fileLogger), closer, nil
}
