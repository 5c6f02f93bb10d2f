// Command secline-client is a line-oriented TLS client for the secline server.
//
// Without arguments it opens an interactive session: each line typed at the
// prompt is sent as one command and the server's response is printed. With
// arguments, the arguments are joined into a single command, sent once, and
// the response printed (single-shot mode). `help`, `-h` or `--help` print
// usage without connecting.
//
// Usage:
//
//	secline-client                   # Interactive mode
//	secline-client <command>         # Single command mode
//
// Examples:
//
//	secline-client
//	secline-client "echo Hello World"
//	secline-client status
//
// Connection settings come from an optional client.yaml in the working
// directory. By default the client connects to localhost:8443, presents
// client.crt/client.key for mutual TLS and verifies the server against
// server.crt. When the client certificate pair is missing the client falls
// back to server-only authentication with a warning.
//
// The client always exits 0; connection failures are reported on stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/secline-protocol/secline-go/pkg/config"
	"github.com/secline-protocol/secline-go/pkg/transport"
	"github.com/secline-protocol/secline-go/pkg/wire"
)

func main() {
	args := os.Args[1:]

	if len(args) > 0 {
		switch args[0] {
		case "help", "-h", "--help":
			printUsage()
			return
		}
	}

	cfg, err := config.LoadClient(config.DefaultClientFile)
	if err != nil {
		stdlog.Fatalf("Configuration error: %v", err)
	}

	conn, ok := connect(cfg)
	if !ok {
		fmt.Println("Failed to connect to server")
		return
	}
	defer func() {
		conn.Close()
		fmt.Println("Disconnected from server")
	}()

	if len(args) > 0 {
		singleCommand(conn, strings.Join(args, " "))
		return
	}
	interactiveSession(conn)
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  secline-client                    # Interactive mode")
	fmt.Println("  secline-client <command>          # Single command mode")
	fmt.Println("\nExamples:")
	fmt.Println("  secline-client")
	fmt.Println("  secline-client \"echo Hello World\"")
	fmt.Println("  secline-client status")
	fmt.Println("  secline-client help")
}

// connect dials the server, reports the negotiated identity and cipher, and
// consumes the welcome banner.
func connect(cfg config.Client) (*transport.Conn, bool) {
	client, err := transport.NewClient(transport.ClientConfig{
		Endpoint: cfg.Endpoint(),
	})
	if err != nil {
		fmt.Printf("TLS configuration error: %v\n", err)
		return nil, false
	}
	if warn := client.CertWarning(); warn != nil {
		fmt.Printf("Warning: %v. Using server-only authentication.\n", warn)
	}

	fmt.Printf("Connecting to %s...\n", cfg.Address())

	conn, err := client.Connect(context.Background(), cfg.Address())
	if err != nil {
		switch {
		case transport.IsTimeout(err):
			fmt.Printf("Connection timed out: %v\n", err)
		case transport.IsTransportError(err):
			fmt.Printf("Connection refused. Is the server running on %s?\n", cfg.Address())
		case transport.IsHandshakeError(err):
			fmt.Printf("TLS handshake error: %v\n", err)
		default:
			fmt.Printf("Connection error: %v\n", err)
		}
		return nil, false
	}

	if identity := conn.Identity(); identity.Present() {
		fmt.Printf("Connected to server: %s\n", identity)
	}
	fmt.Printf("Connection secured with: %s\n", conn.CipherName())

	welcome, err := conn.Receive()
	if err != nil {
		fmt.Printf("Error reading welcome message: %v\n", err)
		conn.Close()
		return nil, false
	}
	fmt.Printf("Server welcome: %s", welcome)

	return conn, true
}

func singleCommand(conn *transport.Conn, command string) {
	fmt.Printf("Sending command: %s\n", command)

	response, ok := exchange(conn, command)
	if !ok {
		fmt.Println("No response from server")
		return
	}
	fmt.Printf("Server response: %s", response)
}

func interactiveSession(conn *transport.Conn) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "secline> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		fmt.Printf("Failed to create prompt: %v\n", err)
		return
	}
	defer rl.Close()

	fmt.Println("\nInteractive session started!")
	fmt.Println("Type commands to send to the server.")
	fmt.Println("Available commands: echo <message>, status, help, quit")
	fmt.Println(strings.Repeat("-", 50))

	for {
		line, err := rl.Readline()
		if err != nil {
			// EOF or interrupt ends the session
			if errors.Is(err, readline.ErrInterrupt) {
				fmt.Println("Interrupted")
			}
			fmt.Println("Closing connection...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		response, ok := exchange(conn, input)
		if !ok {
			return
		}
		fmt.Printf("Server: %s", response)

		if wire.Parse(input).Verb == wire.VerbQuit {
			fmt.Println("Closing connection...")
			return
		}
	}
}

// exchange sends one command and reads the one response.
func exchange(conn *transport.Conn, command string) (string, bool) {
	if err := conn.SendLine(command); err != nil {
		fmt.Printf("Error sending message: %v\n", err)
		return "", false
	}
	response, err := conn.Receive()
	if err != nil {
		fmt.Printf("Error receiving response: %v\n", err)
		return "", false
	}
	return response, true
}
