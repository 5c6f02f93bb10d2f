package wire

import (
	"fmt"
	"strings"
)

// Verb identifies a protocol command.
type Verb uint8

const (
	// VerbUnknown is any line that does not parse as a supported command.
	VerbUnknown Verb = iota
	// VerbEcho echoes its argument back.
	VerbEcho
	// VerbStatus reports server status.
	VerbStatus
	// VerbHelp lists the supported commands.
	VerbHelp
	// VerbQuit ends the session.
	VerbQuit
)

// String returns the verb name.
func (v Verb) String() string {
	switch v {
	case VerbEcho:
		return "ECHO"
	case VerbStatus:
		return "STATUS"
	case VerbHelp:
		return "HELP"
	case VerbQuit:
		return "QUIT"
	default:
		return "UNKNOWN"
	}
}

// Command is one parsed request line.
type Command struct {
	// Verb is the recognized command verb.
	Verb Verb

	// Arg is the echo argument, or the full line for unknown commands.
	Arg string
}

// Parse parses exactly one line of input into a Command.
// Verb matching is case-insensitive. Leading and trailing whitespace is
// stripped before matching; the echo argument is everything after the first
// space following the verb and is preserved as written.
func Parse(line string) Command {
	line = strings.TrimSpace(line)
	lower := strings.ToLower(line)

	switch {
	case lower == "status":
		return Command{Verb: VerbStatus}
	case lower == "help":
		return Command{Verb: VerbHelp}
	case lower == "quit":
		return Command{Verb: VerbQuit}
	case strings.HasPrefix(lower, "echo "):
		return Command{Verb: VerbEcho, Arg: line[len("echo "):]}
	default:
		return Command{Verb: VerbUnknown, Arg: line}
	}
}

// Fixed response texts. Every response ends with a line feed.
const (
	// StatusResponse is the fixed reply to the status command.
	StatusResponse = "Server status: OK\nConnected clients: Active\n"

	// HelpResponse enumerates the supported commands.
	HelpResponse = "Available commands:\n" +
		"  echo <message> - Echo back your message\n" +
		"  status - Check server status\n" +
		"  help - Show this help message\n" +
		"  quit - Disconnect from server\n"

	// Farewell is sent in reply to quit, immediately before close.
	Farewell = "Goodbye! Connection closed.\n"
)

// UnknownResponse formats the reply to an unrecognized line.
func UnknownResponse(line string) string {
	return fmt.Sprintf("Unknown command: %s. Type 'help' for available commands.\n", line)
}

// Welcome formats the banner sent to a client right after the handshake.
func Welcome(remoteIP string) string {
	return fmt.Sprintf("Welcome to secline server! Connection secured.\nYour IP: %s\n", remoteIP)
}

// ResponseFor produces the response for a parsed command.
// Every command gets a response; QUIT gets the farewell, after which the
// session is expected to close.
func ResponseFor(cmd Command) string {
	switch cmd.Verb {
	case VerbEcho:
		return cmd.Arg + "\n"
	case VerbStatus:
		return StatusResponse
	case VerbHelp:
		return HelpResponse
	case VerbQuit:
		return Farewell
	default:
		return UnknownResponse(cmd.Arg)
	}
}
