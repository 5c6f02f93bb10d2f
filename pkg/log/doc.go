// Package log provides structured protocol event logging for secline
// endpoints.
//
// Events are captured at the transport layer (connection state), the wire
// layer (lines on the wire) and the session layer (command dispatch), and can
// be written to a CBOR log file, forwarded to slog, or both.
package log
