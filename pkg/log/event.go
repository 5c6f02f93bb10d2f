package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// PeerCN is the common name from the peer certificate, when presented.
	PeerCN string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Line        *LineEvent        `cbor:"8,keyasint,omitempty"`  // Wire layer
	StateChange *StateChangeEvent `cbor:"9,keyasint,omitempty"`  // Connection/session state
	Error       *ErrorEvent       `cbor:"10,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming line.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing line.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the TLS connection layer.
	LayerTransport Layer = 0
	// LayerWire is the line framing layer.
	LayerWire Layer = 1
	// LayerSession is the command session layer.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState is a connection or session state change.
	CategoryState Category = 0
	// CategoryMessage is a line sent or received.
	CategoryMessage Category = 1
	// CategoryError is an error at any layer.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryMessage:
		return "MESSAGE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MaxLogLineSize is the maximum line length to include in log events.
// Longer lines are truncated in the event to bound log file growth.
const MaxLogLineSize = 1024

// LineEvent captures one line crossing the wire.
type LineEvent struct {
	// Size is the full line length in bytes, including the terminator.
	Size int `cbor:"1,keyasint"`

	// Text is the line content, truncated to MaxLogLineSize.
	Text string `cbor:"2,keyasint"`

	// Truncated indicates Text was cut short.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// StateChangeEvent captures a connection or session state transition.
type StateChangeEvent struct {
	// Entity that changed state.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState before the transition (empty on initial state).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState after the transition.
	NewState string `cbor:"3,keyasint"`

	// Reason for the transition, if notable (e.g. "quit", "peer disconnect").
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity identifies what kind of thing changed state.
type StateEntity uint8

const (
	// StateEntityConnection is a TLS connection.
	StateEntityConnection StateEntity = 0
	// StateEntitySession is a command session.
	StateEntitySession StateEntity = 1
)

// String returns the entity name.
func (e StateEntity) String() string {
	switch e {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// ErrorEvent captures an error with its context.
type ErrorEvent struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`

	// Context describes what was being attempted.
	Context string `cbor:"3,keyasint,omitempty"`
}

// NewLineEvent builds a LineEvent for the given line, truncating oversized
// content.
func NewLineEvent(line string) *LineEvent {
	ev := &LineEvent{Size: len(line) + 1, Text: line}
	if len(line) > MaxLogLineSize {
		ev.Text = line[:MaxLogLineSize]
		ev.Truncated = true
	}
	return ev
}
