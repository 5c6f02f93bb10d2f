package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/secline-protocol/secline-go/pkg/log"
)

// Framing constants.
const (
	// DefaultMaxLineLength is the default maximum request line length,
	// including the terminator.
	DefaultMaxLineLength = 4096
)

// Framing errors.
var (
	// ErrLineTooLong indicates a request line exceeding the maximum length.
	ErrLineTooLong = errors.New("line too long")
)

// LineReader reads LF-terminated lines from an underlying reader.
type LineReader struct {
	r             *bufio.Reader
	maxLineLength int

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewLineReader creates a line reader with the default line length limit.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{
		r:             bufio.NewReader(r),
		maxLineLength: DefaultMaxLineLength,
	}
}

// SetLogger configures protocol logging for this reader.
// Pass nil to disable logging.
func (lr *LineReader) SetLogger(logger log.Logger, connID string) {
	lr.logger = logger
	lr.connID = connID
}

// ReadLine reads one line and returns it without the terminator.
// A trailing CR is stripped so clients sending CRLF behave identically.
// Returns io.EOF when the peer has closed its write side with no pending
// data; a final unterminated line is returned as a normal line.
func (lr *LineReader) ReadLine() (string, error) {
	var buf []byte
	for {
		chunk, err := lr.r.ReadSlice('\n')
		buf = append(buf, chunk...)
		if len(buf) > lr.maxLineLength {
			return "", fmt.Errorf("%w: %d > %d", ErrLineTooLong, len(buf), lr.maxLineLength)
		}
		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF {
			if len(buf) == 0 {
				return "", io.EOF
			}
			break
		}
		return "", err
	}

	line := strings.TrimRight(string(buf), "\r\n")

	if lr.logger != nil {
		lr.logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: lr.connID,
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			Line:         log.NewLineEvent(line),
		})
	}

	return line, nil
}

// LineWriter writes LF-terminated responses to an underlying writer.
type LineWriter struct {
	w  io.Writer
	mu sync.Mutex

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewLineWriter creates a new line writer.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// SetLogger configures protocol logging for this writer.
// Pass nil to disable logging.
func (lw *LineWriter) SetLogger(logger log.Logger, connID string) {
	lw.logger = logger
	lw.connID = connID
}

// WriteResponse writes a response as a single write, appending the line
// terminator if missing. Thread-safe: can be called from multiple goroutines.
func (lw *LineWriter) WriteResponse(text string) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	lw.mu.Lock()
	defer lw.mu.Unlock()

	if _, err := io.WriteString(lw.w, text); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}

	if lw.logger != nil {
		lw.logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: lw.connID,
			Direction:    log.DirectionOut,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			Line:         log.NewLineEvent(strings.TrimSuffix(text, "\n")),
		})
	}

	return nil
}

// Codec combines line reading and writing over one stream.
type Codec struct {
	*LineReader
	*LineWriter
}

// NewCodec creates a codec for bidirectional line exchange.
func NewCodec(rw io.ReadWriter) *Codec {
	return &Codec{
		LineReader: NewLineReader(rw),
		LineWriter: NewLineWriter(rw),
	}
}

// SetLogger configures protocol logging for both directions.
// Pass nil to disable logging.
func (c *Codec) SetLogger(logger log.Logger, connID string) {
	c.LineReader.SetLogger(logger, connID)
	c.LineWriter.SetLogger(logger, connID)
}
