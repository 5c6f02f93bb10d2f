package service_test

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secline-protocol/secline-go/pkg/service"
	"github.com/secline-protocol/secline-go/pkg/wire"
)

// startSession runs a session over an in-memory pipe and returns the peer end
// plus a channel with the session result.
func startSession(t *testing.T, cfg service.Config) (net.Conn, *service.Session, chan error) {
	t.Helper()

	serverEnd, clientEnd := net.Pipe()
	cfg.Conn = serverEnd
	if cfg.RemoteAddr == "" {
		cfg.RemoteAddr = "127.0.0.1:50000"
	}

	sess := service.New(cfg)
	done := make(chan error, 1)
	go func() { done <- sess.Run() }()

	t.Cleanup(func() {
		clientEnd.Close()
		sess.Close()
	})
	return clientEnd, sess, done
}

func waitDone(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
		return nil
	}
}

func TestSessionEcho(t *testing.T) {
	peer, _, _ := startSession(t, service.Config{})
	r := bufio.NewReader(peer)

	_, err := peer.Write([]byte("echo hello\n"))
	require.NoError(t, err)

	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "hello\n", line)
}

func TestSessionDispatchCaseInsensitive(t *testing.T) {
	peer, _, _ := startSession(t, service.Config{})
	r := bufio.NewReader(peer)

	for _, cmd := range []string{"ECHO hi\n", "Echo hi\n", "echo hi\n"} {
		_, err := peer.Write([]byte(cmd))
		require.NoError(t, err)

		line, err := r.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "hi\n", line, "command %q", cmd)
	}
}

func TestSessionStatusIdempotent(t *testing.T) {
	peer, _, _ := startSession(t, service.Config{})
	r := bufio.NewReader(peer)

	readLines := func(n int) string {
		var sb strings.Builder
		for i := 0; i < n; i++ {
			line, err := r.ReadString('\n')
			require.NoError(t, err)
			sb.WriteString(line)
		}
		return sb.String()
	}

	_, err := peer.Write([]byte("status\n"))
	require.NoError(t, err)
	first := readLines(2)
	assert.Equal(t, wire.StatusResponse, first)

	_, err = peer.Write([]byte("status\n"))
	require.NoError(t, err)
	assert.Equal(t, first, readLines(2))
}

func TestSessionUnknownCommand(t *testing.T) {
	peer, _, _ := startSession(t, service.Config{})
	r := bufio.NewReader(peer)

	_, err := peer.Write([]byte("frobnicate now\n"))
	require.NoError(t, err)

	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "Unknown command: frobnicate now. Type 'help' for available commands.\n", line)
}

func TestSessionQuit(t *testing.T) {
	peer, sess, done := startSession(t, service.Config{})
	r := bufio.NewReader(peer)

	_, err := peer.Write([]byte("quit\n"))
	require.NoError(t, err)

	// Exactly one farewell line, then the transport is closed
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, wire.Farewell, line)

	require.NoError(t, waitDone(t, done))
	assert.Equal(t, service.StateClosed, sess.State())

	_, err = r.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)
}

func TestSessionPeerDisconnect(t *testing.T) {
	peer, sess, done := startSession(t, service.Config{})

	// Zero-length read: no response, clean close
	require.NoError(t, peer.Close())

	require.NoError(t, waitDone(t, done))
	assert.Equal(t, service.StateClosed, sess.State())
}

func TestSessionWelcomeBanner(t *testing.T) {
	peer, _, _ := startSession(t, service.Config{
		RemoteAddr:  "192.0.2.7:50000",
		SendWelcome: true,
	})
	r := bufio.NewReader(peer)

	banner, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, banner, "Connection secured")

	ipLine, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "Your IP: 192.0.2.7\n", ipLine)

	// Session is usable after the banner
	_, err = peer.Write([]byte("echo after-banner\n"))
	require.NoError(t, err)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "after-banner\n", line)
}

func TestSessionCloseIdempotent(t *testing.T) {
	_, sess, done := startSession(t, service.Config{})

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	assert.Equal(t, service.StateClosed, sess.State())

	// Run observes the closed transport and finishes
	waitDone(t, done)
}

func TestSessionOversizedLineEndsSession(t *testing.T) {
	peer, sess, done := startSession(t, service.Config{})

	go func() {
		// Larger than the line limit; the write may error once the session
		// closes the transport mid-line.
		_, _ = peer.Write([]byte(strings.Repeat("a", wire.DefaultMaxLineLength+10) + "\n"))
	}()

	err := waitDone(t, done)
	require.Error(t, err)
	assert.ErrorIs(t, err, wire.ErrLineTooLong)
	assert.Equal(t, service.StateClosed, sess.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "HANDSHAKING", service.StateHandshaking.String())
	assert.Equal(t, "ACTIVE", service.StateActive.String())
	assert.Equal(t, "CLOSING", service.StateClosing.String())
	assert.Equal(t, "CLOSED", service.StateClosed.String())
}
