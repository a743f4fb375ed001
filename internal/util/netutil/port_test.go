package netutil

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) (*net.TCPListener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	tcp := ln.(*net.TCPListener)
	return tcp, tcp.Addr().(*net.TCPAddr).Port
}

// closedPort returns a port that was just released.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, port := listen(t)
	require.NoError(t, ln.Close())
	return port
}

func TestWaitForPort_Open(t *testing.T) {
	t.Parallel()
	_, port := listen(t)
	require.NoError(t, WaitForPort(context.Background(), "127.0.0.1", port, 2*time.Second))
}

func TestWaitForPort_Timeout(t *testing.T) {
	t.Parallel()
	port := closedPort(t)

	start := time.Now()
	err := WaitForPortEvery(context.Background(), "127.0.0.1", port, 150*time.Millisecond, 20*time.Millisecond)

	require.ErrorIs(t, err, ErrPortTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestWaitForPort_Cancelled(t *testing.T) {
	t.Parallel()
	port := closedPort(t)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	err := WaitForPortEvery(ctx, "127.0.0.1", port, time.Minute, 10*time.Millisecond)

	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrPortTimeout)
}
