// Package netutil waits for candidate machines to accept TCP connections.
package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	// SSHPort is the port probed before a candidate's SSH handshake.
	SSHPort = 22

	// DefaultPollInterval is the delay between dial attempts.
	DefaultPollInterval = time.Second

	dialTimeout = 2 * time.Second
)

// ErrPortTimeout is returned when the port did not open within the timeout.
var ErrPortTimeout = errors.New("timed out waiting for port")

// WaitForPort dials ip:port until it accepts a connection, the timeout
// elapses, or ctx is done.
func WaitForPort(ctx context.Context, ip string, port int, timeout time.Duration) error {
	return WaitForPortEvery(ctx, ip, port, timeout, DefaultPollInterval)
}

// WaitForPortEvery is WaitForPort with a custom poll interval.
func WaitForPortEvery(ctx context.Context, ip string, port int, timeout, interval time.Duration) error {
	address := net.JoinHostPort(ip, strconv.Itoa(port))

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var d net.Dialer
	for {
		dctx, dcancel := context.WithTimeout(ctx, dialTimeout)
		conn, err := d.DialContext(dctx, "tcp", address)
		dcancel()
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w %s after %s", ErrPortTimeout, address, timeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
