package transport

import (
	"context"
	"net"
	"time"

	ncerr "cmdshell/internal/errors"
)

// TCPDialer opens plain TCP connections to a shell server.
type TCPDialer struct {
	// Timeout bounds connection establishment; zero leaves it to ctx.
	Timeout time.Duration
}

// Dial connects to address.  Failures are NetworkErrors with op
// "dial", retryable when the server may simply not be up yet.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout, KeepAlive: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, ncerr.Wrap("dial", address, err)
	}
	return conn, nil
}

// Close is a no-op; TCP dialing holds no shared state.
func (d *TCPDialer) Close() error { return nil }
