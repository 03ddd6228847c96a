// Package transport opens client connections to a shell server.
// Dialers compose: a TLS dialer wraps a TCP or SSH-tunnelled one.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound connections.
type Dialer interface {
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases long-lived resources such as an SSH connection.
	// Stateless dialers return nil.
	Close() error
}
