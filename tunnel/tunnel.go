// Package tunnel carries client connections to a shell server through an
// SSH bastion, for servers that listen only on a private network.
package tunnel

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strconv"
)

// Tunnel is an encrypted channel through which TCP connections can be
// opened.
type Tunnel interface {
	Connect(ctx context.Context) error
	Dial(ctx context.Context, network, address string) (net.Conn, error)
	Close() error
	IsAlive() bool
}

// DefaultPort is the SSH port used when a target omits one.
const DefaultPort = 22

var targetRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:@]+)(?::(\d+))?$`)

// ParseTarget splits "[user@]host[:port]".  The port defaults to 22; an
// empty user is left for the caller to fill in.
func ParseTarget(target string) (user, host string, port int, err error) {
	m := targetRe.FindStringSubmatch(target)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel %q: expected [user@]host[:port]", target)
	}
	user, host, port = m[1], m[2], DefaultPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	return user, host, port, nil
}
