package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"cmdshell/tunnel"
	"cmdshell/util"
)

// SSHDialer opens connections from an SSH bastion's side.  The SSH
// connection is made on the first Dial and reused until Close.
type SSHDialer struct {
	tunnel tunnel.Tunnel
	target string
	logger *util.Logger

	mu        sync.Mutex
	connected bool
}

// NewSSHDialer returns a dialer through the bastion described by cfg.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	t := tunnel.NewSSHTunnel(cfg, logger)
	return &SSHDialer{tunnel: t, target: t.Addr(), logger: logger}
}

func (d *SSHDialer) connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected && d.tunnel.IsAlive() {
		return nil
	}
	d.logger.Verbose("establishing SSH tunnel via %s", d.target)
	if err := d.tunnel.Connect(ctx); err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}
	d.connected = true
	return nil
}

// Dial connects to address through the tunnel, reconnecting the tunnel
// if it has died since the last call.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.connect(ctx); err != nil {
		return nil, err
	}
	return d.tunnel.Dial(ctx, network, address)
}

// Close tears the tunnel down.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}
	d.connected = false
	return d.tunnel.Close()
}
