package tunnel

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "cmdshell/internal/errors"
	"cmdshell/util"
)

// Defaults applied by [NewSSHTunnel].
const (
	DefaultConnTimeout = 30 * time.Second
	keepaliveRequest   = "keepalive@openssh.com"
)

// SSHConfig describes the bastion and how to authenticate to it.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration

	// KeepAlive sends an OpenSSH keepalive request at this interval;
	// a failed request marks the tunnel dead.  Zero disables it.
	KeepAlive time.Duration

	// Prompt reads passwords and key passphrases.  Nil reads from the
	// controlling terminal.
	Prompt PromptFunc
}

// SSHTunnel implements [Tunnel] with one SSH client connection; every
// Dial opens a direct-tcpip channel on it.
type SSHTunnel struct {
	config SSHConfig
	logger *util.Logger

	mu     sync.RWMutex
	client *ssh.Client
	alive  bool
	stop   chan struct{}
}

// NewSSHTunnel returns an unconnected tunnel.  cfg is copied.
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger) *SSHTunnel {
	c := *cfg
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ConnTimeout == 0 {
		c.ConnTimeout = DefaultConnTimeout
	}
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &SSHTunnel{config: c, logger: logger}
}

// Addr is the bastion's host:port.
func (t *SSHTunnel) Addr() string {
	return net.JoinHostPort(t.config.Host, strconv.Itoa(t.config.Port))
}

// Connect dials the bastion and completes the SSH handshake.  The
// handshake is bounded by ConnTimeout and by ctx.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	cfg := &t.config
	methods, err := BuildAuthMethods(cfg)
	if err != nil {
		return ncerr.WrapSSH("auth", cfg.Host, cfg.Port, err)
	}
	hostKeys, err := hostKeyCallback(cfg)
	if err != nil {
		return ncerr.WrapSSH("hostkey", cfg.Host, cfg.Port, err)
	}

	addr := t.Addr()
	t.logger.Debug("ssh: dialing %s as %s", addr, cfg.User)

	dialer := net.Dialer{Timeout: cfg.ConnTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return ncerr.Wrap("dial", addr, err)
	}

	deadline := time.Now().Add(cfg.ConnTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	raw.SetDeadline(deadline) //nolint:errcheck

	// NewClientConn does not watch ctx; closing the socket does.
	handshakeDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			raw.Close()
		case <-handshakeDone:
		}
	}()

	conn, chans, reqs, err := ssh.NewClientConn(raw, addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            methods,
		HostKeyCallback: hostKeys,
		Timeout:         cfg.ConnTimeout,
	})
	close(handshakeDone)
	if err != nil {
		raw.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ncerr.WrapSSH("handshake", cfg.Host, cfg.Port, err)
	}
	raw.SetDeadline(time.Time{}) //nolint:errcheck

	client := ssh.NewClient(conn, chans, reqs)
	stop := make(chan struct{})

	t.mu.Lock()
	if t.stop != nil {
		close(t.stop)
	}
	if t.client != nil {
		t.client.Close()
	}
	t.client = client
	t.alive = true
	t.stop = stop
	t.mu.Unlock()

	go t.monitor(client)
	if cfg.KeepAlive > 0 {
		go t.keepalive(client, stop)
	}
	t.logger.Verbose("ssh: connected to %s", addr)
	return nil
}

// Dial opens a connection to address from the bastion's side.
func (t *SSHTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	t.mu.RLock()
	client, alive := t.client, t.alive
	t.mu.RUnlock()

	if !alive || client == nil {
		return nil, ncerr.ErrNotConnected
	}

	t.logger.Debug("ssh: opening %s %s via %s", network, address, t.Addr())
	conn, err := client.DialContext(ctx, network, address)
	if err != nil {
		return nil, ncerr.WrapSSH("forward", t.config.Host, t.config.Port, err)
	}
	return conn, nil
}

// Close shuts the SSH connection down.  It is safe to call repeatedly.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.alive = false
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

// IsAlive reports whether the SSH connection is still up.
func (t *SSHTunnel) IsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alive
}

func (t *SSHTunnel) markDead(client *ssh.Client) {
	t.mu.Lock()
	if t.client == client {
		t.alive = false
	}
	t.mu.Unlock()
}

// monitor waits for the SSH connection to end.
func (t *SSHTunnel) monitor(client *ssh.Client) {
	err := client.Wait()
	t.markDead(client)
	if err != nil {
		t.logger.Debug("ssh: connection to %s closed: %v", t.Addr(), err)
	} else {
		t.logger.Debug("ssh: connection to %s closed", t.Addr())
	}
}

func (t *SSHTunnel) keepalive(client *ssh.Client, stop <-chan struct{}) {
	tick := time.NewTicker(t.config.KeepAlive)
	defer tick.Stop()

	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			if _, _, err := client.SendRequest(keepaliveRequest, true, nil); err != nil {
				t.logger.Warn("ssh: keepalive to %s failed: %v", t.Addr(), err)
				t.markDead(client)
				client.Close()
				return
			}
			t.logger.Debug("ssh: keepalive OK")
		}
	}
}
