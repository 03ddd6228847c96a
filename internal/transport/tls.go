package transport

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	ncerr "cmdshell/internal/errors"
)

// TLSDialer performs a client TLS handshake over connections from Base.
type TLSDialer struct {
	Base Dialer
	// Config is cloned per connection; ServerName defaults to the
	// dialed host.
	Config *tls.Config
	// HandshakeTimeout bounds the handshake; zero means ctx alone.
	HandshakeTimeout time.Duration
}

// NewTLSDialer wraps base.  insecure skips certificate verification,
// which self-signed shell servers usually need.
func NewTLSDialer(base Dialer, insecure bool, timeout time.Duration) *TLSDialer {
	return &TLSDialer{
		Base: base,
		Config: &tls.Config{
			InsecureSkipVerify: insecure, //nolint:gosec // --insecure
			MinVersion:         tls.VersionTLS12,
		},
		HandshakeTimeout: timeout,
	}
}

// Dial connects through Base and completes the handshake.
func (d *TLSDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	raw, err := d.Base.Dial(ctx, network, address)
	if err != nil {
		return nil, err
	}

	cfg := d.Config.Clone()
	if cfg == nil {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.ServerName == "" {
		if host, _, err := net.SplitHostPort(address); err == nil {
			cfg.ServerName = host
		}
	}

	if d.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.HandshakeTimeout)
		defer cancel()
	}

	conn := tls.Client(raw, cfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, ncerr.Wrap("handshake", address, err)
	}
	return conn, nil
}

// Close closes Base.
func (d *TLSDialer) Close() error { return d.Base.Close() }
