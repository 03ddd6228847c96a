package core

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"cmdshell/internal/capability"
	ncerr "cmdshell/internal/errors"
	"cmdshell/internal/retry"
	"cmdshell/internal/session"
	"cmdshell/internal/transport"
	"cmdshell/util"
)

// ConnectMode dials a remote shell server and relays the local
// terminal to it.
type ConnectMode struct {
	Dialer     transport.Dialer
	Capability capability.Capability
	Address    string
	Logger     *util.Logger

	// Backoff re-dials a server that is not accepting yet.  Nil means
	// a single attempt.
	Backoff *retry.Backoff

	// Interrupts end the relay.  The remote interpreter sees end of
	// input and terminates its session.
	Interrupts <-chan os.Signal

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	Stdin  io.Reader
	Stdout io.Writer
}

// Run dials the server, creates a session, and hands it to the
// capability.  The transport is closed when Run returns.
func (m *ConnectMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	conn, err := m.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", m.Address, err)
	}
	m.Logger.Verbose("connected to %s", conn.RemoteAddr())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if m.Interrupts != nil {
		go func() {
			select {
			case <-m.Interrupts:
				m.Logger.Verbose("interrupt received, closing connection")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	sess := session.New(conn, stdinOr(m.Stdin), stdoutOr(m.Stdout), m.Logger)
	defer sess.Close() //nolint:errcheck

	err = m.Capability.Handle(ctx, sess)
	if ctx.Err() != nil && util.IsHarmless(err) {
		return nil
	}
	return err
}

func (m *ConnectMode) dial(ctx context.Context) (net.Conn, error) {
	m.Logger.Verbose("connecting to %s", m.Address)
	if m.Backoff == nil {
		return m.Dialer.Dial(ctx, "tcp", m.Address)
	}

	b := *m.Backoff
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		m.Logger.Warn("connection attempt %d failed: %v; retrying in %s",
			attempt, err, wait.Round(time.Millisecond))
	}

	var conn net.Conn
	err := b.Do(ctx, func(int) error {
		c, err := m.Dialer.Dial(ctx, "tcp", m.Address)
		if err != nil {
			if !redialable(ctx, err) {
				return retry.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	})
	return conn, err
}

// redialable reports whether a failed dial may succeed later.  A
// refused connection usually means the server is still starting;
// certificate and SSH authentication failures never heal.
func redialable(ctx context.Context, err error) bool {
	return ctx.Err() == nil && ncerr.IsRetryable(err)
}
