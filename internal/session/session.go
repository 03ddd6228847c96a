// Package session represents a single connection lifecycle, binding a
// network connection with I/O endpoints and shared context.
//
// A server-side session owns everything that lives and dies with one
// client: the socket, the line-buffered streams over it and the log
// forwarder attached for the client's benefit.  [Session.Close] tears
// them down in a fixed order and is safe to call on every exit path.
package session

import (
	"bufio"
	"crypto/tls"
	"io"
	"net"
	"sync"
	"time"

	ncerr "cmdshell/internal/errors"
	"cmdshell/internal/metrics"
	"cmdshell/util"
)

// closeNotifyTimeout bounds the TLS close_notify write during shutdown.
const closeNotifyTimeout = 2 * time.Second

// Session encapsulates the runtime context for a single connection.
// Capabilities operate on sessions rather than raw connections,
// enabling clean testing and I/O abstraction.
type Session struct {
	Conn   net.Conn // nil for a local terminal session
	Stdin  io.Reader
	Stdout io.Writer
	Logger *util.Logger

	writer    *util.LineWriter
	detach    func()
	closeOnce sync.Once
	closeErr  error
}

// New creates a Session bound to the given connection and I/O pair.
func New(conn net.Conn, stdin io.Reader, stdout io.Writer, logger *util.Logger) *Session {
	return &Session{
		Conn:   conn,
		Stdin:  stdin,
		Stdout: stdout,
		Logger: logger,
	}
}

// Open creates a Session whose streams are a buffered reader and a
// line-buffered writer over conn.  Traffic is counted in m.
func Open(conn net.Conn, logger *util.Logger, m *metrics.Collector) *Session {
	counted := &countingConn{Conn: conn, m: m}
	w := util.NewLineWriter(counted)
	s := New(conn, bufio.NewReader(counted), w, logger)
	s.writer = w
	return s
}

// ForwardLogs relays the logger's records at or below level to the
// session's output until Close.  Calling it again is a no-op.
func (s *Session) ForwardLogs(level util.LogLevel) {
	if s.Logger == nil || s.detach != nil {
		return
	}
	s.detach = s.Logger.Attach(s.Stdout, level)
}

// Forwarding reports whether a log forwarder is attached.
func (s *Session) Forwarding() bool { return s.detach != nil }

// Close detaches the log forwarder, flushes the output stream, shuts
// the connection down in both directions and closes it.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error

		if s.detach != nil {
			s.detach()
		}
		if s.writer != nil {
			if err := s.writer.Flush(); err != nil && !util.IsHarmless(err) {
				errs = append(errs, err)
			}
		}
		if s.Conn != nil {
			if err := Shutdown(s.Conn); err != nil {
				errs = append(errs, err)
			}
		}
		s.closeErr = ncerr.Join(errs...)
	})
	return s.closeErr
}

// Shutdown performs an orderly bidirectional shutdown of conn and then
// closes it.  TLS connections send close_notify first.  Only the final
// close error is reported; the shutdown steps are best effort against a
// peer that may already be gone.
func Shutdown(conn net.Conn) error {
	raw := conn
	if tc, ok := conn.(*tls.Conn); ok {
		tc.SetWriteDeadline(time.Now().Add(closeNotifyTimeout)) //nolint:errcheck
		tc.CloseWrite()                                         //nolint:errcheck
		raw = tc.NetConn()
	}
	if tcp, ok := raw.(*net.TCPConn); ok {
		tcp.CloseWrite() //nolint:errcheck
		tcp.CloseRead()  //nolint:errcheck
	}
	if err := conn.Close(); err != nil && !util.IsHarmless(err) {
		return err
	}
	return nil
}

// countingConn records traffic in a metrics collector.
type countingConn struct {
	net.Conn
	m *metrics.Collector
}

func (c *countingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	c.m.BytesReceived(int64(n))
	return n, err
}

func (c *countingConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	c.m.BytesSent(int64(n))
	return n, err
}
