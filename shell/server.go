package shell

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	ncerr "cmdshell/internal/errors"
	"cmdshell/internal/metrics"
	"cmdshell/internal/retry"
	"cmdshell/internal/session"
	"cmdshell/util"
)

// DefaultHandshakeTimeout bounds the server-side TLS handshake.
const DefaultHandshakeTimeout = 10 * time.Second

// errStopped ends the accept loop on interrupt or cancellation.
var errStopped = errors.New("server stopped")

// ServerConfig describes a shell server.  It is not modified after
// [NewServer].
type ServerConfig struct {
	Address string // host:port; port 0 picks an ephemeral port

	// RunOnce stops the server after the first session.  A connection
	// that fails the TLS handshake is not a session and does not count.
	RunOnce bool

	TLS      bool
	CertFile string
	KeyFile  string // optional when CertFile also holds the key

	// LogLevel filters the records forwarded to each client.  Nil
	// follows the server logger's level.
	LogLevel *util.LogLevel

	HandshakeTimeout time.Duration

	// Factory builds the interpreter for each connection.  It must
	// pass its opts through to [New].
	Factory Factory
}

// ServerOption configures optional Server collaborators.
type ServerOption func(*Server)

// WithServerMetrics records session and command statistics in m.
func WithServerMetrics(m *metrics.Collector) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithServerInterrupts stops the accept loop on a signal received while
// waiting for a client.  While a session runs the same signals go to
// its interpreter instead.
func WithServerInterrupts(ch <-chan os.Signal) ServerOption {
	return func(s *Server) { s.interrupts = ch }
}

// Server accepts TCP (optionally TLS) connections one at a time and
// runs a fresh interpreter on each.
type Server struct {
	cfg        ServerConfig
	logger     *util.Logger
	metrics    *metrics.Collector
	interrupts <-chan os.Signal
	tlsConfig  *tls.Config
	backoff    *retry.Backoff

	mu       sync.Mutex
	listener net.Listener
}

// NewServer validates cfg and loads the TLS key pair if TLS is on.
func NewServer(cfg ServerConfig, logger *util.Logger, opts ...ServerOption) (*Server, error) {
	if cfg.Factory == nil {
		return nil, ncerr.ErrNoFactory
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if logger == nil {
		logger = util.NewLogger(0)
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		// Temporary accept failures (EMFILE and friends) back off
		// instead of killing the server.
		backoff: &retry.Backoff{
			InitialDelay: 5 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2,
			MaxAttempts:  20,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.TLS {
		tc, err := loadTLSConfig(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		s.tlsConfig = tc
	}
	return s, nil
}

// Serve is shorthand for [NewServer] followed by [Server.Serve].
func Serve(ctx context.Context, cfg ServerConfig, logger *util.Logger, opts ...ServerOption) error {
	srv, err := NewServer(cfg, logger, opts...)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

func loadTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	if certFile == "" {
		return nil, ncerr.ErrNoCert
	}
	if keyFile == "" {
		keyFile = certFile
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS key pair %s: %w", certFile, err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Listen binds the listening socket.  Serve calls it when needed;
// calling it first lets callers learn the bound address.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}
	ln, err := listenTCP(s.cfg.Address)
	if err != nil {
		return ncerr.Wrap("listen", s.cfg.Address, err)
	}
	s.listener = ln
	s.logger.Debug("listening for connections on: %s", ln.Addr())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) closeListener() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		s.listener.Close()
	}
}

// Serve accepts connections until ctx is cancelled, an interrupt
// arrives while waiting for a client, or (with RunOnce) the first
// session ends.  A failing session never stops the loop.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	defer s.closeListener()

	for {
		conn, err := s.acceptWithRetry(ctx, ln)
		if errors.Is(err, errStopped) || ctx.Err() != nil {
			s.logger.Debug("no longer accepting connections on %s", ln.Addr())
			return nil
		}
		if err != nil {
			return ncerr.Wrap("accept", ln.Addr().String(), err)
		}

		served := s.serveConn(ctx, conn)

		if (s.cfg.RunOnce && served) || ctx.Err() != nil {
			return nil
		}
	}
}

func (s *Server) acceptWithRetry(ctx context.Context, ln net.Listener) (net.Conn, error) {
	var conn net.Conn
	err := s.backoff.Do(ctx, func(int) error {
		c, err := s.accept(ctx, ln)
		if err == nil {
			conn = c
			return nil
		}
		if errors.Is(err, errStopped) || !ncerr.IsTemporary(err) {
			return retry.Permanent(err)
		}
		s.logger.Warn("temporary accept error: %v", err)
		return err
	})
	return conn, err
}

// accept waits for one connection.  Accept itself cannot observe ctx or
// signals, so it runs aside and is unblocked by closing the listener.
func (s *Server) accept(ctx context.Context, ln net.Listener) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := ln.Accept()
		ch <- result{c, err}
	}()

	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
	case <-s.interrupts:
		s.logger.Debug("interrupt received while waiting for a connection")
	}

	s.closeListener()
	if r := <-ch; r.conn != nil {
		r.conn.Close()
	}
	return nil, errStopped
}

// serveConn runs one client from accept to teardown and reports
// whether an interpreter session was started.  Nothing it does can fail
// the accept loop.
func (s *Server) serveConn(ctx context.Context, raw net.Conn) (served bool) {
	remote := raw.RemoteAddr().String()
	s.logger.Info("received connection from: %s", remote)
	s.metrics.SessionOpened()
	defer s.metrics.SessionClosed()

	conn := raw
	if s.tlsConfig != nil {
		tc, err := s.handshake(ctx, raw)
		if err != nil {
			s.metrics.HandshakeFailed()
			s.metrics.RecordError(err.Error())
			s.logger.Warn("TLS handshake failed: %v", err)
			session.Shutdown(raw) //nolint:errcheck
			return false
		}
		conn = tc
	}

	sess := session.Open(conn, s.logger, s.metrics)
	sess.ForwardLogs(s.forwardLevel())
	served = true

	var runErr error
	defer func() {
		if r := recover(); r != nil {
			runErr = nil
			s.metrics.RecordError(fmt.Sprint(r))
			defer s.logger.Error("session with %s panicked: %v", remote, r)
		}
		if err := sess.Close(); err != nil {
			s.logger.Debug("teardown of %s: %v", remote, err)
		}
		if runErr != nil {
			s.metrics.RecordError(runErr.Error())
			s.logger.Warn("received a transport error during the interpreter loop: %v", runErr)
		}
		s.logger.Verbose("connection from %s closed", remote)
	}()

	sh := s.cfg.Factory(sess.Stdin, sess.Stdout,
		WithInterrupts(s.interrupts),
		WithLogger(s.logger),
		WithMetrics(s.metrics),
	)
	runErr = sh.Run(ctx)
	if ctx.Err() != nil {
		runErr = nil
	}
	return served
}

func (s *Server) handshake(ctx context.Context, raw net.Conn) (*tls.Conn, error) {
	tc := tls.Server(raw, s.tlsConfig)
	hctx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()
	if err := tc.HandshakeContext(hctx); err != nil {
		return nil, ncerr.Wrap("handshake", raw.RemoteAddr().String(), err)
	}
	return tc, nil
}

func (s *Server) forwardLevel() util.LogLevel {
	if s.cfg.LogLevel != nil {
		return *s.cfg.LogLevel
	}
	return s.logger.Level()
}
