package core

import (
	"context"
	"net"
	"os"

	"cmdshell/internal/metrics"
	"cmdshell/shell"
	"cmdshell/util"
)

// ServeMode runs a shell server: one interpreter per accepted
// connection, one connection at a time.
type ServeMode struct {
	Server     shell.ServerConfig
	Logger     *util.Logger
	Metrics    *metrics.Collector
	Interrupts <-chan os.Signal

	// OnListen, if set, is called with the bound address before the
	// first accept.
	OnListen func(net.Addr)
}

// Run binds the listener and serves until ctx is cancelled, an
// interrupt arrives between sessions, or the single session of a
// run-once server ends.
func (m *ServeMode) Run(ctx context.Context) error {
	srv, err := shell.NewServer(m.Server, m.Logger,
		shell.WithServerMetrics(m.Metrics),
		shell.WithServerInterrupts(m.Interrupts),
	)
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	scheme := "tcp"
	if m.Server.TLS {
		scheme = "tls"
	}
	m.Logger.Info("serving shell on %s (%s)", srv.Addr(), scheme)
	if m.OnListen != nil {
		m.OnListen(srv.Addr())
	}

	err = srv.Serve(ctx)
	m.Logger.Verbose("served %d session(s)", m.Metrics.TotalSessions())
	return err
}
