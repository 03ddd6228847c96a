package core

import (
	"fmt"
	"io"
	"os"
	"os/user"

	"golang.org/x/term"

	"cmdshell/config"
	"cmdshell/internal/capability"
	"cmdshell/internal/commands"
	"cmdshell/internal/metrics"
	"cmdshell/internal/retry"
	"cmdshell/internal/transport"
	"cmdshell/shell"
	"cmdshell/tunnel"
	"cmdshell/util"
)

// Option supplies process state that does not live in a Config.
type Option func(*env)

type env struct {
	version    string
	metrics    *metrics.Collector
	interrupts <-chan os.Signal
	stdin      io.Reader
	stdout     io.Writer
}

// WithVersion sets the version reported by the version command.
func WithVersion(v string) Option {
	return func(e *env) { e.version = v }
}

// WithMetrics shares m with the stats command and the server.
func WithMetrics(m *metrics.Collector) Option {
	return func(e *env) { e.metrics = m }
}

// WithInterrupts routes interrupt signals to the mode.
func WithInterrupts(ch <-chan os.Signal) Option {
	return func(e *env) { e.interrupts = ch }
}

// WithStdio replaces the process's standard streams.
func WithStdio(in io.Reader, out io.Writer) Option {
	return func(e *env) { e.stdin, e.stdout = in, out }
}

// Build constructs the appropriate Mode from the given configuration.
// This is the single dispatch point between the CLI and the modes.
func Build(cfg *config.Config, logger *util.Logger, opts ...Option) (Mode, error) {
	e := &env{}
	for _, opt := range opts {
		opt(e)
	}
	if logger == nil {
		logger = util.NewLogger(cfg.Verbose)
	}

	switch cfg.Mode() {
	case config.ModeServe:
		return buildServe(cfg, logger, e)
	case config.ModeConnect:
		return buildConnect(cfg, logger, e)
	default:
		return buildLocal(cfg, logger, e), nil
	}
}

// ── mode builders ────────────────────────────────────────────────────

func buildLocal(cfg *config.Config, logger *util.Logger, e *env) Mode {
	opts := shellOptions(cfg, e)
	opts = append(opts, shell.WithInterrupts(e.interrupts))
	if isTerminal(stdinOr(e.stdin)) {
		opts = append(opts, shell.WithRawInput(), shell.WithHistoryFile(cfg.HistoryFile))
	}

	return &LocalMode{
		Capability: &capability.Shell{Options: opts},
		Logger:     logger,
		Stdin:      e.stdin,
		Stdout:     e.stdout,
	}
}

func buildServe(cfg *config.Config, logger *util.Logger, e *env) (Mode, error) {
	level, err := cfg.ForwardLevel()
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	return &ServeMode{
		Server: shell.ServerConfig{
			Address:          cfg.Address(),
			RunOnce:          cfg.RunOnce,
			TLS:              cfg.TLS,
			CertFile:         cfg.CertFile,
			KeyFile:          cfg.KeyFile,
			LogLevel:         level,
			HandshakeTimeout: cfg.HandshakeTimeout,
			Factory:          factory(shellOptions(cfg, e)),
		},
		Logger:     logger,
		Metrics:    e.metrics,
		Interrupts: e.interrupts,
	}, nil
}

func buildConnect(cfg *config.Config, logger *util.Logger, e *env) (Mode, error) {
	dialer, err := buildDialer(cfg, logger)
	if err != nil {
		return nil, err
	}

	var backoff *retry.Backoff
	if cfg.Retry > 0 {
		backoff = retry.Attempts(cfg.Retry, config.DefaultRetryDelay)
	}

	return &ConnectMode{
		Dialer:     dialer,
		Capability: &capability.Relay{},
		Address:    cfg.Address(),
		Logger:     logger,
		Backoff:    backoff,
		Interrupts: e.interrupts,
		Stdin:      e.stdin,
		Stdout:     e.stdout,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// shellOptions are the interpreter options common to every session.
func shellOptions(cfg *config.Config, e *env) []shell.Option {
	return []shell.Option{
		shell.WithCommands(commands.All(commands.Info{
			Version: e.version,
			Metrics: e.metrics,
		})...),
		shell.WithHidden(cfg.Hidden...),
		shell.WithDisabled(cfg.Disabled...),
		shell.WithPrompt(cfg.Prompt),
		shell.WithIntro(cfg.Intro),
		shell.WithMetrics(e.metrics),
	}
}

// factory builds interpreters with base options followed by the
// per-session options the server supplies.
func factory(base []shell.Option) shell.Factory {
	return func(in io.Reader, out io.Writer, opts ...shell.Option) *shell.Interpreter {
		all := make([]shell.Option, 0, len(base)+len(opts))
		all = append(all, base...)
		all = append(all, opts...)
		return shell.New(in, out, all...)
	}
}

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger) (transport.Dialer, error) {
	var d transport.Dialer = &transport.TCPDialer{Timeout: cfg.Timeout}

	if cfg.Tunnel.Target != "" {
		name, host, port, err := tunnel.ParseTarget(cfg.Tunnel.Target)
		if err != nil {
			return nil, err
		}
		if name == "" {
			name = currentUser()
		}
		d = transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          name,
			Host:          host,
			Port:          port,
			KeyPath:       cfg.Tunnel.KeyPath,
			PromptPass:    cfg.Tunnel.Password,
			UseAgent:      cfg.Tunnel.Agent,
			StrictHostKey: cfg.Tunnel.StrictHostKey,
			KnownHosts:    cfg.Tunnel.KnownHosts,
			ConnTimeout:   cfg.Timeout,
			KeepAlive:     cfg.Tunnel.KeepAlive,
		}, logger)
	}

	if cfg.TLS {
		d = transport.NewTLSDialer(d, cfg.Insecure, cfg.HandshakeTimeout)
	}
	return d, nil
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
