// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"cmdshell/config"
	"cmdshell/internal/core"
	"cmdshell/internal/metrics"
	"cmdshell/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X cmdshell/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the appropriate cmdshell mode.
func Execute(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

// flagState holds flags that do not map one-to-one onto Config.
type flagState struct {
	configFile  string
	timeout     string
	verbose     int
	quiet       bool
	showVersion bool
	showHelp    bool
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load(configPath(args))
	if err != nil {
		return err
	}

	var st flagState
	fs := newFlagSet(cfg, &st)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr, fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}
	if st.showHelp {
		printUsage(stderr, fs)
		return nil
	}
	if st.showVersion {
		fmt.Fprintf(stdout, "cmdshell %s\n", version)
		return nil
	}

	if err := applyFlags(cfg, fs, &st); err != nil {
		return err
	}
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DryRun {
		return printConfig(stdout, cfg)
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(stderr)

	// SIGINT is advisory: the interpreter reports it, the server stops
	// accepting, the client hangs up.  SIGTERM cancels ctx in main.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	mode, err := core.Build(cfg, logger,
		core.WithVersion(version),
		core.WithMetrics(metrics.New()),
		core.WithInterrupts(interrupts),
		core.WithStdio(stdin, stdout),
	)
	if err != nil {
		return err
	}
	logger.Debug("running in %s mode", cfg.Mode())
	return mode.Run(ctx)
}

func newFlagSet(cfg *config.Config, st *flagState) *flag.FlagSet {
	fs := flag.NewFlagSet("cmdshell", flag.ContinueOnError)
	fs.SortFlags = false

	// ── connection ───────────────────────────────────────────────
	fs.BoolVarP(&cfg.Listen, "listen", "l", cfg.Listen, "Serve the shell on a TCP port")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Port to listen on (with -l)")
	fs.BoolVar(&cfg.RunOnce, "once", cfg.RunOnce, "Serve a single connection, then exit")
	fs.StringVarP(&st.timeout, "timeout", "w", "", "Connect timeout (seconds or Go duration)")
	fs.IntVar(&cfg.Retry, "retry", cfg.Retry, "Extra connection attempts while the server is down")

	// ── TLS ──────────────────────────────────────────────────────
	fs.BoolVar(&cfg.TLS, "tls", cfg.TLS, "Encrypt the connection with TLS")
	fs.StringVar(&cfg.CertFile, "cert", cfg.CertFile, "Server certificate (PEM, may include the key)")
	fs.StringVar(&cfg.KeyFile, "key", cfg.KeyFile, "Server private key (PEM)")
	fs.BoolVar(&cfg.Insecure, "insecure", cfg.Insecure, "Skip server certificate verification")

	// ── interpreter ──────────────────────────────────────────────
	fs.StringVar(&cfg.Prompt, "prompt", cfg.Prompt, "Prompt shown in local mode")
	fs.StringVar(&cfg.HistoryFile, "history", cfg.HistoryFile, "Line-editing history file")
	fs.StringSliceVar(&cfg.Hidden, "hide", cfg.Hidden, "Commands to leave out of help listings")
	fs.StringSliceVar(&cfg.Disabled, "disable", cfg.Disabled, "Commands to reject")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.Tunnel.Target, "tunnel", "T", cfg.Tunnel.Target, "Connect via SSH bastion [user@]host[:port]")
	fs.StringVar(&cfg.Tunnel.KeyPath, "ssh-key", cfg.Tunnel.KeyPath, "SSH private key file")
	fs.BoolVar(&cfg.Tunnel.Password, "ssh-password", cfg.Tunnel.Password, "Prompt for SSH password")
	fs.BoolVar(&cfg.Tunnel.Agent, "ssh-agent", cfg.Tunnel.Agent, "Use SSH agent")
	fs.BoolVar(&cfg.Tunnel.StrictHostKey, "strict-hostkey", cfg.Tunnel.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.Tunnel.KnownHosts, "known-hosts", cfg.Tunnel.KnownHosts, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&st.verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVarP(&st.quiet, "quiet", "q", false, "Only log errors")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Level of server records forwarded to clients")

	// ── meta ─────────────────────────────────────────────────────
	fs.StringVar(&st.configFile, "config", "", "YAML config file (default $"+config.EnvConfigFile+")")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Print the resolved configuration and exit")
	fs.BoolVar(&st.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&st.showHelp, "help", "h", false, "Show this help")
	return fs
}

// configPath finds --config ahead of the real parse, so the file can
// supply the defaults the flags then override.
func configPath(args []string) string {
	pre := flag.NewFlagSet("cmdshell", flag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.SetOutput(io.Discard)
	pre.Usage = func() {}

	var path string
	pre.StringVar(&path, "config", "", "")
	pre.Parse(args) //nolint:errcheck // the real parse reports errors
	return path
}

func applyFlags(cfg *config.Config, fs *flag.FlagSet, st *flagState) error {
	if fs.Changed("timeout") {
		d, err := config.ParseDuration(st.timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if fs.Changed("verbose") {
		cfg.Verbose = config.DefaultVerbose + st.verbose
		if cfg.Verbose > int(util.LogDebug) {
			cfg.Verbose = int(util.LogDebug)
		}
	}
	if st.quiet {
		cfg.Verbose = int(util.LogQuiet)
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────

func parsePositional(cfg *config.Config, remaining []string) error {
	if cfg.Listen {
		switch len(remaining) {
		case 0: // cmdshell -l -p PORT
		case 1:
			cfg.Host = remaining[0]
		default:
			return fmt.Errorf("too many arguments for listen mode")
		}
		return nil
	}

	switch len(remaining) {
	case 0: // local shell, or host and port from the file or environment
		return nil
	case 1: // host:port
		host, port, err := util.SplitAddr(remaining[0])
		if err != nil {
			return fmt.Errorf("port required after host %q", remaining[0])
		}
		cfg.Host, cfg.Port = host, port
		return nil
	case 2:
		port, err := config.ParsePort(remaining[1])
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		cfg.Host, cfg.Port = remaining[0], port
		return nil
	default:
		return fmt.Errorf("too many arguments: expected host port")
	}
}

func printConfig(w io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "# mode: %s\n", cfg.Mode())
	if cfg.ConfigFile != "" {
		fmt.Fprintf(w, "# file: %s\n", cfg.ConfigFile)
	}
	_, err = w.Write(data)
	return err
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `cmdshell - interactive command shell v%s

Runs a line-oriented command interpreter on the terminal, serves one
per TCP connection, or connects to such a server.

Usage:
  cmdshell [options]                                  Local shell
  cmdshell -l -p <port> [options] [bind-host]         Serve
  cmdshell [options] <host> <port>                    Connect
  cmdshell [options] <host:port>                      Connect
  cmdshell -T user@bastion [options] <host> <port>    Connect via SSH

Options:
`, version)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  cmdshell -l -p 4444 --once                  Serve one session
  cmdshell -l -p 4444 --tls --cert srv.pem    Serve over TLS
  cmdshell --tls --insecure shell.lan 4444    Connect to a TLS server
  cmdshell -T ops@bastion 10.0.0.5 4444       Reach a private server
  echo stats | cmdshell shell.lan 4444        Run one command
`)
}
