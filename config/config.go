// Package config defines the runtime configuration for cmdshell and
// loads it from defaults, a YAML file, the environment and flags, in
// increasing order of precedence.
package config

import (
	"fmt"
	"strconv"
	"time"

	"cmdshell/util"
)

// Mode is what the process does with its configuration.
type Mode int

const (
	// ModeLocal runs one interpreter on the process's own terminal.
	ModeLocal Mode = iota
	// ModeServe serves an interpreter per accepted connection.
	ModeServe
	// ModeConnect relays the terminal to a remote server.
	ModeConnect
)

func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeServe:
		return "serve"
	case ModeConnect:
		return "connect"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Config holds every tuneable of one cmdshell process.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	Listen  bool          `yaml:"listen"`
	Host    string        `yaml:"host"` // bind host with Listen, server host otherwise
	Port    int           `yaml:"port"`
	RunOnce bool          `yaml:"once"`
	Timeout time.Duration `yaml:"timeout"` // client dial timeout
	Retry   int           `yaml:"retry"`   // extra client dial attempts

	// ── TLS ──────────────────────────────────────────────────────────
	TLS              bool          `yaml:"tls"`
	CertFile         string        `yaml:"cert"`
	KeyFile          string        `yaml:"key"`
	Insecure         bool          `yaml:"insecure"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// ── Interpreter ──────────────────────────────────────────────────
	Prompt      string   `yaml:"prompt"`
	Intro       string   `yaml:"intro"`
	HistoryFile string   `yaml:"history"`
	Hidden      []string `yaml:"hide"`
	Disabled    []string `yaml:"disable"`

	// ── Logging ──────────────────────────────────────────────────────
	// Verbose is the local log level (0 quiet … 3 debug).
	Verbose int `yaml:"verbose"`
	// LogLevel filters records forwarded to clients; empty follows
	// Verbose.
	LogLevel string `yaml:"log_level"`

	// ── SSH tunnel (connect mode) ────────────────────────────────────
	Tunnel TunnelConfig `yaml:"tunnel"`

	// Set from the command line only.
	ConfigFile string `yaml:"-"`
	DryRun     bool   `yaml:"-"`
}

// TunnelConfig describes the optional SSH bastion for connect mode.
type TunnelConfig struct {
	Target        string        `yaml:"target"` // [user@]host[:port]
	KeyPath       string        `yaml:"key"`
	Password      bool          `yaml:"password"`
	Agent         bool          `yaml:"agent"`
	StrictHostKey bool          `yaml:"strict_hostkey"`
	KnownHosts    string        `yaml:"known_hosts"`
	KeepAlive     time.Duration `yaml:"keepalive"`
}

// Mode derives the run mode: -l serves, a host connects, neither runs
// locally.
func (c *Config) Mode() Mode {
	switch {
	case c.Listen:
		return ModeServe
	case c.Host != "":
		return ModeConnect
	default:
		return ModeLocal
	}
}

// Address is host:port for listening or dialing.
func (c *Config) Address() string {
	return util.FormatAddr(c.Host, c.Port)
}

// ForwardLevel parses LogLevel.  It returns nil when LogLevel is empty.
func (c *Config) ForwardLevel() (*util.LogLevel, error) {
	if c.LogLevel == "" {
		return nil, nil
	}
	l, err := util.ParseLogLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ParsePort parses a TCP port number in 1-65535.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}
