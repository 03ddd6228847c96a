package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, the config file and environment variable loading.

const (
	// DefaultPrompt is shown before each line in local mode.
	DefaultPrompt = "cmdshell> "

	// DefaultVerbose prints warnings and connection events.
	DefaultVerbose = 1

	// DefaultConnTimeout bounds a client dial, SSH included.
	DefaultConnTimeout = 10 * time.Second

	// DefaultHandshakeTimeout bounds a TLS handshake on either side.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultRetryDelay is the wait before the first dial retry.
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultKeepAlive is the SSH keepalive interval.
	DefaultKeepAlive = 30 * time.Second

	// EnvConfigFile names the config file when --config is absent.
	EnvConfigFile = "CMDSHELL_CONFIG"
)

// Default returns a Config holding every default.
func Default() *Config {
	return &Config{
		Timeout:          DefaultConnTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
		Prompt:           DefaultPrompt,
		Verbose:          DefaultVerbose,
		Tunnel: TunnelConfig{
			KeepAlive: DefaultKeepAlive,
		},
	}
}
