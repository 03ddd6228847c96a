package config

import (
	"fmt"
	"strings"

	ncerr "cmdshell/internal/errors"
	"cmdshell/tunnel"
	"cmdshell/util"
)

// Validate checks that the configuration is internally consistent.  The
// first problem is returned as an [ncerr.ConfigError] with a hint.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return &ncerr.ConfigError{Field: "port", Value: c.Port,
			Message: "out of range 1-65535"}
	}

	switch c.Mode() {
	case ModeServe:
		if c.Port == 0 {
			return &ncerr.ConfigError{Field: "port",
				Message: "listen mode requires a port",
				Hint:    "cmdshell -l -p 4444"}
		}
		if c.TLS && c.CertFile == "" {
			return &ncerr.ConfigError{Field: "cert",
				Message: "a TLS server needs a certificate",
				Hint:    "pass --cert server.pem (the file may also hold the key)"}
		}
		if c.Tunnel.Target != "" {
			return &ncerr.ConfigError{Field: "tunnel", Value: c.Tunnel.Target,
				Message: "SSH tunnels apply to connect mode only",
				Hint:    "drop -l, or run the server on the far side of the bastion"}
		}
	case ModeConnect:
		if c.Port == 0 {
			return &ncerr.ConfigError{Field: "port",
				Message: "connect mode requires a port",
				Hint:    "cmdshell " + c.Host + " 4444"}
		}
	}

	if c.RunOnce && !c.Listen {
		return &ncerr.ConfigError{Field: "once",
			Message: "only applies to listen mode",
			Hint:    "cmdshell -l -p 4444 --once"}
	}
	if c.Retry < 0 {
		return &ncerr.ConfigError{Field: "retry", Value: c.Retry,
			Message: "must not be negative"}
	}
	if c.Verbose < int(util.LogQuiet) || c.Verbose > int(util.LogDebug) {
		return &ncerr.ConfigError{Field: "verbose", Value: c.Verbose,
			Message: "must be between 0 and 3"}
	}
	if _, err := c.ForwardLevel(); err != nil {
		return &ncerr.ConfigError{Field: "log-level", Value: c.LogLevel,
			Message: err.Error(),
			Hint:    "use quiet, info, verbose or debug"}
	}

	if err := checkNames("hide", c.Hidden); err != nil {
		return err
	}
	if err := checkNames("disable", c.Disabled); err != nil {
		return err
	}
	for _, name := range c.Disabled {
		if name == "exit" || name == "EOF" {
			return &ncerr.ConfigError{Field: "disable", Value: name,
				Message: "cannot be disabled",
				Hint:    "every session must be able to exit"}
		}
	}

	if c.Tunnel.Target != "" {
		if _, _, _, err := tunnel.ParseTarget(c.Tunnel.Target); err != nil {
			return &ncerr.ConfigError{Field: "tunnel", Value: c.Tunnel.Target,
				Message: err.Error()}
		}
	}
	return nil
}

func checkNames(field string, names []string) error {
	for _, n := range names {
		if strings.TrimSpace(n) == "" || strings.ContainsAny(n, " \t") {
			return &ncerr.ConfigError{Field: field, Value: fmt.Sprintf("%q", n),
				Message: "command names must be single non-empty words"}
		}
	}
	return nil
}
