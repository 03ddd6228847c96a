package config

// loader.go - configuration loading from a YAML file and the
// environment.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables
//   3. Config file
//   4. Defaults   (defaults.go)

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load returns the defaults overlaid with the config file at path (or
// $CMDSHELL_CONFIG when path is empty) and then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}
	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges the YAML document at path into c.  Keys absent from
// the file keep their current values; unknown keys are an error.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the CMDSHELL_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive); lists are
// comma-separated; durations take Go syntax ("5s") or whole seconds.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// variables override the existing value.
func LoadFromEnv(cfg *Config) error {
	if v := os.Getenv("CMDSHELL_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("CMDSHELL_PORT"); v > 0 {
		cfg.Port = v
	}
	if envBool("CMDSHELL_LISTEN") {
		cfg.Listen = true
	}
	if envBool("CMDSHELL_ONCE") {
		cfg.RunOnce = true
	}
	if v := envInt("CMDSHELL_RETRY"); v > 0 {
		cfg.Retry = v
	}
	if err := envDuration("CMDSHELL_TIMEOUT", &cfg.Timeout); err != nil {
		return err
	}

	// TLS
	if envBool("CMDSHELL_TLS") {
		cfg.TLS = true
	}
	if v := os.Getenv("CMDSHELL_CERT"); v != "" {
		cfg.CertFile = v
	}
	if v := os.Getenv("CMDSHELL_KEY"); v != "" {
		cfg.KeyFile = v
	}
	if envBool("CMDSHELL_INSECURE") {
		cfg.Insecure = true
	}

	// Interpreter
	if v := os.Getenv("CMDSHELL_PROMPT"); v != "" {
		cfg.Prompt = v
	}
	if v := os.Getenv("CMDSHELL_HISTORY"); v != "" {
		cfg.HistoryFile = v
	}
	if v := envList("CMDSHELL_HIDE"); v != nil {
		cfg.Hidden = v
	}
	if v := envList("CMDSHELL_DISABLE"); v != nil {
		cfg.Disabled = v
	}

	// Logging
	if v := os.Getenv("CMDSHELL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CMDSHELL_VERBOSE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CMDSHELL_VERBOSE: invalid number %q", v)
		}
		cfg.Verbose = n
	}

	// SSH tunnel
	if v := os.Getenv("CMDSHELL_TUNNEL"); v != "" {
		cfg.Tunnel.Target = v
	}
	if v := os.Getenv("CMDSHELL_SSH_KEY"); v != "" {
		cfg.Tunnel.KeyPath = v
	}
	if envBool("CMDSHELL_SSH_PASSWORD") {
		cfg.Tunnel.Password = true
	}
	if envBool("CMDSHELL_SSH_AGENT") {
		cfg.Tunnel.Agent = true
	}
	if envBool("CMDSHELL_STRICT_HOSTKEY") {
		cfg.Tunnel.StrictHostKey = true
	}
	if v := os.Getenv("CMDSHELL_KNOWN_HOSTS"); v != "" {
		cfg.Tunnel.KnownHosts = v
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

// ParseDuration accepts Go duration syntax or a bare number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
