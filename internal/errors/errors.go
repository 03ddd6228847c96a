// Package errors provides domain-specific error types for cmdshell.
//
// Network failures carry the operation that failed, because whether a
// retry can help depends on it: a refused dial heals once the server is
// up, a rejected certificate never does, and a full descriptor table
// on accept clears as sessions end.
package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrNotConnected = errors.New("not connected")
	ErrNoFactory    = errors.New("no interpreter factory configured")
	ErrNoCert       = errors.New("TLS requires a certificate file")
	ErrTimeout      = errors.New("operation timed out")
	ErrAuthFailed   = errors.New("authentication failed")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // "listen", "accept", "handshake" or "dial"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the same operation may succeed later
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SSHError represents a failure talking to an SSH bastion.
type SSHError struct {
	Op   string // "auth", "hostkey", "handshake" or "forward"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // flag name, without dashes
	Value   interface{} // the invalid value (nil if missing)
	Message string
	Hint    string // an example invocation or fix (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError and classifies it for op.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: retryableOp(op, err),
	}
}

// WrapSSH creates an SSHError.  A handshake the server refused for want
// of valid credentials is reported as op "auth" and matches
// [ErrAuthFailed].
func WrapSSH(op, host string, port int, err error) *SSHError {
	if op == "handshake" && err != nil && strings.Contains(err.Error(), "unable to authenticate") {
		op = "auth"
		err = fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether repeating the failed operation may
// succeed.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrAuthFailed) {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	var se *SSHError
	if errors.As(err, &se) {
		// The bastion is up; the server behind it may not be yet.
		return se.Op == "forward" || IsTimeout(se.Err)
	}
	return isTemporary(err)
}

// IsTemporary reports whether err is a transient resource or network
// condition, such as descriptor exhaustion during accept.
func IsTemporary(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return isTemporary(err)
}

// IsTimeout reports whether err is a deadline or timeout failure, such as
// a TLS handshake that never completed.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// retryableOp classifies err for the operation that produced it.
func retryableOp(op string, err error) bool {
	if err == nil {
		return false
	}
	switch op {
	case "dial":
		// A server that is starting refuses or resets connections.
		return errors.Is(err, syscall.ECONNREFUSED) ||
			errors.Is(err, syscall.ECONNRESET) ||
			IsTimeout(err) || isTemporary(err)
	case "handshake":
		// Certificate and protocol failures are permanent.
		return IsTimeout(err)
	case "listen":
		return false
	default:
		return isTemporary(err)
	}
}

// isTemporary inspects standard library error types.
func isTemporary(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // still the only EMFILE signal
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
