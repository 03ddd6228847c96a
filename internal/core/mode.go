// Package core is the orchestration layer.  It composes transports,
// sessions and capabilities into complete operational modes and
// provides a builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  session  →  capability  →  core  →  cmd (CLI)
//
// The server side is the exception: [ServeMode] delegates connection
// handling to shell.Server, which owns its sessions.
package core

import (
	"context"
	"io"
	"os"
)

// Mode represents a complete operational mode of cmdshell (local,
// serve or connect).  Each mode owns its full lifecycle from start to
// teardown.
type Mode interface {
	Run(ctx context.Context) error
}

// stdinOr returns r, or os.Stdin when r is nil.
func stdinOr(r io.Reader) io.Reader {
	if r != nil {
		return r
	}
	return os.Stdin
}

// stdoutOr returns w, or os.Stdout when w is nil.
func stdoutOr(w io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return os.Stdout
}
