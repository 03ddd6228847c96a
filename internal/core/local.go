package core

import (
	"context"
	"io"

	"cmdshell/internal/capability"
	"cmdshell/internal/session"
	"cmdshell/util"
)

// LocalMode runs one interpreter on the process's own streams.
type LocalMode struct {
	Capability capability.Capability
	Logger     *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	Stdin  io.Reader
	Stdout io.Writer
}

// Run serves a single local session until exit or end of input.
func (m *LocalMode) Run(ctx context.Context) error {
	sess := session.New(nil, stdinOr(m.Stdin), stdoutOr(m.Stdout), m.Logger)
	defer sess.Close() //nolint:errcheck
	return m.Capability.Handle(ctx, sess)
}
