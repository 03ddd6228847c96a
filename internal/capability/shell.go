package capability

import (
	"context"

	"cmdshell/internal/session"
	"cmdshell/shell"
)

// Shell runs one interpreter over the session's streams.
type Shell struct {
	// Factory defaults to [shell.New].
	Factory shell.Factory
	Options []shell.Option
}

// Handle builds the interpreter and runs it to completion.  The
// session's logger is handed to commands.
func (s *Shell) Handle(ctx context.Context, sess *session.Session) error {
	factory := s.Factory
	if factory == nil {
		factory = shell.New
	}

	opts := make([]shell.Option, 0, len(s.Options)+1)
	if sess.Logger != nil {
		opts = append(opts, shell.WithLogger(sess.Logger))
	}
	opts = append(opts, s.Options...)

	return factory(sess.Stdin, sess.Stdout, opts...).Run(ctx)
}
