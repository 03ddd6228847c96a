package capability

import (
	"context"

	ncerr "cmdshell/internal/errors"
	"cmdshell/internal/session"
	"cmdshell/util"
)

// Relay connects the local streams to a remote shell.  End of local
// input half-closes the connection so the remote interpreter sees EOF
// and exits; Handle returns once the server has closed its side.
type Relay struct{}

// Handle pumps bytes in both directions until the connection closes.
func (r *Relay) Handle(ctx context.Context, sess *session.Session) error {
	if sess.Conn == nil {
		return ncerr.ErrNotConnected
	}
	return util.BidirectionalCopy(ctx, sess.Conn, sess.Stdin, sess.Stdout)
}
