// Package capability defines what runs over an established session:
// an interpreter on the serving side ([Shell]) or a byte pump between
// the user's terminal and a remote interpreter ([Relay]).
package capability

import (
	"context"

	"cmdshell/internal/session"
)

// Capability runs against one session until it ends or ctx is
// cancelled.
type Capability interface {
	Handle(ctx context.Context, sess *session.Session) error
}
