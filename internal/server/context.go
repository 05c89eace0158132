package server

import (
	"context"

	sessiondomain "accounts-api/internal/session/domain"
)

type contextKey struct{ name string }

var sessionKey = contextKey{"session"}

// WithSession returns a context carrying the resolved session. Handlers read
// it back via GetSession.
func WithSession(ctx context.Context, s *sessiondomain.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// GetSession returns the session from context and true if set; otherwise nil, false.
func GetSession(ctx context.Context) (*sessiondomain.Session, bool) {
	v, ok := ctx.Value(sessionKey).(*sessiondomain.Session)
	return v, ok
}
