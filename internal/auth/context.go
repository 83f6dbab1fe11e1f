package auth

import (
	"context"

	"github.com/jason-s-yu/streamify/pkg/models"
)

// Session is the authenticated caller, resolved once per request by the
// session middleware.
type Session struct {
	User   *models.User
	Claims *Claims
}

func (s *Session) UserID() string { return s.User.ID }

type sessionKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored by WithSession.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil && s.User != nil
}
