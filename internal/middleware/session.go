package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/streamify/internal/apperr"
	"github.com/jason-s-yu/streamify/internal/auth"
)

// Authenticator resolves a session token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Session, error)
}

// RequireSession reads the session cookie, resolves it once and stores the
// session in the request context. Requests without a valid session get 401.
func RequireSession(authn Authenticator, cookieName string, logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			if c, err := r.Cookie(cookieName); err == nil {
				token = c.Value
			}

			sess, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				var ae *apperr.Error
				if errors.As(err, &ae) && ae.Kind == apperr.Unauthorized {
					writeError(w, http.StatusUnauthorized, ae.Message)
					return
				}
				logger.Errorf("error in session middleware: %v", err)
				writeError(w, http.StatusInternalServerError, "Internal Server Error")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
		})
	}
}
