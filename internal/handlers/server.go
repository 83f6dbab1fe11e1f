// Package handlers exposes the REST API, the chat webhook and the
// notifications websocket.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/streamify/internal/accounts"
	"github.com/jason-s-yu/streamify/internal/friends"
	"github.com/jason-s-yu/streamify/internal/middleware"
	"github.com/jason-s-yu/streamify/internal/notify"
)

// ChatService is the hosted chat integration as seen by the handlers.
type ChatService interface {
	Enabled() bool
	APIKey() string
	IssueToken(userID string) (string, error)
	VerifyWebhook(body []byte, signature string) bool
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	// TTL zero writes a browser-session cookie.
	TTL time.Duration
}

// Server holds the dependencies shared by all handlers.
type Server struct {
	Accounts       *accounts.Service
	Friends        *friends.Service
	Chat           ChatService
	Broker         notify.Broker
	DB             Pinger
	Logger         *logrus.Logger
	Cookie         CookieConfig
	FrontendOrigin string
	AuthRateLimit  middleware.RateLimit
}

// Routes builds the HTTP handler for the whole API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	session := middleware.RequireSession(s.Accounts, s.Cookie.Name, s.Logger)
	limited := middleware.RateLimitByIP(s.AuthRateLimit, s.Logger)
	protected := func(h http.HandlerFunc) http.Handler { return session(h) }

	// auth
	mux.Handle("POST /auth/signup", limited(http.HandlerFunc(s.Signup)))
	mux.Handle("POST /auth/login", limited(http.HandlerFunc(s.Login)))
	mux.HandleFunc("POST /auth/logout", s.Logout)
	mux.Handle("POST /auth/onboard", protected(s.Onboard))
	mux.Handle("GET /auth/me", protected(s.Me))

	// users and friends
	mux.Handle("GET /users/{$}", protected(s.RecommendedUsers))
	mux.Handle("GET /users/friends", protected(s.MyFriends))
	mux.Handle("POST /users/friend-request/{id}", protected(s.SendFriendRequest))
	mux.Handle("PUT /users/friend-request/{id}/accept", protected(s.AcceptFriendRequest))
	mux.Handle("GET /users/friend-requests", protected(s.FriendRequests))
	mux.Handle("GET /users/outgoing-friend-requests", protected(s.OutgoingFriendRequests))

	// chat
	mux.Handle("GET /chat/token", protected(s.ChatToken))
	mux.Handle("GET /chat/channel/{friendId}", protected(s.ChatChannel))
	mux.HandleFunc("POST /chat/webhook", s.ChatWebhook)

	// notifications
	mux.Handle("GET /notifications/ws", protected(s.NotificationsWS))

	mux.HandleFunc("GET /healthz", s.Health)

	return middleware.Chain(mux,
		middleware.LogMiddleware(s.Logger),
		middleware.CORS(s.FrontendOrigin),
	)
}

// Health pings storage.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.DB.Ping(ctx); err != nil {
			s.Logger.Warnf("health check failed: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
