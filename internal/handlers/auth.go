package handlers

import (
	"net/http"

	"github.com/jason-s-yu/streamify/internal/accounts"
	"github.com/jason-s-yu/streamify/internal/auth"
	"github.com/jason-s-yu/streamify/pkg/models"
)

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	c := &http.Cookie{
		Name:     s.Cookie.Name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	}
	if s.Cookie.TTL > 0 {
		c.MaxAge = int(s.Cookie.TTL.Seconds())
	}
	http.SetCookie(w, c)
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.Cookie.Name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Cookie.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

// Signup handles POST /auth/signup.
//
// Request payload:
//
//	{ "fullName": "Ana", "email": "ana@example.com", "password": "secret1" }
//
// Responds 201 with the new user and sets the session cookie.
func (s *Server) Signup(w http.ResponseWriter, r *http.Request) {
	var in accounts.SignupInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	res, err := s.Accounts.Signup(r.Context(), in)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	s.setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusCreated, userResponse{Success: true, User: res.User})
}

// Login handles POST /auth/login.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var in accounts.LoginInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	res, err := s.Accounts.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	s.setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusOK, userResponse{Success: true, User: res.User})
}

// Logout clears the cookie and revokes the session it carried, if any.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(s.Cookie.Name); err == nil {
		if err := s.Accounts.Logout(r.Context(), c.Value); err != nil {
			// the cookie is cleared regardless
			s.Logger.Warnf("error revoking session on logout: %v", err)
		}
	}
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Logout successful"})
}

// Onboard handles POST /auth/onboard. Missing fields are listed in missingFields.
func (s *Server) Onboard(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	var p models.Profile
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	u, err := s.Accounts.Onboard(r.Context(), sess.UserID(), p)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Success: true, User: u})
}

// Me returns the session user.
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, userResponse{Success: true, User: sess.User})
}
