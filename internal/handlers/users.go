package handlers

import (
	"net/http"

	"github.com/jason-s-yu/streamify/internal/auth"
)

// RecommendedUsers handles GET /users/.
func (s *Server) RecommendedUsers(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())
	users, err := s.Friends.GetRecommendedUsers(r.Context(), sess.UserID())
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// MyFriends handles GET /users/friends?q=.
func (s *Server) MyFriends(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())
	friends, err := s.Friends.GetMyFriends(r.Context(), sess.UserID(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, friends)
}

// SendFriendRequest handles POST /users/friend-request/{id}, id being the recipient.
func (s *Server) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())
	fr, err := s.Friends.SendFriendRequest(r.Context(), sess.UserID(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, fr)
}

// AcceptFriendRequest handles PUT /users/friend-request/{id}/accept, id being the request.
func (s *Server) AcceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())
	if _, err := s.Friends.AcceptFriendRequest(r.Context(), r.PathValue("id"), sess.UserID()); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Friend request accepted"})
}

// FriendRequests handles GET /users/friend-requests.
func (s *Server) FriendRequests(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())
	res, err := s.Friends.GetFriendRequests(r.Context(), sess.UserID())
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// OutgoingFriendRequests handles GET /users/outgoing-friend-requests.
func (s *Server) OutgoingFriendRequests(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())
	reqs, err := s.Friends.GetOutgoingFriendReqs(r.Context(), sess.UserID())
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}
