package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/streamify/internal/apperr"
	"github.com/jason-s-yu/streamify/internal/auth"
	"github.com/jason-s-yu/streamify/internal/chat"
	"github.com/jason-s-yu/streamify/internal/database"
	"github.com/jason-s-yu/streamify/internal/notify"
	"github.com/jason-s-yu/streamify/pkg/channel"
)

type tokenResponse struct {
	Token  string `json:"token"`
	APIKey string `json:"apiKey,omitempty"`
}

// ChatToken handles GET /chat/token.
func (s *Server) ChatToken(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())
	token, err := s.Chat.IssueToken(sess.UserID())
	if errors.Is(err, chat.ErrNotConfigured) {
		writeError(w, r, s.Logger, apperr.Wrap(apperr.Unavailable, "Chat service is not configured", err))
		return
	}
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, APIKey: s.Chat.APIKey()})
}

// ChatChannel handles GET /chat/channel/{friendId}: the channel descriptor for
// the conversation with a friend.
func (s *Server) ChatChannel(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())
	friendID := r.PathValue("friendId")
	if friendID == sess.UserID() {
		writeError(w, r, s.Logger, apperr.New(apperr.Validation, "You can't chat with yourself"))
		return
	}
	if !database.ValidID(friendID) {
		writeError(w, r, s.Logger, apperr.New(apperr.Validation, "Invalid user id"))
		return
	}

	ok, err := s.Friends.AreFriends(r.Context(), sess.UserID(), friendID)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	if !ok {
		writeError(w, r, s.Logger, apperr.New(apperr.Forbidden, "You can only chat with your friends"))
		return
	}
	writeJSON(w, http.StatusOK, channel.New(s.FrontendOrigin, sess.UserID(), friendID))
}

// ChatWebhook handles POST /chat/webhook from the hosted chat service. New
// messages are relayed to the recipient's notification sessions.
func (s *Server) ChatWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.Chat.Enabled() {
		writeError(w, r, s.Logger, apperr.New(apperr.Unavailable, "Chat service is not configured"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, s.Logger, apperr.Wrap(apperr.Validation, "Invalid request body", err))
		return
	}
	if !s.Chat.VerifyWebhook(body, r.Header.Get(chat.SignatureHeader)) {
		writeError(w, r, s.Logger, apperr.New(apperr.Unauthorized, "Invalid webhook signature"))
		return
	}

	ev, err := chat.ParseWebhook(body)
	if err != nil {
		writeError(w, r, s.Logger, apperr.Wrap(apperr.Validation, "Invalid webhook payload", err))
		return
	}
	if ev.Type == string(notify.MessageNew) {
		s.relayMessage(r, ev)
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "ok"})
}

func (s *Server) relayMessage(r *http.Request, ev *chat.WebhookEvent) {
	a, b, ok := channel.Members(ev.ChannelID)
	sender := ev.SenderID()
	if !ok || (sender != a && sender != b) {
		s.Logger.WithFields(logrus.Fields{"channel": ev.ChannelID, "sender": sender}).Debug("ignoring message outside a friend channel")
		return
	}
	recipient := a
	if sender == a {
		recipient = b
	}

	payload := notify.MessagePayload{ChannelID: ev.ChannelID, SenderID: sender}
	if ev.Message != nil {
		payload.MessageID = ev.Message.ID
		payload.Text = ev.Message.Text
		payload.SenderName = ev.Message.User.Name
	}
	n, err := notify.NewEvent(notify.MessageNew, payload)
	if err == nil {
		err = s.Broker.Publish(r.Context(), recipient, n)
	}
	if err != nil {
		s.Logger.WithField("user", recipient).Warnf("error relaying chat message: %v", err)
	}
}
