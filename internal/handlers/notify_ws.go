package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/streamify/internal/auth"
	"github.com/jason-s-yu/streamify/internal/middleware"
	"github.com/jason-s-yu/streamify/internal/notify"
)

const notificationsSubprotocol = "notifications"

// NotificationsWS upgrades GET /notifications/ws. The socket streams the user's
// events and accepts focus/blur frames that drive the unread counters.
func (s *Server) NotificationsWS(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())
	userID := sess.UserID()

	opts := &websocket.AcceptOptions{Subprotocols: []string{notificationsSubprotocol}}
	if u, err := url.Parse(s.FrontendOrigin); err == nil && u.Host != "" {
		opts.OriginPatterns = []string{u.Host}
	}
	c, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.Logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != notificationsSubprotocol {
		c.Close(BadSubprotocolError, "client must speak the notifications subprotocol")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := s.Broker.Subscribe(ctx, userID)
	if err != nil {
		s.Logger.WithField("user", userID).Errorf("error subscribing to notifications: %v", err)
		c.Close(SubscribeError, "notifications unavailable")
		return
	}
	defer sub.Close()

	middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, r.URL.Path, userID)

	ns := notify.NewSession(userID)
	out := make(chan notify.Event, 16)
	if snap, err := ns.Snapshot(); err == nil {
		out <- snap
	}

	go s.notificationsWritePump(ctx, cancel, c, out, userID)
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				frames, err := ns.HandleEvent(ev)
				if err != nil {
					s.Logger.WithField("user", userID).Warnf("malformed %s event: %v", ev.Type, err)
				}
				for _, f := range frames {
					select {
					case out <- f:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	err = s.notificationsReadPump(ctx, c, ns, out)
	cancel()
	middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, r.URL.Path, userID, err)
	c.Close(websocket.StatusNormalClosure, "")
}

// notificationsReadPump handles client frames until the socket closes. A nil
// return means the client closed normally.
func (s *Server) notificationsReadPump(ctx context.Context, c *websocket.Conn, ns *notify.Session, out chan<- notify.Event) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		snap, err := ns.HandleClient(msg)
		if err != nil {
			s.writeWSError(ctx, c, err.Error())
			continue
		}
		select {
		case out <- snap:
		case <-ctx.Done():
			return nil
		}
	}
}

// notificationsWritePump serializes writes and keeps the connection alive with
// pings. It cancels the session when it stops so the read side closes too.
func (s *Server) notificationsWritePump(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, out <-chan notify.Event, userID string) {
	defer cancel()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
			err := c.Ping(pingCtx)
			cancelPing()
			if err != nil {
				s.Logger.WithField("user", userID).Debugf("notifications ping failed: %v", err)
				return
			}
		case ev := <-out:
			data, err := json.Marshal(ev)
			if err != nil {
				s.Logger.WithField("user", userID).Warnf("failed to marshal notification: %v", err)
				continue
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancelWrite()
			if err != nil {
				s.Logger.WithFields(logrus.Fields{"user": userID, "type": ev.Type}).Warnf("failed to write to websocket: %v", err)
				return
			}
		}
	}
}

func (s *Server) writeWSError(ctx context.Context, c *websocket.Conn, msg string) {
	data, _ := json.Marshal(map[string]string{"type": "error", "message": msg})
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Write(writeCtx, websocket.MessageText, data); err != nil {
		s.Logger.Debugf("failed to write websocket error: %v", err)
	}
}
