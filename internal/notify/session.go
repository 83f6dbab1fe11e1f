package notify

import (
	"encoding/json"
	"fmt"

	"github.com/jason-s-yu/streamify/pkg/unread"
)

// ClientMessage is sent by the browser over the notifications socket.
type ClientMessage struct {
	Type     string `json:"type"`
	FriendID string `json:"friendId,omitempty"`
}

// Session is the per-connection state of a notifications websocket: the
// viewer's unread counters and which conversation is open.
type Session struct {
	userID  string
	tracker *unread.Tracker
}

func NewSession(userID string) *Session {
	return &Session{userID: userID, tracker: unread.New()}
}

func (s *Session) Tracker() *unread.Tracker { return s.tracker }

// HandleClient applies a client frame and returns the unread snapshot to send back.
func (s *Session) HandleClient(raw []byte) (Event, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Event{}, fmt.Errorf("invalid client message: %w", err)
	}
	switch msg.Type {
	case "focus":
		if msg.FriendID == "" {
			return Event{}, fmt.Errorf("focus requires friendId")
		}
		s.tracker.Focus(msg.FriendID)
	case "blur":
		s.tracker.Blur()
	case "sync":
	default:
		return Event{}, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return s.Snapshot()
}

// HandleEvent returns the frames to forward for a brokered event. New messages
// update the counters and are followed by a fresh snapshot.
func (s *Session) HandleEvent(ev Event) ([]Event, error) {
	if ev.Type != MessageNew {
		return []Event{ev}, nil
	}
	var msg MessagePayload
	if err := ev.Decode(&msg); err != nil {
		return []Event{ev}, err
	}
	s.tracker.Receive(msg.SenderID, msg.SenderID == s.userID)
	snap, err := s.Snapshot()
	if err != nil {
		return []Event{ev}, err
	}
	return []Event{ev, snap}, nil
}

// Snapshot builds an unread event from the current counters.
func (s *Session) Snapshot() (Event, error) {
	return NewEvent(Unread, UnreadPayload{
		Counts:  s.tracker.Snapshot(),
		Total:   s.tracker.Total(),
		Focused: s.tracker.Focused(),
	})
}
