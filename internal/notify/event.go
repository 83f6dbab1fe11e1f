// Package notify delivers per-user real-time events (friend requests, new chat
// messages, unread counters) to connected websocket sessions.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/streamify/pkg/models"
)

type EventType string

const (
	FriendRequestReceived EventType = "friend_request.received"
	FriendRequestAccepted EventType = "friend_request.accepted"
	MessageNew            EventType = "message.new"
	Unread                EventType = "unread"
)

// Event is the envelope written to the websocket and to the redis channel.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// NewEvent marshals payload into an event stamped with the current time.
func NewEvent(t EventType, payload any) (Event, error) {
	ev := Event{Type: t, At: time.Now().UTC()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		ev.Payload = raw
	}
	return ev, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s event has no payload", e.Type)
	}
	return json.Unmarshal(e.Payload, v)
}

// FriendRequestPayload accompanies both friend request events. From is the
// user who caused the event.
type FriendRequestPayload struct {
	Request models.FriendRequest `json:"request"`
	From    *models.PublicUser   `json:"from,omitempty"`
}

// MessagePayload describes a chat message relayed from the hosted chat webhook.
type MessagePayload struct {
	ChannelID  string `json:"channelId"`
	MessageID  string `json:"messageId,omitempty"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName,omitempty"`
	Text       string `json:"text,omitempty"`
}

// UnreadPayload is the session's unread snapshot.
type UnreadPayload struct {
	Counts  map[string]int `json:"counts"`
	Total   int            `json:"total"`
	Focused string         `json:"focused,omitempty"`
}

// Publisher sends an event to every session of one user.
type Publisher interface {
	Publish(ctx context.Context, userID string, ev Event) error
}

// Subscription is a stream of one user's events.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Broker fans events out to subscribers.
type Broker interface {
	Publisher
	Subscribe(ctx context.Context, userID string) (Subscription, error)
	Close() error
}
