package client

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jason-s-yu/streamify/pkg/channel"
	"github.com/jason-s-yu/streamify/pkg/models"
	"github.com/jason-s-yu/streamify/pkg/unread"
)

// ErrNoChannel is returned by ChatScreen methods that need an open conversation.
var ErrNoChannel = errors.New("no conversation is open")

// ChatSession is what the chat SDK needs to join the conversation.
type ChatSession struct {
	UserID  string
	Token   string
	APIKey  string
	Channel channel.Descriptor
}

// ChatScreen binds the current user to one friend's conversation at a time and
// keeps unread counters for the others.
type ChatScreen struct {
	client  *Client
	tracker *unread.Tracker

	mu      sync.Mutex
	me      string
	current *ChatSession
}

// NewChatScreen returns a screen. tracker may be shared with other views; nil
// creates a private one.
func (c *Client) NewChatScreen(tracker *unread.Tracker) *ChatScreen {
	if tracker == nil {
		tracker = unread.New()
	}
	return &ChatScreen{client: c, tracker: tracker}
}

func (s *ChatScreen) Tracker() *unread.Tracker { return s.tracker }

// Open resolves the conversation with friendID and focuses it.
func (s *ChatScreen) Open(ctx context.Context, friendID string) (*ChatSession, error) {
	me, err := s.client.AuthUser(ctx)
	if err != nil {
		return nil, err
	}
	if me == nil {
		return nil, &APIError{Status: 401, Message: "not logged in"}
	}
	token, err := s.client.StreamToken(ctx)
	if err != nil {
		return nil, err
	}
	d, err := s.client.Channel(ctx, friendID)
	if err != nil {
		return nil, err
	}

	sess := &ChatSession{UserID: me.ID, Token: token.Token, APIKey: token.APIKey, Channel: *d}
	s.mu.Lock()
	s.me = me.ID
	s.current = sess
	s.mu.Unlock()
	s.tracker.Focus(friendID)
	return sess, nil
}

// Close leaves the open conversation.
func (s *ChatScreen) Close() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	s.tracker.Blur()
}

// HandleMessage records a message in friendID's conversation and returns its
// unread count.
func (s *ChatScreen) HandleMessage(friendID, senderID string) int {
	s.mu.Lock()
	me := s.me
	s.mu.Unlock()
	return s.tracker.Receive(friendID, senderID == me)
}

// VideoCallMessage is the text to post when starting a call in the open conversation.
func (s *ChatScreen) VideoCallMessage() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return "", ErrNoChannel
	}
	return channel.VideoCallMessage(s.current.Channel.CallURL), nil
}

// FilterFriends matches query against cached friends' names and languages,
// ignoring case. An empty query returns every friend.
func (s *ChatScreen) FilterFriends(ctx context.Context, query string) ([]models.PublicUser, error) {
	friends, err := s.client.Friends(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.PublicUser, 0, len(friends))
	for _, f := range friends {
		if q == "" ||
			strings.Contains(strings.ToLower(f.FullName), q) ||
			strings.Contains(strings.ToLower(f.NativeLanguage), q) ||
			strings.Contains(strings.ToLower(f.LearningLanguage), q) {
			out = append(out, f)
		}
	}
	return out, nil
}
