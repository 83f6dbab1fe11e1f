package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/streamify/internal/accounts"
	"github.com/jason-s-yu/streamify/internal/auth"
	"github.com/jason-s-yu/streamify/internal/chat"
	"github.com/jason-s-yu/streamify/internal/database/memory"
	"github.com/jason-s-yu/streamify/internal/friends"
	"github.com/jason-s-yu/streamify/internal/handlers"
	"github.com/jason-s-yu/streamify/internal/middleware"
	"github.com/jason-s-yu/streamify/internal/notify"
	"github.com/jason-s-yu/streamify/pkg/channel"
	"github.com/jason-s-yu/streamify/pkg/models"
)

// newTestServer runs the whole API over a memory store and counts requests per path.
func newTestServer(t *testing.T) (*httptest.Server, map[string]*atomic.Int64) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	chatAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(chatAPI.Close)

	store := memory.New()
	broker := notify.NewLocalBroker(logger)
	sessions, err := auth.NewSessionManager("", time.Hour, nil)
	require.NoError(t, err)
	chatClient := chat.NewClient(chat.Config{APIKey: "key", APISecret: "secret", BaseURL: chatAPI.URL}, chatAPI.Client(), logger)

	srv := &handlers.Server{
		Accounts:       accounts.NewService(store.Users(), sessions, chatClient, logger),
		Friends:        friends.NewService(store, broker, logger),
		Chat:           chatClient,
		Broker:         broker,
		DB:             store,
		Logger:         logger,
		Cookie:         handlers.CookieConfig{Name: "auth_token"},
		FrontendOrigin: "http://localhost:5173",
		AuthRateLimit:  middleware.RateLimit{Requests: 1000, Window: time.Minute, Burst: 1000},
	}

	hits := map[string]*atomic.Int64{}
	for _, p := range []string{"/auth/me", "/users/", "/users/friends", "/users/friend-requests", "/users/outgoing-friend-requests", "/chat/token"} {
		hits[p] = &atomic.Int64{}
	}
	routes := srv.Routes()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n, ok := hits[r.URL.Path]; ok {
			n.Add(1)
		}
		routes.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts, hits
}

func signupOnboarded(t *testing.T, c *Client, name, native, learning string) *models.User {
	t.Helper()
	ctx := context.Background()
	_, err := c.Signup(ctx, name, name+"@example.com", "secret1")
	require.NoError(t, err)
	u, err := c.Onboard(ctx, models.Profile{
		FullName:         name,
		Bio:              "hi",
		NativeLanguage:   native,
		LearningLanguage: learning,
		Location:         "Lisbon",
	})
	require.NoError(t, err)
	require.True(t, u.IsOnboarded)
	return u
}

func TestAuthUser(t *testing.T) {
	ts, _ := newTestServer(t)
	ctx := context.Background()
	c := New(ts.URL)

	u, err := c.AuthUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, u, "no session yet")

	created, err := c.Signup(ctx, "Ana", "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.False(t, created.IsOnboarded)

	u, err = c.AuthUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, created.ID, u.ID)

	require.NoError(t, c.Logout(ctx))
	u, err = c.AuthUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestAPIError(t *testing.T) {
	ts, _ := newTestServer(t)
	ctx := context.Background()
	c := New(ts.URL)

	_, err := c.Login(ctx, "nobody@example.com", "secret1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid email or password", apiErr.Message)

	_, err = c.Signup(ctx, "Ana", "ana@example.com", "secret1")
	require.NoError(t, err)
	_, err = c.Onboard(ctx, models.Profile{FullName: "Ana"})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.MissingFields, "bio")
}

func TestFriendFlowInvalidatesQueries(t *testing.T) {
	ts, hits := newTestServer(t)
	ctx := context.Background()

	alice := New(ts.URL)
	bob := New(ts.URL)
	a := signupOnboarded(t, alice, "alice", "english", "spanish")
	b := signupOnboarded(t, bob, "bob", "spanish", "english")

	recs, err := alice.RecommendedUsers(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, b.ID, recs[0].ID)

	// second read is served from cache
	_, err = alice.RecommendedUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits["/users/"].Load())

	out, err := alice.OutgoingFriendReqs(ctx)
	require.NoError(t, err)
	assert.Empty(t, out)

	fr, err := alice.SendFriendRequest(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestPending, fr.Status)

	out, err = alice.OutgoingFriendReqs(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.EqualValues(t, 2, hits["/users/outgoing-friend-requests"].Load())

	recs, err = alice.RecommendedUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.EqualValues(t, 2, hits["/users/"].Load())

	incoming, err := bob.FriendRequests(ctx)
	require.NoError(t, err)
	require.Len(t, incoming.IncomingReqs, 1)
	require.NoError(t, bob.AcceptFriendRequest(ctx, incoming.IncomingReqs[0].ID))

	incoming, err = bob.FriendRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, incoming.IncomingReqs)

	friendsOfBob, err := bob.Friends(ctx)
	require.NoError(t, err)
	require.Len(t, friendsOfBob, 1)
	assert.Equal(t, a.ID, friendsOfBob[0].ID)

	friendsOfAlice, err := alice.Friends(ctx)
	require.NoError(t, err)
	require.Len(t, friendsOfAlice, 1)

	err = alice.AcceptFriendRequest(ctx, fr.ID)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestChatScreen(t *testing.T) {
	ts, hits := newTestServer(t)
	ctx := context.Background()

	alice := New(ts.URL)
	bob := New(ts.URL)
	carol := New(ts.URL)
	a := signupOnboarded(t, alice, "alice", "english", "spanish")
	b := signupOnboarded(t, bob, "bob", "spanish", "english")
	c := signupOnboarded(t, carol, "carol", "french", "english")

	fr, err := alice.SendFriendRequest(ctx, b.ID)
	require.NoError(t, err)
	require.NoError(t, bob.AcceptFriendRequest(ctx, fr.ID))
	fr, err = carol.SendFriendRequest(ctx, a.ID)
	require.NoError(t, err)
	require.NoError(t, alice.AcceptFriendRequest(ctx, fr.ID))

	screen := alice.NewChatScreen(nil)
	_, err = screen.VideoCallMessage()
	assert.ErrorIs(t, err, ErrNoChannel)

	sess, err := screen.Open(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, sess.UserID)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "key", sess.APIKey)
	assert.Equal(t, channel.ID(a.ID, b.ID), sess.Channel.ID)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, sess.Channel.Members)

	msg, err := screen.VideoCallMessage()
	require.NoError(t, err)
	assert.Contains(t, msg, "http://localhost:5173/call/"+sess.Channel.ID)

	// the token is cached across opens
	_, err = screen.Open(ctx, c.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits["/chat/token"].Load())

	assert.Equal(t, 0, screen.HandleMessage(c.ID, c.ID), "focused conversation stays read")
	assert.Equal(t, 1, screen.HandleMessage(b.ID, b.ID))
	assert.Equal(t, 1, screen.HandleMessage(b.ID, a.ID), "own messages do not count")
	assert.Equal(t, 1, screen.Tracker().Count(b.ID))

	screen.Close()
	assert.Equal(t, 1, screen.HandleMessage(c.ID, c.ID))
	_, err = screen.VideoCallMessage()
	assert.ErrorIs(t, err, ErrNoChannel)

	_, err = alice.NewChatScreen(nil).Open(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestFilterFriends(t *testing.T) {
	ts, _ := newTestServer(t)
	ctx := context.Background()

	alice := New(ts.URL)
	bob := New(ts.URL)
	carol := New(ts.URL)
	signupOnboarded(t, alice, "alice", "english", "spanish")
	b := signupOnboarded(t, bob, "bob", "spanish", "english")
	c := signupOnboarded(t, carol, "carol", "french", "german")

	for _, id := range []string{b.ID, c.ID} {
		fr, err := alice.SendFriendRequest(ctx, id)
		require.NoError(t, err)
		other := bob
		if id == c.ID {
			other = carol
		}
		require.NoError(t, other.AcceptFriendRequest(ctx, fr.ID))
	}

	screen := alice.NewChatScreen(nil)
	all, err := screen.FilterFriends(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byLang, err := screen.FilterFriends(ctx, "GERMAN")
	require.NoError(t, err)
	require.Len(t, byLang, 1)
	assert.Equal(t, c.ID, byLang[0].ID)

	byName, err := screen.FilterFriends(ctx, " bo")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, b.ID, byName[0].ID)

	none, err := screen.FilterFriends(ctx, "klingon")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestQueryCacheExpiry(t *testing.T) {
	q := newQueryCache(50 * time.Millisecond)

	calls := 0
	fetch := func() (int, error) { calls++; return calls, nil }

	v, err := cached(q, "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, _ = cached(q, "k", fetch)
	assert.Equal(t, 1, v)

	time.Sleep(100 * time.Millisecond)
	v, _ = cached(q, "k", fetch)
	assert.Equal(t, 2, v)

	q.invalidate("k")
	v, _ = cached(q, "k", fetch)
	assert.Equal(t, 3, v)

	q.invalidateAll()
	v, _ = cached(q, "k", fetch)
	assert.Equal(t, 4, v)

	_, err = cached(q, "failing", func() (int, error) { return 0, errors.New("boom") })
	require.Error(t, err)
	_, ok := q.get("failing")
	assert.False(t, ok, "errors are not cached")
}

func TestWithCacheTTL(t *testing.T) {
	c := New("http://example.invalid", WithCacheTTL(time.Second), WithHTTPClient(&http.Client{Timeout: time.Second}))
	assert.Equal(t, time.Second, c.cache.ttl)
}
