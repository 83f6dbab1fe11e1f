package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/streamify/internal/accounts"
	"github.com/jason-s-yu/streamify/internal/auth"
	"github.com/jason-s-yu/streamify/internal/chat"
	"github.com/jason-s-yu/streamify/internal/database/memory"
	"github.com/jason-s-yu/streamify/internal/friends"
	"github.com/jason-s-yu/streamify/internal/middleware"
	"github.com/jason-s-yu/streamify/internal/notify"
	"github.com/jason-s-yu/streamify/pkg/channel"
	"github.com/jason-s-yu/streamify/pkg/models"
)

const testSecret = "chat-secret"

type testEnv struct {
	handler http.Handler
	broker  *notify.LocalBroker
}

func newTestEnv(t *testing.T) *testEnv {
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
	chatClient := chat.NewClient(chat.Config{APIKey: "key", APISecret: testSecret, BaseURL: chatAPI.URL}, chatAPI.Client(), logger)

	srv := &Server{
		Accounts:       accounts.NewService(store.Users(), sessions, chatClient, logger),
		Friends:        friends.NewService(store, broker, logger),
		Chat:           chatClient,
		Broker:         broker,
		DB:             store,
		Logger:         logger,
		Cookie:         CookieConfig{Name: "auth_token", TTL: 7 * 24 * time.Hour},
		FrontendOrigin: "http://localhost:5173",
		AuthRateLimit:  middleware.RateLimit{Requests: 1000, Window: time.Minute, Burst: 1000},
	}
	return &testEnv{handler: srv.Routes(), broker: broker}
}

// do sends a request through the router with the given session cookie.
func (e *testEnv) do(t *testing.T, method, path, cookie string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: cookie})
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

type signedUp struct {
	user   models.User
	cookie string
}

func (e *testEnv) signup(t *testing.T, name string) signedUp {
	t.Helper()
	w := e.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"fullName": name,
		"email":    strings.ToLower(name) + "@example.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Success bool        `json:"success"`
		User    models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	var cookie string
	for _, c := range w.Result().Cookies() {
		if c.Name == "auth_token" {
			cookie = c.Value
			assert.True(t, c.HttpOnly)
			assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
		}
	}
	require.NotEmpty(t, cookie)
	return signedUp{user: resp.User, cookie: cookie}
}

func (e *testEnv) onboard(t *testing.T, u signedUp) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/auth/onboard", u.cookie, models.Profile{
		FullName:         u.user.FullName,
		Bio:              "hello",
		NativeLanguage:   "english",
		LearningLanguage: "spanish",
		Location:         "Lisbon",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func publicIDs(users []models.PublicUser) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

// TestFriendFlow walks the whole friend lifecycle through the HTTP API.
func TestFriendFlow(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "Alice")
	bob := env.signup(t, "Bob")
	env.onboard(t, alice)
	env.onboard(t, bob)

	recs := decode[[]models.PublicUser](t, env.do(t, http.MethodGet, "/users/", alice.cookie, nil))
	assert.Equal(t, []string{bob.user.ID}, publicIDs(recs))

	// alice sends friend request to bob
	w := env.do(t, http.MethodPost, "/users/friend-request/"+bob.user.ID, alice.cookie, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	fr := decode[models.FriendRequest](t, w)
	assert.Equal(t, models.FriendRequestPending, fr.Status)

	recs = decode[[]models.PublicUser](t, env.do(t, http.MethodGet, "/users/", alice.cookie, nil))
	assert.Empty(t, recs)

	outgoing := decode[[]models.FriendRequestView](t, env.do(t, http.MethodGet, "/users/outgoing-friend-requests", alice.cookie, nil))
	require.Len(t, outgoing, 1)
	assert.Equal(t, bob.user.ID, outgoing[0].Recipient.ID)

	reqs := decode[models.FriendRequestsResult](t, env.do(t, http.MethodGet, "/users/friend-requests", bob.cookie, nil))
	require.Len(t, reqs.IncomingReqs, 1)
	assert.Equal(t, alice.user.ID, reqs.IncomingReqs[0].Sender.ID)

	w = env.do(t, http.MethodPut, "/users/friend-request/bogus/accept", bob.cookie, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, "/users/friend-request/bogus", alice.cookie, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// alice cannot accept her own request
	w = env.do(t, http.MethodPut, "/users/friend-request/"+fr.ID+"/accept", alice.cookie, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPut, "/users/friend-request/"+fr.ID+"/accept", bob.cookie, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPut, "/users/friend-request/"+fr.ID+"/accept", bob.cookie, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	friendsA := decode[[]models.PublicUser](t, env.do(t, http.MethodGet, "/users/friends", alice.cookie, nil))
	assert.Equal(t, []string{bob.user.ID}, publicIDs(friendsA))
	friendsB := decode[[]models.PublicUser](t, env.do(t, http.MethodGet, "/users/friends?q=ali", bob.cookie, nil))
	assert.Equal(t, []string{alice.user.ID}, publicIDs(friendsB))

	w = env.do(t, http.MethodPost, "/users/friend-request/"+bob.user.ID, alice.cookie, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	body := decode[errorResponse](t, w)
	assert.False(t, body.Success)
	assert.Equal(t, "You are already friends with this user", body.Message)
}

func TestAuthEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ana := env.signup(t, "Ana")

	w := env.do(t, http.MethodPost, "/auth/signup", "", map[string]string{"fullName": "Ana", "email": "ana@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/auth/signup", "", map[string]string{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "nope!!"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", decode[errorResponse](t, w).Message)

	w = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/auth/me", ana.cookie, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.Contains(t, w.Body.String(), "ana@example.com")

	w = env.do(t, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/auth/onboard", ana.cookie, map[string]string{"fullName": "Ana"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"bio", "nativeLanguage", "learningLanguage", "location"}, decode[errorResponse](t, w).MissingFields)

	w = env.do(t, http.MethodPost, "/auth/logout", ana.cookie, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == "auth_token" && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)

	w = env.do(t, http.MethodGet, "/auth/me", ana.cookie, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "revoked token")
}

func TestRecommendationsRequireOnboarding(t *testing.T) {
	env := newTestEnv(t)
	a := env.signup(t, "Alice")
	env.signup(t, "Bob")

	recs := decode[[]models.PublicUser](t, env.do(t, http.MethodGet, "/users/", a.cookie, nil))
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestChatEndpoints(t *testing.T) {
	env := newTestEnv(t)
	alice, bob, carol := env.signup(t, "Alice"), env.signup(t, "Bob"), env.signup(t, "Carol")

	w := env.do(t, http.MethodGet, "/chat/token", alice.cookie, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tok := decode[tokenResponse](t, w)
	assert.NotEmpty(t, tok.Token)
	assert.Equal(t, "key", tok.APIKey)

	w = env.do(t, http.MethodGet, "/chat/channel/"+bob.user.ID, alice.cookie, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/chat/channel/not-a-user", alice.cookie, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	fr := decode[models.FriendRequest](t, env.do(t, http.MethodPost, "/users/friend-request/"+bob.user.ID, alice.cookie, nil))
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/users/friend-request/"+fr.ID+"/accept", bob.cookie, nil).Code)

	w = env.do(t, http.MethodGet, "/chat/channel/"+bob.user.ID, alice.cookie, nil)
	require.Equal(t, http.StatusOK, w.Code)
	d := decode[channel.Descriptor](t, w)
	assert.Equal(t, "messaging", d.Type)
	assert.Equal(t, channel.ID(alice.user.ID, bob.user.ID), d.ID)
	assert.Equal(t, "http://localhost:5173/call/"+d.ID, d.CallURL)

	fromBob := decode[channel.Descriptor](t, env.do(t, http.MethodGet, "/chat/channel/"+alice.user.ID, bob.cookie, nil))
	assert.Equal(t, d.ID, fromBob.ID)

	w = env.do(t, http.MethodGet, "/chat/channel/"+bob.user.ID, carol.cookie, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestChatWebhookRelaysMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, b := "01HZZZZZZZZZZZZZZZZZZZZZZA", "01HZZZZZZZZZZZZZZZZZZZZZZB"
	sub, err := env.broker.Subscribe(ctx, b)
	require.NoError(t, err)
	defer sub.Close()

	payload := []byte(`{"type":"message.new","cid":"messaging:` + channel.ID(a, b) + `","message":{"id":"m1","text":"hola","user":{"id":"` + a + `","name":"Ana"}}}`)

	post := func(sig string) int {
		req := httptest.NewRequest(http.MethodPost, "/chat/webhook", bytes.NewReader(payload))
		req.Header.Set(chat.SignatureHeader, sig)
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, post("deadbeef"))
	require.Equal(t, http.StatusOK, post(chat.Sign([]byte(testSecret), payload)))

	select {
	case ev := <-sub.Events():
		assert.Equal(t, notify.MessageNew, ev.Type)
		var p notify.MessagePayload
		require.NoError(t, ev.Decode(&p))
		assert.Equal(t, a, p.SenderID)
		assert.Equal(t, "hola", p.Text)
	case <-time.After(time.Second):
		t.Fatal("message was not relayed")
	}
}

func TestNotificationsWebsocket(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := env.signup(t, "Alice"), env.signup(t, "Bob")

	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Cookie", "auth_token="+bob.cookie)
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/notifications/ws", &websocket.DialOptions{
		Subprotocols: []string{"notifications"},
		HTTPHeader:   header,
	})
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	read := func() notify.Event {
		_, data, err := c.Read(ctx)
		require.NoError(t, err)
		var ev notify.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	}

	assert.Equal(t, notify.Unread, read().Type, "initial snapshot")

	// wait until the subscription is registered before triggering events
	require.Eventually(t, func() bool { return env.broker.Subscribers(bob.user.ID) == 1 }, time.Second, 10*time.Millisecond)

	w := env.do(t, http.MethodPost, "/users/friend-request/"+bob.user.ID, alice.cookie, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	ev := read()
	assert.Equal(t, notify.FriendRequestReceived, ev.Type)

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(`{"type":"focus","friendId":"`+alice.user.ID+`"}`)))
	ev = read()
	require.Equal(t, notify.Unread, ev.Type)
	var p notify.UnreadPayload
	require.NoError(t, ev.Decode(&p))
	assert.Equal(t, alice.user.ID, p.Focused)
}

func TestWebsocketRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/notifications/ws", &websocket.DialOptions{
		Subprotocols: []string{"notifications"},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestNotificationsWritePumpCancelsOnWriteFailure(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s := &Server{Logger: logger}

	stopped := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		// writes on a torn-down connection fail immediately
		_ = c.CloseNow()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		out := make(chan notify.Event, 1)
		out <- notify.Event{Type: notify.Unread}
		go s.notificationsWritePump(ctx, cancel, c, out, "u1")

		select {
		case <-ctx.Done():
			close(stopped)
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer c.CloseNow()

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("write pump did not cancel the session after a failed write")
	}
}
