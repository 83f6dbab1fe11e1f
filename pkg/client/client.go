// Package client is a typed Go client for the streamify API: the data layer a
// frontend needs, with a small query cache in front of the read endpoints.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jason-s-yu/streamify/pkg/channel"
	"github.com/jason-s-yu/streamify/pkg/models"
)

// Query cache keys.
const (
	KeyAuthUser           = "authUser"
	KeyFriends            = "friends"
	KeyRecommendedUsers   = "recommendedUsers"
	KeyFriendRequests     = "friendRequests"
	KeyOutgoingFriendReqs = "outgoingFriendReqs"
	KeyStreamToken        = "streamToken"
)

// DefaultCacheTTL is how long query results are reused.
const DefaultCacheTTL = 30 * time.Second

// APIError is a non-2xx response.
type APIError struct {
	Status        int      `json:"-"`
	Message       string   `json:"message"`
	MissingFields []string `json:"missingFields,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("streamify: %d %s", e.Status, e.Message)
}

// StreamToken is the hosted chat credential for the current user.
type StreamToken struct {
	Token  string `json:"token"`
	APIKey string `json:"apiKey,omitempty"`
}

type Option func(*Client)

// WithHTTPClient sends requests through hc. Its cookie jar is replaced.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.rest = resty.NewWithClient(hc) }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache = newQueryCache(ttl) }
}

// Client keeps the session cookie between calls. Safe for concurrent use.
type Client struct {
	rest  *resty.Client
	cache *queryCache
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{rest: resty.New(), cache: newQueryCache(DefaultCacheTTL)}
	for _, opt := range opts {
		opt(c)
	}
	c.rest.SetBaseURL(baseURL).
		SetCookieJar(newJar()).
		SetHeader("Accept", "application/json")
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req := c.rest.R().SetContext(ctx).SetError(&APIError{})
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr, ok := resp.Error().(*APIError)
		if !ok || apiErr.Message == "" {
			apiErr = &APIError{Message: http.StatusText(resp.StatusCode())}
		}
		apiErr.Status = resp.StatusCode()
		return apiErr
	}
	return nil
}

type userEnvelope struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
}

func (c *Client) authMutation(ctx context.Context, path string, body any) (*models.User, error) {
	var env userEnvelope
	if err := c.do(ctx, http.MethodPost, path, body, &env); err != nil {
		return nil, err
	}
	c.cache.invalidateAll()
	if env.User != nil {
		c.cache.set(KeyAuthUser, env.User)
	}
	return env.User, nil
}

func (c *Client) Signup(ctx context.Context, fullName, email, password string) (*models.User, error) {
	return c.authMutation(ctx, "/auth/signup", map[string]string{
		"fullName": fullName,
		"email":    email,
		"password": password,
	})
}

func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	return c.authMutation(ctx, "/auth/login", map[string]string{"email": email, "password": password})
}

func (c *Client) Onboard(ctx context.Context, p models.Profile) (*models.User, error) {
	return c.authMutation(ctx, "/auth/onboard", p)
}

func (c *Client) Logout(ctx context.Context) error {
	defer c.cache.invalidateAll()
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// AuthUser returns the logged-in user, or nil when there is no session.
func (c *Client) AuthUser(ctx context.Context) (*models.User, error) {
	return cached(c.cache, KeyAuthUser, func() (*models.User, error) {
		var env userEnvelope
		err := c.do(ctx, http.MethodGet, "/auth/me", nil, &env)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return env.User, nil
	})
}

func (c *Client) RecommendedUsers(ctx context.Context) ([]models.PublicUser, error) {
	return cached(c.cache, KeyRecommendedUsers, func() ([]models.PublicUser, error) {
		var out []models.PublicUser
		if err := c.do(ctx, http.MethodGet, "/users/", nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (c *Client) Friends(ctx context.Context) ([]models.PublicUser, error) {
	return cached(c.cache, KeyFriends, func() ([]models.PublicUser, error) {
		var out []models.PublicUser
		if err := c.do(ctx, http.MethodGet, "/users/friends", nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (c *Client) FriendRequests(ctx context.Context) (*models.FriendRequestsResult, error) {
	return cached(c.cache, KeyFriendRequests, func() (*models.FriendRequestsResult, error) {
		var out models.FriendRequestsResult
		if err := c.do(ctx, http.MethodGet, "/users/friend-requests", nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

func (c *Client) OutgoingFriendReqs(ctx context.Context) ([]models.FriendRequestView, error) {
	return cached(c.cache, KeyOutgoingFriendReqs, func() ([]models.FriendRequestView, error) {
		var out []models.FriendRequestView
		if err := c.do(ctx, http.MethodGet, "/users/outgoing-friend-requests", nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (c *Client) SendFriendRequest(ctx context.Context, recipientID string) (*models.FriendRequest, error) {
	var fr models.FriendRequest
	if err := c.do(ctx, http.MethodPost, "/users/friend-request/"+recipientID, nil, &fr); err != nil {
		return nil, err
	}
	c.cache.invalidate(KeyOutgoingFriendReqs, KeyRecommendedUsers)
	return &fr, nil
}

func (c *Client) AcceptFriendRequest(ctx context.Context, requestID string) error {
	if err := c.do(ctx, http.MethodPut, "/users/friend-request/"+requestID+"/accept", nil, nil); err != nil {
		return err
	}
	c.cache.invalidate(KeyFriendRequests, KeyFriends, KeyRecommendedUsers)
	return nil
}

func (c *Client) StreamToken(ctx context.Context) (*StreamToken, error) {
	return cached(c.cache, KeyStreamToken, func() (*StreamToken, error) {
		var out StreamToken
		if err := c.do(ctx, http.MethodGet, "/chat/token", nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// Channel fetches the channel descriptor for the conversation with friendID.
func (c *Client) Channel(ctx context.Context, friendID string) (*channel.Descriptor, error) {
	var d channel.Descriptor
	if err := c.do(ctx, http.MethodGet, "/chat/channel/"+friendID, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Invalidate drops the given cache keys so the next read refetches.
func (c *Client) Invalidate(keys ...string) { c.cache.invalidate(keys...) }
