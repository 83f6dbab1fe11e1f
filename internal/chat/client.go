package chat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/streamify/pkg/models"
)

// Config holds the hosted service credentials.
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string
	// TokenTTL applies to user tokens; zero issues non-expiring tokens.
	TokenTTL time.Duration
}

func (c Config) enabled() bool { return c.APIKey != "" && c.APISecret != "" }

// Client talks to the hosted chat REST API. A client built from an empty Config
// is a no-op.
type Client struct {
	cfg    Config
	rest   *resty.Client
	logger *logrus.Logger
	tokens *TokenIssuer
}

func NewClient(cfg Config, httpClient *http.Client, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	secret := ""
	if cfg.enabled() {
		secret = cfg.APISecret
	}
	rest := resty.NewWithClient(httpClient).
		SetBaseURL(cfg.BaseURL).
		SetHeader("Stream-Auth-Type", "jwt").
		SetQueryParam("api_key", cfg.APIKey)
	return &Client{cfg: cfg, rest: rest, logger: logger, tokens: NewTokenIssuer(secret, cfg.TokenTTL)}
}

// Enabled reports whether the client has credentials.
func (c *Client) Enabled() bool { return c.cfg.enabled() }

// APIKey is public and handed to the frontend alongside user tokens.
func (c *Client) APIKey() string { return c.cfg.APIKey }

// IssueToken signs a user token. ErrNotConfigured when disabled.
func (c *Client) IssueToken(userID string) (string, error) {
	return c.tokens.IssueToken(userID)
}

type chatUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// UpsertUsers creates or updates the chat profiles of users.
func (c *Client) UpsertUsers(ctx context.Context, users ...models.User) error {
	if !c.Enabled() || len(users) == 0 {
		return nil
	}

	body := struct {
		Users map[string]chatUser `json:"users"`
	}{Users: make(map[string]chatUser, len(users))}
	for _, u := range users {
		body.Users[u.ID] = chatUser{ID: u.ID, Name: u.FullName, Image: u.ProfilePic}
	}
	token, err := serverToken([]byte(c.cfg.APISecret))
	if err != nil {
		return fmt.Errorf("sign server token: %w", err)
	}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Authorization", token).
		SetBody(body).
		Post("/users")
	if err != nil {
		return fmt.Errorf("upsert chat users: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("upsert chat users: status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

// SyncUser upserts u and logs failures instead of returning them; a chat outage
// must not fail signup or onboarding.
func (c *Client) SyncUser(ctx context.Context, u models.User) {
	if err := c.UpsertUsers(ctx, u); err != nil {
		c.logger.WithField("user", u.ID).Warnf("error upserting chat user: %v", err)
		return
	}
	if c.Enabled() {
		c.logger.WithField("user", u.ID).Debug("chat user upserted")
	}
}
