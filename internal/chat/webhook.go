package chat

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Signature"

// VerifyWebhook reports whether signature is the hex HMAC-SHA256 of body under secret.
func VerifyWebhook(secret, body []byte, signature string) bool {
	if len(secret) == 0 || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the hex signature VerifyWebhook accepts.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook checks body against the client's API secret.
func (c *Client) VerifyWebhook(body []byte, signature string) bool {
	if !c.Enabled() {
		return false
	}
	return VerifyWebhook([]byte(c.cfg.APISecret), body, signature)
}

type WebhookUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type WebhookMessage struct {
	ID   string      `json:"id"`
	Text string      `json:"text"`
	User WebhookUser `json:"user"`
}

// WebhookEvent is the subset of the hosted service's webhook payload we use.
type WebhookEvent struct {
	Type        string          `json:"type"`
	CID         string          `json:"cid"`
	ChannelID   string          `json:"channel_id"`
	ChannelType string          `json:"channel_type"`
	Message     *WebhookMessage `json:"message,omitempty"`
	User        *WebhookUser    `json:"user,omitempty"`
}

// ParseWebhook decodes body. channel_id is filled from cid ("type:id") when absent.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("webhook has no type")
	}
	if ev.ChannelID == "" && ev.CID != "" {
		if typ, id, ok := strings.Cut(ev.CID, ":"); ok {
			ev.ChannelType, ev.ChannelID = typ, id
		}
	}
	return &ev, nil
}

// SenderID returns the author of the event's message.
func (e *WebhookEvent) SenderID() string {
	if e.Message != nil && e.Message.User.ID != "" {
		return e.Message.User.ID
	}
	if e.User != nil {
		return e.User.ID
	}
	return ""
}
