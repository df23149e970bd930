package delivery

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	goReset "github.com/MrEthical07/goReset"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body when a
// webhook secret is configured.
const SignatureHeader = "X-Reset-Signature"

type WebhookConfig struct {
	URL    string
	Secret []byte
	Client *http.Client
}

// WebhookAdapter posts each code to an HTTP endpoint, for example an SMS
// gateway or a notification service.
type WebhookAdapter struct {
	url    string
	secret []byte
	client *http.Client
}

type webhookPayload struct {
	RequestID   string    `json:"request_id"`
	UserID      string    `json:"user_id"`
	Identifier  string    `json:"identifier"`
	DisplayName string    `json:"display_name,omitempty"`
	Code        string    `json:"code"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func NewWebhookAdapter(cfg WebhookConfig) (*WebhookAdapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook url is required")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookAdapter{
		url:    cfg.URL,
		secret: append([]byte(nil), cfg.Secret...),
		client: client,
	}, nil
}

// Deliver posts msg and treats any non-2xx status as a failure.
func (a *WebhookAdapter) Deliver(ctx context.Context, msg goReset.DeliveryMessage) error {
	body, err := json.Marshal(webhookPayload{
		RequestID:   msg.RequestID,
		UserID:      msg.UserID,
		Identifier:  msg.Identifier,
		DisplayName: msg.DisplayName,
		Code:        msg.Code,
		ExpiresAt:   msg.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if len(a.secret) > 0 {
		req.Header.Set(SignatureHeader, Sign(a.secret, body))
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
