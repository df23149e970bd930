package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	goReset "github.com/MrEthical07/goReset"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testMessage() goReset.DeliveryMessage {
	return goReset.DeliveryMessage{
		RequestID:   "req-1",
		UserID:      "u1",
		Identifier:  "a@x.com",
		DisplayName: "Alice",
		Code:        "042917",
		ExpiresAt:   time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC),
	}
}

func TestSMTPAdapterBuildsMessage(t *testing.T) {
	a, err := NewSMTPAdapter(SMTPConfig{Host: "mail.example.com", From: "noreply@example.com", Username: "u", Password: "p"})
	require.NoError(t, err)

	var (
		gotAddr string
		gotTo   []string
		gotBody string
	)
	a.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotBody = addr, to, string(msg)
		assert.NotNil(t, auth)
		assert.Equal(t, "noreply@example.com", from)
		return nil
	}

	require.NoError(t, a.Deliver(context.Background(), testMessage()))
	assert.Equal(t, "mail.example.com:587", gotAddr)
	assert.Equal(t, []string{"a@x.com"}, gotTo)
	assert.Contains(t, gotBody, "Subject: Your password reset code\r\n")
	assert.Contains(t, gotBody, "Hello Alice,")
	assert.Contains(t, gotBody, "042917")
	assert.Contains(t, gotBody, "X-Reset-Request-ID: req-1")
}

func TestSMTPAdapterRequiresHostAndFrom(t *testing.T) {
	_, err := NewSMTPAdapter(SMTPConfig{Host: "mail.example.com"})
	assert.Error(t, err)
}

func TestSMTPAdapterRejectsNonEmailIdentifier(t *testing.T) {
	a, err := NewSMTPAdapter(SMTPConfig{Host: "mail.example.com", From: "noreply@example.com"})
	require.NoError(t, err)

	msg := testMessage()
	msg.Identifier = "alice"
	assert.Error(t, a.Deliver(context.Background(), msg))
}

func TestSMTPAdapterSendError(t *testing.T) {
	a, err := NewSMTPAdapter(SMTPConfig{Host: "mail.example.com", From: "noreply@example.com"})
	require.NoError(t, err)
	a.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("451 try again")
	}

	err = a.Deliver(context.Background(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp send")
}

func TestSMTPAdapterHonorsContext(t *testing.T) {
	a, err := NewSMTPAdapter(SMTPConfig{Host: "mail.example.com", From: "noreply@example.com"})
	require.NoError(t, err)

	release := make(chan struct{})
	defer close(release)
	a.send = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Deliver(ctx, testMessage()), context.DeadlineExceeded)
}

func TestWebhookAdapterPostsSignedPayload(t *testing.T) {
	secret := []byte("hook-secret")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, Sign(secret, body), r.Header.Get(SignatureHeader))

		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "a@x.com", payload["identifier"])
		assert.Equal(t, "042917", payload["code"])
		assert.Equal(t, "req-1", payload["request_id"])

		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	a, err := NewWebhookAdapter(WebhookConfig{URL: srv.URL, Secret: secret})
	require.NoError(t, err)
	assert.NoError(t, a.Deliver(context.Background(), testMessage()))
}

func TestWebhookAdapterNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(SignatureHeader))
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a, err := NewWebhookAdapter(WebhookConfig{URL: srv.URL})
	require.NoError(t, err)

	err = a.Deliver(context.Background(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookAdapterRequiresURL(t *testing.T) {
	_, err := NewWebhookAdapter(WebhookConfig{})
	assert.Error(t, err)
}

func TestLogAdapterHidesCodeByDefault(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	a := NewLogAdapter(zap.New(core), LogAdapterConfig{})

	require.NoError(t, a.Deliver(context.Background(), testMessage()))
	require.Equal(t, 1, logs.Len())

	entry := logs.All()[0]
	assert.Equal(t, "reset code issued", entry.Message)
	_, hasCode := entry.ContextMap()["code"]
	assert.False(t, hasCode)
	for _, v := range entry.ContextMap() {
		if s, ok := v.(string); ok {
			assert.False(t, strings.Contains(s, "042917"))
		}
	}
}

func TestLogAdapterRevealCode(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	a := NewLogAdapter(zap.New(core), LogAdapterConfig{RevealCode: true})

	require.NoError(t, a.Deliver(context.Background(), testMessage()))
	assert.Equal(t, "042917", logs.All()[0].ContextMap()["code"])
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	var calls int32
	failing := Func(func(context.Context, goReset.DeliveryMessage) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("relay down")
	})

	b := NewBreaker(failing, BreakerConfig{MinRequests: 3, FailureRatio: 0.5, Timeout: time.Minute})
	for i := 0; i < 3; i++ {
		assert.Error(t, b.Deliver(context.Background(), testMessage()))
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	err := b.Deliver(context.Background(), testMessage())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	var got goReset.DeliveryMessage
	b := NewBreaker(Func(func(_ context.Context, msg goReset.DeliveryMessage) error {
		got = msg
		return nil
	}), BreakerConfig{})

	require.NoError(t, b.Deliver(context.Background(), testMessage()))
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
