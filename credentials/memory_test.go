package credentials

import (
	"context"
	"sync"
	"testing"
	"time"

	goReset "github.com/MrEthical07/goReset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCreateAndFind(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, s.CreateCredential(ctx, goReset.CredentialRecord{
		UserID:     "u1",
		Identifier: " A@X.com ",
		SecretHash: "hash-1",
	}))

	got, err := s.FindCredential(ctx, "a@x.COM")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "a@x.com", got.Identifier)
	assert.Equal(t, now, got.CreatedAt)
	assert.Equal(t, now, got.UpdatedAt)
}

func TestMemoryStoreDuplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateCredential(ctx, goReset.CredentialRecord{UserID: "u1", Identifier: "a@x.com"}))
	err := s.CreateCredential(ctx, goReset.CredentialRecord{UserID: "u2", Identifier: "A@x.com"})
	assert.ErrorIs(t, err, goReset.ErrCredentialExists)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreEmptyIdentifier(t *testing.T) {
	err := NewMemoryStore().CreateCredential(context.Background(), goReset.CredentialRecord{UserID: "u1", Identifier: "  "})
	assert.ErrorIs(t, err, goReset.ErrRegistrationInvalid)
}

func TestMemoryStoreNotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.FindCredential(ctx, "ghost@x.com")
	assert.ErrorIs(t, err, goReset.ErrCredentialNotFound)
	assert.ErrorIs(t, s.UpdateSecret(ctx, "ghost@x.com", "h"), goReset.ErrCredentialNotFound)
}

func TestMemoryStoreUpdateAdvancesUpdatedAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, s.CreateCredential(ctx, goReset.CredentialRecord{UserID: "u1", Identifier: "a@x.com", SecretHash: "old"}))

	now = now.Add(time.Minute)
	require.NoError(t, s.UpdateSecret(ctx, "A@x.com", "new"))

	got, err := s.FindCredential(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "new", got.SecretHash)
	assert.Equal(t, now, got.UpdatedAt)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().FindCredential(ctx, "a@x.com")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStoreConcurrentCreateSingleWinner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const callers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			if err := s.CreateCredential(ctx, goReset.CredentialRecord{UserID: "u", Identifier: "a@x.com"}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestMemoryStoreSatisfiesEngineReset(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := NewMemoryStore(WithClock(clock))

	codes := make(chan string, 1)
	cfg := goReset.DemoConfig()
	engine, err := goReset.New().
		WithConfig(cfg).
		WithClock(clock).
		WithCredentialStore(store).
		WithDeliveryAdapter(goReset.DeliveryFunc(func(_ context.Context, msg goReset.DeliveryMessage) error {
			codes <- msg.Code
			return nil
		})).
		Build()
	require.NoError(t, err)
	defer engine.Close()

	ctx := context.Background()
	_, err = engine.Register(ctx, goReset.RegisterRequest{Identifier: "a@x.com", Secret: "old"})
	require.NoError(t, err)

	resp, err := engine.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, resp.Found)

	var code string
	select {
	case code = <-codes:
	case <-time.After(2 * time.Second):
		t.Fatal("no code delivered")
	}

	ok, err := engine.FinalizePasswordReset(ctx, "a@x.com", code, "new")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = engine.Authenticate(ctx, "a@x.com", "new")
	assert.NoError(t, err)
}
