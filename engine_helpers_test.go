package goReset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goReset/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type mockCredentialStore struct {
	mu      sync.Mutex
	records map[string]CredentialRecord
	now     func() time.Time
	hasher  *password.Argon2

	findErr   error
	updateErr error

	findCalls   int
	updateCalls int
}

func newMockCredentialStore(t *testing.T, now func() time.Time) *mockCredentialStore {
	t.Helper()

	hasher, err := password.NewArgon2(password.Config{
		Memory:           8 * 1024,
		Time:             1,
		Parallelism:      1,
		SaltLength:       16,
		KeyLength:        32,
		MinPasswordBytes: 3,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return &mockCredentialStore{
		records: make(map[string]CredentialRecord),
		now:     now,
		hasher:  hasher,
	}
}

func (m *mockCredentialStore) add(t *testing.T, identifier, secret string) CredentialRecord {
	t.Helper()

	hash, err := m.hasher.Hash(secret)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	now := m.now()
	record := CredentialRecord{
		UserID:      "u-" + identifier,
		Identifier:  identifier,
		DisplayName: strings.SplitN(identifier, "@", 2)[0],
		SecretHash:  hash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	m.mu.Lock()
	m.records[identifier] = record
	m.mu.Unlock()
	return record
}

func (m *mockCredentialStore) secretMatches(t *testing.T, identifier, secret string) bool {
	t.Helper()

	m.mu.Lock()
	record, ok := m.records[identifier]
	m.mu.Unlock()
	if !ok {
		t.Fatalf("no credential for %q", identifier)
	}
	ok, err := m.hasher.Verify(secret, record.SecretHash)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	return ok
}

func (m *mockCredentialStore) FindCredential(_ context.Context, identifier string) (CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.findCalls++
	if m.findErr != nil {
		return CredentialRecord{}, m.findErr
	}
	record, ok := m.records[identifier]
	if !ok {
		return CredentialRecord{}, ErrCredentialNotFound
	}
	return record, nil
}

func (m *mockCredentialStore) UpdateSecret(_ context.Context, identifier, secretHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	record, ok := m.records[identifier]
	if !ok {
		return ErrCredentialNotFound
	}
	record.SecretHash = secretHash
	record.UpdatedAt = m.now()
	m.records[identifier] = record
	return nil
}

func (m *mockCredentialStore) CreateCredential(_ context.Context, record CredentialRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[record.Identifier]; ok {
		return fmt.Errorf("create %q: %w", record.Identifier, ErrCredentialExists)
	}
	m.records[record.Identifier] = record
	return nil
}

func (m *mockCredentialStore) calls() (find, update int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findCalls, m.updateCalls
}

type captureDelivery struct {
	messages chan DeliveryMessage

	mu  sync.Mutex
	err error
}

func newCaptureDelivery() *captureDelivery {
	return &captureDelivery{messages: make(chan DeliveryMessage, 64)}
}

func (c *captureDelivery) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *captureDelivery) Deliver(_ context.Context, msg DeliveryMessage) error {
	c.messages <- msg

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *captureDelivery) next(t *testing.T) DeliveryMessage {
	t.Helper()

	select {
	case msg := <-c.messages:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for delivery")
		return DeliveryMessage{}
	}
}

func (c *captureDelivery) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()

	select {
	case msg := <-c.messages:
		t.Fatalf("unexpected delivery for %q", msg.Identifier)
	case <-time.After(wait):
	}
}

type testEnv struct {
	engine   *Engine
	store    *mockCredentialStore
	delivery *captureDelivery
	clock    *testClock
	redis    *miniredis.Miniredis
}

type testEngineOptions struct {
	useRedis bool
	sink     AuditSink
}

type testEngineOption func(*testEngineOptions)

func withMiniredis() testEngineOption {
	return func(o *testEngineOptions) { o.useRedis = true }
}

func withAuditSink(sink AuditSink) testEngineOption {
	return func(o *testEngineOptions) { o.sink = sink }
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PasswordReset.MinResponseTime = 0
	cfg.Password.MinLength = 3
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, opts ...testEngineOption) *testEnv {
	t.Helper()

	var o testEngineOptions
	for _, opt := range opts {
		opt(&o)
	}

	clock := newTestClock()
	env := &testEnv{
		store:    newMockCredentialStore(t, clock.Now),
		delivery: newCaptureDelivery(),
		clock:    clock,
	}

	builder := New().
		WithConfig(cfg).
		WithCredentialStore(env.store).
		WithDeliveryAdapter(env.delivery).
		WithClock(clock.Now)

	if o.useRedis {
		env.redis = miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: env.redis.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		builder = builder.WithRedis(rdb)
	}
	if o.sink != nil {
		builder = builder.WithAuditSink(o.sink)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

// eachBackend runs fn against the in-memory and the Redis-backed engine.
func eachBackend(t *testing.T, cfg Config, fn func(t *testing.T, env *testEnv)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, newTestEngine(t, cfg))
	})
	t.Run("redis", func(t *testing.T) {
		fn(t, newTestEngine(t, cfg, withMiniredis()))
	})
}

func wrongCode(code string) string {
	b := []byte(code)
	last := len(b) - 1
	b[last] = '0' + (b[last]-'0'+1)%10
	return string(b)
}

var errTestBackendDown = errors.New("backend down")
