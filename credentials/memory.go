package credentials

import (
	"context"
	"sync"
	"time"

	goReset "github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/internal"
)

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the clock used for CreatedAt and UpdatedAt. It must match
// the engine clock, or session revocation after a reset is skewed.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// MemoryStore is a goReset.CredentialStore backed by a map.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]goReset.CredentialRecord
	now     func() time.Time
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		records: make(map[string]goReset.CredentialRecord),
		now:     o.now,
	}
}

func (s *MemoryStore) FindCredential(ctx context.Context, identifier string) (goReset.CredentialRecord, error) {
	if err := ctx.Err(); err != nil {
		return goReset.CredentialRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[internal.NormalizeIdentifier(identifier)]
	if !ok {
		return goReset.CredentialRecord{}, goReset.ErrCredentialNotFound
	}
	return record, nil
}

func (s *MemoryStore) UpdateSecret(ctx context.Context, identifier, secretHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	identifier = internal.NormalizeIdentifier(identifier)

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[identifier]
	if !ok {
		return goReset.ErrCredentialNotFound
	}
	record.SecretHash = secretHash
	record.UpdatedAt = s.now().UTC()
	s.records[identifier] = record
	return nil
}

// CreateCredential stores record under its normalized identifier. Zero
// timestamps are filled from the store clock.
func (s *MemoryStore) CreateCredential(ctx context.Context, record goReset.CredentialRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record.Identifier = internal.NormalizeIdentifier(record.Identifier)
	if record.Identifier == "" {
		return goReset.ErrRegistrationInvalid
	}

	now := s.now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.Identifier]; ok {
		return goReset.ErrCredentialExists
	}
	s.records[record.Identifier] = record
	return nil
}

// Len reports the number of stored credentials.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
