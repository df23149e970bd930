package stores

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryResetStore is an in-process reset record store. It honors the same
// contract as PasswordResetStore and is used for tests, demos and
// single-instance deployments without Redis.
type MemoryResetStore struct {
	mu      sync.Mutex
	records map[string]ResetRecord
}

func NewMemoryResetStore() *MemoryResetStore {
	return &MemoryResetStore{
		records: make(map[string]ResetRecord),
	}
}

// Save ignores ttl; expiry is enforced from ExpiresAt on read or by Sweep.
func (s *MemoryResetStore) Save(ctx context.Context, record *ResetRecord, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record == nil {
		return errors.New("nil reset record")
	}

	s.mu.Lock()
	s.records[record.Identifier] = *record
	s.mu.Unlock()
	return nil
}

func (s *MemoryResetStore) Get(ctx context.Context, identifier string) (*ResetRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	record, ok := s.records[identifier]
	s.mu.Unlock()
	if !ok {
		return nil, ErrResetNotFound
	}
	return &record, nil
}

func (s *MemoryResetStore) Consume(ctx context.Context, identifier string, check ConsumeCheck) (*ResetRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[identifier]
	if !ok {
		return nil, ErrResetNotFound
	}

	if err := check(&record); err != nil {
		var del *DeleteRecordError
		if errors.As(err, &del) {
			delete(s.records, identifier)
		}
		return nil, err
	}

	delete(s.records, identifier)
	return &record, nil
}

func (s *MemoryResetStore) Delete(ctx context.Context, identifier string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.records, identifier)
	s.mu.Unlock()
	return nil
}

func (s *MemoryResetStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for identifier, record := range s.records {
		if record.Expired(now) {
			delete(s.records, identifier)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored records, expired or not.
func (s *MemoryResetStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
