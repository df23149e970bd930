package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	resetRecordVersionV1 = 1
	resetSaltSize        = 16
)

var (
	ErrResetNotFound         = errors.New("reset record not found")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
	ErrResetContention       = errors.New("reset record contention")
)

// ResetRecord is the persisted form of an issued reset code. The plaintext
// code is never part of it.
type ResetRecord struct {
	Identifier string
	TokenHash  [32]byte
	Salt       [resetSaltSize]byte
	IssuedAt   int64 // unix nanoseconds
	ExpiresAt  int64 // unix nanoseconds
}

// Expired reports whether now is strictly after the record's expiry.
func (r *ResetRecord) Expired(now time.Time) bool {
	return now.UnixNano() > r.ExpiresAt
}

// ConsumeCheck decides the fate of a record read inside a Consume
// transaction. Returning nil deletes the record, a DeleteRecordError deletes it
// and reports the error, any other error leaves the record untouched.
type ConsumeCheck func(record *ResetRecord) error

// DeleteRecordError wraps a check outcome that should also remove the record.
type DeleteRecordError struct {
	Err error
}

func (e *DeleteRecordError) Error() string { return e.Err.Error() }
func (e *DeleteRecordError) Unwrap() error { return e.Err }

// PasswordResetStore keeps one reset record per identifier in Redis.
type PasswordResetStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewPasswordResetStore(redisClient redis.UniversalClient, prefix string) *PasswordResetStore {
	if prefix == "" {
		prefix = "rpr"
	}
	return &PasswordResetStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *PasswordResetStore) key(identifier string) string {
	return s.prefix + ":" + identifier
}

// Save writes the record, replacing any previous record for the same
// identifier in a single SET.
func (s *PasswordResetStore) Save(ctx context.Context, record *ResetRecord, ttl time.Duration) error {
	encoded, err := encodeResetRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(record.Identifier), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}

	return nil
}

func (s *PasswordResetStore) Get(ctx context.Context, identifier string) (*ResetRecord, error) {
	data, err := s.redis.Get(ctx, s.key(identifier)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResetNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}

	record, err := decodeResetRecord(data)
	if err != nil {
		return nil, ErrResetNotFound
	}
	return record, nil
}

// Consume reads the record under WATCH and lets check decide whether it is
// deleted. Concurrent consumers of the same record see exactly one nil.
func (s *PasswordResetStore) Consume(ctx context.Context, identifier string, check ConsumeCheck) (*ResetRecord, error) {
	const maxRetries = 4
	key := s.key(identifier)

	for i := 0; i < maxRetries; i++ {
		var (
			matched  *ResetRecord
			checkErr error
		)

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return ErrResetNotFound
				}
				return err
			}

			record, err := decodeResetRecord(data)
			if err != nil {
				// Unreadable records are dropped and treated as absent.
				checkErr = ErrResetNotFound
			} else {
				checkErr = check(record)
			}

			var del *DeleteRecordError
			if checkErr != nil && !errors.Is(checkErr, ErrResetNotFound) && !errors.As(checkErr, &del) {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}

			if checkErr == nil {
				matched = record
			}
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrResetNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
		}
		if checkErr != nil {
			return nil, checkErr
		}

		return matched, nil
	}

	return nil, ErrResetContention
}

func (s *PasswordResetStore) Delete(ctx context.Context, identifier string) error {
	if err := s.redis.Del(ctx, s.key(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return nil
}

// Sweep removes records whose logical expiry has passed. Redis TTLs already
// evict most records; this catches ones kept alive by clock drift between
// the service and Redis.
func (s *PasswordResetStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.prefix+":*", 256).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
		}

		for _, key := range keys {
			identifier := key[len(s.prefix)+1:]
			_, err := s.Consume(ctx, identifier, func(record *ResetRecord) error {
				if record.Expired(now) {
					return nil
				}
				return errResetStillActive
			})
			switch {
			case err == nil:
				removed++
			case errors.Is(err, errResetStillActive), errors.Is(err, ErrResetNotFound), errors.Is(err, ErrResetContention):
			default:
				return removed, err
			}
		}

		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

var (
	errResetStillActive   = errors.New("reset record still active")
	errInvalidResetRecord = errors.New("invalid reset record")
)

func encodeResetRecord(record *ResetRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(resetRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.Identifier) > 65535 {
		return nil, errors.New("reset record identifier too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Identifier))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Identifier)
	buf.Write(record.Salt[:])
	buf.Write(record.TokenHash[:])

	return buf.Bytes(), nil
}

func decodeResetRecord(data []byte) (*ResetRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidResetRecord, err)
	}
	if version != resetRecordVersionV1 {
		return nil, fmt.Errorf("%w: version %d", errInvalidResetRecord, version)
	}

	record := &ResetRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.IssuedAt); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidResetRecord, err)
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidResetRecord, err)
	}

	var identifierLen uint16
	if err := binary.Read(reader, binary.BigEndian, &identifierLen); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidResetRecord, err)
	}

	identifier := make([]byte, identifierLen)
	if _, err := io.ReadFull(reader, identifier); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidResetRecord, err)
	}
	record.Identifier = string(identifier)

	if _, err := io.ReadFull(reader, record.Salt[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidResetRecord, err)
	}
	if _, err := io.ReadFull(reader, record.TokenHash[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidResetRecord, err)
	}

	return record, nil
}
