package credentials

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	goReset "github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/internal"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DBTX is the subset of *sql.DB and *sql.Tx the store needs.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore is a goReset.CredentialStore backed by the credentials
// table.
type PostgresStore struct {
	db  DBTX
	now func() time.Time
}

func NewPostgresStore(db DBTX, opts ...Option) *PostgresStore {
	o := buildOptions(opts)
	return &PostgresStore{db: db, now: o.now}
}

// OpenPostgres opens a pgx-backed *sql.DB for dsn and verifies the
// connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindCredential(ctx context.Context, identifier string) (goReset.CredentialRecord, error) {
	query :=
		`SELECT user_id, identifier, display_name, secret_hash, created_at, updated_at
		 FROM credentials
		 WHERE identifier = $1`

	var record goReset.CredentialRecord
	err := s.db.QueryRowContext(ctx, query, internal.NormalizeIdentifier(identifier)).Scan(
		&record.UserID,
		&record.Identifier,
		&record.DisplayName,
		&record.SecretHash,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return goReset.CredentialRecord{}, goReset.ErrCredentialNotFound
		}
		return goReset.CredentialRecord{}, fmt.Errorf("db error: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) UpdateSecret(ctx context.Context, identifier, secretHash string) error {
	query :=
		`UPDATE credentials SET secret_hash = $2, updated_at = $3
		 WHERE identifier = $1`

	res, err := s.db.ExecContext(ctx, query, internal.NormalizeIdentifier(identifier), secretHash, s.now().UTC())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return goReset.ErrCredentialNotFound
	}
	return nil
}

// CreateCredential inserts record. A taken identifier is reported as
// goReset.ErrCredentialExists through ON CONFLICT DO NOTHING rather than a
// constraint error.
func (s *PostgresStore) CreateCredential(ctx context.Context, record goReset.CredentialRecord) error {
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

	query :=
		`INSERT INTO credentials (user_id, identifier, display_name, secret_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (identifier) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query,
		record.UserID, record.Identifier, record.DisplayName, record.SecretHash, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return goReset.ErrCredentialExists
	}
	return nil
}
