package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chatvault/internal/ingest/models"
	"chatvault/internal/sentinel"
)

// PostgresStore persists captured rows in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed row store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a store bound to a transaction, used by the
// revocation path so data erasure commits together with the
// tracked-subject delete.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Insert stores a captured row. The unique index on row_hash is the
// dedup authority: a conflicting insert reports sentinel.ErrDuplicate
// instead of writing a second copy.
func (s *PostgresStore) Insert(ctx context.Context, record *models.Record) (int64, error) {
	if record == nil {
		return 0, fmt.Errorf("record is required")
	}
	query := `
		INSERT INTO data (user_id_hash, message_enc, row_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (row_hash) DO NOTHING
		RETURNING id
	`
	var insertedID int64
	err := s.execer().QueryRowContext(ctx, query, record.UserIDHash, record.MessageEnc, record.RowHash).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrDuplicate
		}
		return 0, fmt.Errorf("insert row: %w", err)
	}
	return insertedID, nil
}

func (s *PostgresStore) ExistsByRowHash(ctx context.Context, rowHash string) (bool, error) {
	var one int
	err := s.execer().QueryRowContext(ctx, `SELECT 1 FROM data WHERE row_hash = $1`, rowHash).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check row hash: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) DeleteBySubject(ctx context.Context, userIDHash string) (int64, error) {
	res, err := s.execer().ExecContext(ctx, `DELETE FROM data WHERE user_id_hash = $1`, userIDHash)
	if err != nil {
		return 0, fmt.Errorf("delete rows by subject: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete rows by subject: %w", err)
	}
	return deleted, nil
}

func (s *PostgresStore) CountBySubject(ctx context.Context, userIDHash string) (int64, error) {
	var count int64
	err := s.execer().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM data WHERE user_id_hash = $1`, userIDHash).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count rows by subject: %w", err)
	}
	return count, nil
}
