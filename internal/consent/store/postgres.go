package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chatvault/internal/consent/models"
	"chatvault/internal/sentinel"
)

// PostgresStore persists tracked subjects in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed tracked-subject store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a store bound to a transaction, used by the
// revocation path so the tracked-subject delete and the cascading data
// delete commit together.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *PostgresStore) Upsert(ctx context.Context, user *models.TrackedUser) error {
	if user == nil {
		return fmt.Errorf("tracked user is required")
	}
	query := `
		INSERT INTO tracked_users (user_id_hash, rank)
		VALUES ($1, $2)
		ON CONFLICT (user_id_hash) DO UPDATE SET rank = EXCLUDED.rank
	`
	if _, err := s.execer().ExecContext(ctx, query, user.UserIDHash, user.Rank); err != nil {
		return fmt.Errorf("upsert tracked user: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, userIDHash string) (*models.TrackedUser, error) {
	query := `SELECT user_id_hash, rank FROM tracked_users WHERE user_id_hash = $1`
	var user models.TrackedUser
	err := s.execer().QueryRowContext(ctx, query, userIDHash).Scan(&user.UserIDHash, &user.Rank)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tracked user: %w", err)
	}
	return &user, nil
}

func (s *PostgresStore) Exists(ctx context.Context, userIDHash string) (bool, error) {
	query := `SELECT 1 FROM tracked_users WHERE user_id_hash = $1`
	var one int
	err := s.execer().QueryRowContext(ctx, query, userIDHash).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check tracked user: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) Delete(ctx context.Context, userIDHash string) (bool, error) {
	res, err := s.execer().ExecContext(ctx, `DELETE FROM tracked_users WHERE user_id_hash = $1`, userIDHash)
	if err != nil {
		return false, fmt.Errorf("delete tracked user: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete tracked user rows: %w", err)
	}
	return rows > 0, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.TrackedUser, error) {
	rows, err := s.execer().QueryContext(ctx, `SELECT user_id_hash, rank FROM tracked_users`)
	if err != nil {
		return nil, fmt.Errorf("list tracked users: %w", err)
	}
	defer rows.Close()

	var users []*models.TrackedUser
	for rows.Next() {
		var user models.TrackedUser
		if err := rows.Scan(&user.UserIDHash, &user.Rank); err != nil {
			return nil, fmt.Errorf("scan tracked user: %w", err)
		}
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracked users: %w", err)
	}
	return users, nil
}

func (s *PostgresStore) UpdateRank(ctx context.Context, userIDHash, rank string) error {
	res, err := s.execer().ExecContext(ctx,
		`UPDATE tracked_users SET rank = $2 WHERE user_id_hash = $1`, userIDHash, rank)
	if err != nil {
		return fmt.Errorf("update rank: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rank rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
