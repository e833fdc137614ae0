package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists the consent log in PostgreSQL. Inserts only; the
// table has no update or delete path through this code.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed consent log store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO consent_log (user_id_enc, action, timestamp)
		VALUES ($1, $2, $3)
	`
	_, err := s.db.ExecContext(ctx, query, entry.UserIDEnc, string(entry.Action), entry.Timestamp)
	if err != nil {
		return fmt.Errorf("append consent log entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Entry, error) {
	query := `
		SELECT id, user_id_enc, action, timestamp
		FROM consent_log
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list consent log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var action string
		if err := rows.Scan(&entry.ID, &entry.UserIDEnc, &action, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan consent log entry: %w", err)
		}
		entry.Action = Action(action)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consent log: %w", err)
	}
	return entries, nil
}
