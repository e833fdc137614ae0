package service

import (
	"context"
	"database/sql"
	"fmt"

	consentstore "chatvault/internal/consent/store"
	ingeststore "chatvault/internal/ingest/store"
)

// PostgresTx runs the revocation closure inside one database
// transaction. Both stores are rebound to the transaction so the
// tracked-subject delete and the data erasure commit or roll back as a
// unit.
type PostgresTx struct {
	db *sql.DB
}

func NewPostgresTx(db *sql.DB) *PostgresTx {
	return &PostgresTx{db: db}
}

func (t *PostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, users Store, data DataStore) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	users := consentstore.NewPostgresTx(tx)
	data := ingeststore.NewPostgresTx(tx)

	if err := fn(ctx, users, data); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback transaction: %v (original: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// MemoryTx satisfies TxRunner for database-less runs. The in-memory
// stores are not transactional; the caller's per-subject lock is what
// keeps the two deletes from interleaving with ingestion.
type MemoryTx struct {
	users Store
	data  DataStore
}

func NewMemoryTx(users Store, data DataStore) *MemoryTx {
	return &MemoryTx{users: users, data: data}
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context, users Store, data DataStore) error) error {
	return fn(ctx, t.users, t.data)
}
