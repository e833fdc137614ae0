package store

import (
	"context"

	"chatvault/internal/ingest/models"
)

// Error Contract:
// - Insert returns sentinel.ErrDuplicate when the row hash already exists
// - Other methods return nil on success or wrapped errors on failure

// Store is the persistence contract for captured rows.
type Store interface {
	Insert(ctx context.Context, record *models.Record) (int64, error)
	ExistsByRowHash(ctx context.Context, rowHash string) (bool, error)
	DeleteBySubject(ctx context.Context, userIDHash string) (int64, error)
	CountBySubject(ctx context.Context, userIDHash string) (int64, error)
}
