package store

import (
	"context"

	"chatvault/internal/consent/models"
)

// Error Contract:
// - Find returns sentinel.ErrNotFound when no record exists
// - Other methods return nil on success or wrapped errors on failure

// Store is the persistence contract for tracked subjects.
type Store interface {
	Upsert(ctx context.Context, user *models.TrackedUser) error
	Find(ctx context.Context, userIDHash string) (*models.TrackedUser, error)
	Exists(ctx context.Context, userIDHash string) (bool, error)
	Delete(ctx context.Context, userIDHash string) (bool, error)
	List(ctx context.Context) ([]*models.TrackedUser, error)
	UpdateRank(ctx context.Context, userIDHash, rank string) error
}
