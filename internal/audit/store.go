package audit

import "context"

// Store is the persistence contract for the consent log. Implementations
// must be strictly append-only: no update or delete surface exists, and
// none may be added.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context) ([]Entry, error)
}
