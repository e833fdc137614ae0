// Package sentinel holds shared sentinel errors so store implementations
// report the same conditions regardless of backend.
package sentinel

import (
	dErrors "chatvault/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific 404s consistent across implementations.
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")

	// ErrDuplicate signals an insert that collided with an existing row hash.
	ErrDuplicate = dErrors.New(dErrors.CodeDuplicate, "duplicate record")
)
