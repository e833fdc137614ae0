package database

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"chatvault/migrations"
)

// Migrate applies the embedded schema migrations. The core never owns DDL
// beyond replaying these files at boot.
func (p *Pool) Migrate(ctx context.Context) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("database not configured")
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, p.db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
