// Package migrations embeds SQL migration files applied at boot and used
// by integration tests.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
