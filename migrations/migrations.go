// Package migrations holds the SQL schema applied by cmd/maintenance/migrate.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
