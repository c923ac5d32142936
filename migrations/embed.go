// Package migrations holds the PostgreSQL schema of the draft store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
