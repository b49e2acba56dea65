// Package migrations holds the attempt history schema.
package migrations

import "embed"

// FS contains embedded SQLite migrations for attempt history.
//
//go:embed *.sql
var FS embed.FS
