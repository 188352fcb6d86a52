// Package migrations embeds the bridge's SQL schema migrations.
//
// Files follow YYYYMMDD_HHMMSS_name.up.sql / .down.sql and are applied by
// database.DB.Migrate at startup and by the CLI before touching entries.
package migrations

import "embed"

// FS holds every migration file at its root.
//
//go:embed *.sql
var FS embed.FS
