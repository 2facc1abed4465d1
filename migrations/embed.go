// Package migrations embeds the SQL schema of the event journal so the
// binary can migrate without SQL files on disk.
package migrations

import "embed"

// FS holds every migration at its root. Pass it to database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
