// Package migrations embeds the goose migrations of the SQL snapshot
// backends, one directory per dialect.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
