// Package migrations embeds the server schema, one directory per supported
// database. Timestamps are stored as unix nanoseconds in sqlite and as
// timestamptz in postgres.
package migrations

import "embed"

//go:embed sqlite/*.sql
var SQLite embed.FS

//go:embed postgres/*.sql
var Postgres embed.FS
