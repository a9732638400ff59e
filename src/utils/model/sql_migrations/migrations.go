// Package sql_migrations embeds the database schema applied at startup
package sql_migrations

import "embed"

//go:embed *.sql
var FS embed.FS
