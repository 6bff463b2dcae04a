// Package db holds the embedded PostgreSQL schema migrations.
package db

import "embed"

// MigrationFS embeds the SQL files under migrations/.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
