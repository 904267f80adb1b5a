// Package sql embeds the database schema migrations.
package sql

import "embed"

// Migrations holds the schema migration files, applied in filename order.
//
//go:embed migrations/*.sql
var Migrations embed.FS
