// Package db embeds the job store DDL for each supported SQL dialect.
package db

import "embed"

// Migrations holds postgres.sql and sqlite.sql.
//
//go:embed migrations/*.sql
var Migrations embed.FS
