package migrations

import "embed"

// Files exposes embedded SQL migration files ordered lexicographically.
// The sqlite subdirectory carries the dialect variant applied by the SQLite
// repository.
//
//go:embed *.sql sqlite/*.sql
var Files embed.FS
