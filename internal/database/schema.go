package database

import _ "embed"

// Schema is the current schema as produced by the migrations. It is
// regenerated by go generate and checked against the migrations in tests.
//
//go:embed schema.sql
var Schema string
