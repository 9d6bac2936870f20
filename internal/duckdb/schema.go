package duckdb

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
)

//go:embed schema.sql
var schemaDDL string

// SchemaDDL returns the schema DDL used for initializing history databases.
func SchemaDDL() string {
	return schemaDDL
}

// EnsureSchema applies the schema DDL. Every statement is idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("duckdb: db is nil")
	}
	_, err := db.ExecContext(ctx, schemaDDL)
	return err
}
