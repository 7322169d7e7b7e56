// Command generate_schema migrates an in-memory campaign store to the latest
// schema and writes its DDL to sqlc/schema.sql, the schema sqlc compiles
// queries against. Run it from the module root.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"turnkeep/internal/database"
	"turnkeep/internal/database/migrations"
)

var schemaPath = filepath.Join("internal", "database", "sqlc", "schema.sql")

func main() {
	version, err := generate(schemaPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate_schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s at schema version %d\n", schemaPath, version)
}

func generate(out string) (uint, error) {
	db, err := database.OpenConnection(":memory:")
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if err := migrations.MigrateUp(db); err != nil {
		return 0, err
	}
	status, err := migrations.GetStatus(db)
	if err != nil {
		return 0, err
	}

	ddl, err := campaignDDL(db)
	if err != nil {
		return 0, err
	}

	var b strings.Builder
	b.WriteString("-- This file is auto-generated from migration files.\n")
	b.WriteString("-- DO NOT EDIT MANUALLY. Run 'go generate ./internal/database' to regenerate.\n")
	b.WriteString("-- Source: internal/database/migrations/files/*.sql\n\n")
	for _, stmt := range ddl {
		b.WriteString(stmt)
		b.WriteString(";\n\n")
	}
	if err := os.WriteFile(out, []byte(b.String()), 0644); err != nil {
		return 0, fmt.Errorf("writing %s: %w", out, err)
	}
	return status.Current, nil
}

// campaignDDL returns the CREATE statements of every table, then every
// index, skipping SQLite internals and migrate's bookkeeping table.
func campaignDDL(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`
		SELECT sql FROM sqlite_master
		WHERE type IN ('table', 'index')
		  AND sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		  AND tbl_name != 'schema_migrations'
		ORDER BY type = 'index', name`)
	if err != nil {
		return nil, fmt.Errorf("reading sqlite_master: %w", err)
	}
	defer rows.Close()

	var ddl []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return nil, fmt.Errorf("reading sqlite_master: %w", err)
		}
		ddl = append(ddl, stmt)
	}
	return ddl, rows.Err()
}
