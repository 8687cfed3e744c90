package persistence

import (
	"context"
	"database/sql"
	_ "embed"
	"strings"
)

//go:embed demo_seed.sql
var demoSeedSQL string

// SeedDemoData recreates the fact tables the bundled catalog maps to.
// Existing demo tables are dropped first.
func SeedDemoData(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range strings.Split(demoSeedSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// OpenSQLite opens a sqlite database file through the registered driver.
func OpenSQLite(path string) (*sql.DB, error) {
	return sql.Open(DriverSQLite, path)
}
