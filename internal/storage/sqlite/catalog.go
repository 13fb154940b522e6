// Package sqlite is the SQLite catalog backend (pure Go, modernc.org/sqlite).
package sqlite

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"pricecompare/internal/storage"
)

func init() {
	storage.Register("sqlite", New)
}

// New opens the SQLite database at cfg.DSN and verifies it with a ping.
func New(ctx context.Context, cfg storage.Config) (storage.Catalog, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return storage.NewSQLCatalog(db, Dialect{}, cfg.Table), nil
}

// Dialect renders catalog SQL for SQLite. SQLite has no schemas, so a
// qualified name is flattened to "schema_table".
type Dialect struct{}

func (Dialect) CreateTable(table string) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + sqlIdent(table) + ` (
  id TEXT PRIMARY KEY,
  position INTEGER NOT NULL,
  config TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
)`,
	}
}

func (Dialect) Insert(table string) string {
	return `INSERT INTO ` + sqlIdent(table) + ` (id, position, config) VALUES (?, ?, ?)`
}

func (Dialect) DeleteAll(table string) string {
	return `DELETE FROM ` + sqlIdent(table)
}

func (Dialect) SelectAll(table string) string {
	return `SELECT id, position, config FROM ` + sqlIdent(table) + ` ORDER BY position, id`
}

func sqlIdent(name string) string {
	name = strings.ReplaceAll(name, ".", "_")
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
