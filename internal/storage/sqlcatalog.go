package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pricecompare/internal/registry"
)

// Dialect supplies the backend-specific SQL for a database/sql catalog.
// Every statement targets the table passed in; Insert binds (id, position,
// config) in that order.
type Dialect interface {
	CreateTable(table string) []string
	Insert(table string) string
	DeleteAll(table string) string
	SelectAll(table string) string
}

// SQLCatalog implements Catalog over database/sql. The SQLite and SQL Server
// backends use it with their own Dialect.
type SQLCatalog struct {
	db      *sql.DB
	dialect Dialect
	table   string
}

// NewSQLCatalog wraps an open database handle.
func NewSQLCatalog(db *sql.DB, dialect Dialect, table string) *SQLCatalog {
	if table == "" {
		table = DefaultTable
	}
	return &SQLCatalog{db: db, dialect: dialect, table: table}
}

// Close implements Catalog.
func (c *SQLCatalog) Close() { _ = c.db.Close() }

// EnsureSchema implements Catalog.
func (c *SQLCatalog) EnsureSchema(ctx context.Context) error {
	for _, stmt := range c.dialect.CreateTable(c.table) {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create catalog table %s: %w", c.table, err)
		}
	}
	return nil
}

// SaveSources implements Catalog.
func (c *SQLCatalog) SaveSources(ctx context.Context, sources []registry.SourceConfig) (err error) {
	rows, err := EncodeRows(sources)
	if err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	if _, err = tx.ExecContext(ctx, c.dialect.DeleteAll(c.table)); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, c.dialect.Insert(c.table))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err = stmt.ExecContext(ctx, r.ID, r.Position, r.Config); err != nil {
			return fmt.Errorf("insert source %q: %w", r.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadSources implements Catalog.
func (c *SQLCatalog) LoadSources(ctx context.Context) ([]registry.SourceConfig, error) {
	rs, err := c.db.QueryContext(ctx, c.dialect.SelectAll(c.table))
	if err != nil {
		return nil, fmt.Errorf("select sources: %w", err)
	}
	defer rs.Close()

	var rows []Row
	for rs.Next() {
		var r Row
		if err := rs.Scan(&r.ID, &r.Position, &r.Config); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		rows = append(rows, r)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return DecodeRows(rows)
}

var _ Catalog = (*SQLCatalog)(nil)
