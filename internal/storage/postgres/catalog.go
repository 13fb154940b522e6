// Package postgres is the PostgreSQL catalog backend (pgx connection pool).
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pricecompare/internal/registry"
	"pricecompare/internal/storage"
)

func init() {
	storage.Register("postgres", New)
}

// Catalog implements storage.Catalog for PostgreSQL. Configurations are
// stored as JSONB so they can be queried in place.
type Catalog struct {
	pool  *pgxpool.Pool
	table string
}

// New creates a pgx pool for cfg.DSN and verifies it with a ping.
func New(ctx context.Context, cfg storage.Config) (storage.Catalog, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	table := cfg.Table
	if table == "" {
		table = storage.DefaultTable
	}
	return &Catalog{pool: pool, table: table}, nil
}

// Close closes the connection pool.
func (c *Catalog) Close() { c.pool.Close() }

// EnsureSchema implements storage.Catalog.
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	for _, stmt := range buildCreateSQL(c.table) {
		if _, err := c.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create catalog table %s: %w", c.table, err)
		}
	}
	return nil
}

// SaveSources implements storage.Catalog. The delete and all inserts run in
// one transaction, with the inserts sent as a single batch.
func (c *Catalog) SaveSources(ctx context.Context, sources []registry.SourceConfig) error {
	rows, err := storage.EncodeRows(sources)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM "+pgTableIdent(c.table)); err != nil {
			return fmt.Errorf("clear catalog: %w", err)
		}

		insert := buildInsertSQL(c.table)
		batch := &pgx.Batch{}
		for _, r := range rows {
			batch.Queue(insert, r.ID, r.Position, r.Config)
		}
		br := tx.SendBatch(ctx, batch)
		for _, r := range rows {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("insert source %q: %w", r.ID, err)
			}
		}
		return br.Close()
	})
}

// LoadSources implements storage.Catalog.
func (c *Catalog) LoadSources(ctx context.Context) ([]registry.SourceConfig, error) {
	rs, err := c.pool.Query(ctx, buildSelectSQL(c.table))
	if err != nil {
		return nil, fmt.Errorf("select sources: %w", err)
	}
	rows, err := pgx.CollectRows(rs, func(row pgx.CollectableRow) (storage.Row, error) {
		var r storage.Row
		err := row.Scan(&r.ID, &r.Position, &r.Config)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan sources: %w", err)
	}
	return storage.DecodeRows(rows)
}

func buildCreateSQL(table string) []string {
	var stmts []string
	if schema, _ := storage.SplitTable(table); schema != "" {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+pgIdent(schema))
	}
	stmts = append(stmts, `CREATE TABLE IF NOT EXISTS `+pgTableIdent(table)+` (
  id TEXT PRIMARY KEY,
  position INTEGER NOT NULL,
  config JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	return stmts
}

func buildInsertSQL(table string) string {
	return `INSERT INTO ` + pgTableIdent(table) + ` (id, position, config) VALUES ($1, $2, $3::jsonb)`
}

func buildSelectSQL(table string) string {
	return `SELECT id, position, config::text FROM ` + pgTableIdent(table) + ` ORDER BY position, id`
}

func pgIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func pgTableIdent(name string) string {
	schema, table := storage.SplitTable(name)
	if schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schema, table}.Sanitize()
}

var _ storage.Catalog = (*Catalog)(nil)
