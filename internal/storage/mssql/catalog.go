// Package mssql is the Microsoft SQL Server catalog backend.
//
// It does not import a driver. The "sqlserver" database/sql driver is linked
// by pricecompare/internal/storage/all.
package mssql

import (
	"context"
	"database/sql"
	"strings"

	"pricecompare/internal/storage"
)

func init() {
	storage.Register("mssql", New)
}

// New opens cfg.DSN with the "sqlserver" driver and verifies it with a ping.
func New(ctx context.Context, cfg storage.Config) (storage.Catalog, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return storage.NewSQLCatalog(db, Dialect{}, cfg.Table), nil
}

// Dialect renders catalog SQL for SQL Server. Unqualified tables go to dbo.
type Dialect struct{}

func (Dialect) CreateTable(table string) []string {
	schema, name := storage.SplitTable(table)
	if schema == "" {
		schema = "dbo"
	}
	qualified := schema + "." + name

	var stmts []string
	if schema != "dbo" {
		stmts = append(stmts, `IF SCHEMA_ID(N'`+escapeLiteral(schema)+`') IS NULL EXEC(N'CREATE SCHEMA `+mssqlIdent(schema)+`')`)
	}
	stmts = append(stmts, `IF OBJECT_ID(N'`+escapeLiteral(qualified)+`', N'U') IS NULL
CREATE TABLE `+mssqlTableIdent(qualified)+` (
  id NVARCHAR(128) NOT NULL PRIMARY KEY,
  position INT NOT NULL,
  config NVARCHAR(MAX) NOT NULL,
  updated_at DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()
)`)
	return stmts
}

func (Dialect) Insert(table string) string {
	return `INSERT INTO ` + mssqlTableIdent(table) + ` (id, position, config) VALUES (@p1, @p2, @p3)`
}

func (Dialect) DeleteAll(table string) string {
	return `DELETE FROM ` + mssqlTableIdent(table)
}

func (Dialect) SelectAll(table string) string {
	return `SELECT id, position, config FROM ` + mssqlTableIdent(table) + ` ORDER BY position, id`
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent quotes each part of a possibly schema-qualified name:
// "dbo.sources" -> [dbo].[sources].
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
