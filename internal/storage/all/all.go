// Package all links every catalog backend and the SQL Server driver.
package all

import (
	_ "github.com/microsoft/go-mssqldb"

	_ "pricecompare/internal/storage/mssql"
	_ "pricecompare/internal/storage/postgres"
	_ "pricecompare/internal/storage/sqlite"
)
