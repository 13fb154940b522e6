// Command catalog manages the SQL source catalog that aggregators can load
// their sources from (-catalog-kind on pricecompare).
//
// Usage (import a sources file, replacing the catalog contents):
//
//	catalog -kind sqlite -dsn ./catalog.db -import configs/sources.yaml
//
// Usage (import the built-in sources):
//
//	catalog -kind postgres -dsn "$DSN" -import builtin
//
// Usage (list the catalog as JSON):
//
//	catalog -kind mssql -dsn "$DSN" -list
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"pricecompare/internal/registry"
	"pricecompare/internal/storage"

	// register all catalog backends with the storage factory.
	_ "pricecompare/internal/storage/all"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, os.Getenv))
}

// run returns a Unix-style exit code:
//   - 0 for success
//   - 2 for usage/config errors
//   - 1 for database errors
func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)
	fs.SetOutput(stderr)

	kind := fs.String("kind", "", "catalog backend: "+strings.Join(storage.Kinds(), ", ")+" (env CATALOG_KIND)")
	dsn := fs.String("dsn", "", "catalog DSN (env CATALOG_DSN)")
	table := fs.String("table", "", "catalog table (default "+storage.DefaultTable+")")
	importPath := fs.String("import", "", `sources file to import, or "builtin" for the shipped sources`)
	list := fs.Bool("list", false, "print the stored sources as JSON")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *kind == "" {
		*kind = getenv("CATALOG_KIND")
	}
	if *dsn == "" {
		*dsn = getenv("CATALOG_DSN")
	}
	if *kind == "" {
		fmt.Fprintln(stderr, "missing -kind")
		return 2
	}
	if *importPath == "" && !*list {
		fmt.Fprintln(stderr, "nothing to do: pass -import and/or -list")
		return 2
	}

	// Validate the import before touching the database.
	var sources []registry.SourceConfig
	if *importPath != "" {
		reg, err := loadImport(*importPath)
		if err != nil {
			fmt.Fprintf(stderr, "load sources: %v\n", err)
			return 2
		}
		sources = reg.List()
	}

	cat, err := storage.New(ctx, storage.Config{Kind: *kind, DSN: *dsn, Table: *table})
	if err != nil {
		fmt.Fprintf(stderr, "open catalog: %v\n", err)
		return 1
	}
	defer cat.Close()

	if err := cat.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(stderr, "ensure schema: %v\n", err)
		return 1
	}

	if *importPath != "" {
		if err := cat.SaveSources(ctx, sources); err != nil {
			fmt.Fprintf(stderr, "save sources: %v\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "imported %d sources into %s catalog\n", len(sources), *kind)
	}

	if *list {
		stored, err := cat.LoadSources(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "load catalog: %v\n", err)
			return 1
		}
		enc := json.NewEncoder(stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(registry.File{Sources: stored}); err != nil {
			fmt.Fprintf(stderr, "encode json: %v\n", err)
			return 1
		}
	}
	return 0
}

func loadImport(path string) (*registry.Registry, error) {
	if path == "builtin" {
		reg, _, err := registry.Default()
		return reg, err
	}
	reg, _, err := registry.Load(path)
	return reg, err
}
