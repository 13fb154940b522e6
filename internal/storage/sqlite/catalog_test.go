package sqlite

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"pricecompare/internal/registry"
	"pricecompare/internal/storage"
)

func src(id string) registry.SourceConfig {
	return registry.SourceConfig{
		ID:          id,
		Name:        strings.ToUpper(id),
		URLTemplate: "https://" + id + ".example/s?q={query}",
		Transport:   registry.TransportHTTP,
		Rules: registry.Rules{
			Container: ".item",
			Name:      registry.FieldRule{Selector: ".name"},
			Price:     registry.FieldRule{Selector: ".price", Match: `([\d,]+)`},
			Image:     registry.FieldRule{Selector: "img", Extract: registry.ExtractAttr, Attrs: []string{"data-original", "src"}},
		},
	}
}

func openTemp(t *testing.T) storage.Catalog {
	t.Helper()
	cat, err := storage.New(context.Background(), storage.Config{
		Kind:  "sqlite",
		DSN:   filepath.Join(t.TempDir(), "catalog.db"),
		Table: "catalog.sources",
	})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(cat.Close)
	if err := cat.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return cat
}

// TestCatalog_SaveLoadRoundTrip verifies sources survive a save and come
// back in saved order.
func TestCatalog_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cat := openTemp(t)

	in := []registry.SourceConfig{src("ryans"), src("startech"), src("techland")}
	if err := cat.SaveSources(ctx, in); err != nil {
		t.Fatalf("SaveSources: %v", err)
	}
	out, err := cat.LoadSources(ctx)
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("round trip differs:\n got %+v\nwant %+v", out, in)
	}
}

// TestCatalog_SaveReplaces verifies a second save replaces the first.
func TestCatalog_SaveReplaces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cat := openTemp(t)

	if err := cat.SaveSources(ctx, []registry.SourceConfig{src("a"), src("b")}); err != nil {
		t.Fatalf("SaveSources: %v", err)
	}
	if err := cat.SaveSources(ctx, []registry.SourceConfig{src("c")}); err != nil {
		t.Fatalf("SaveSources: %v", err)
	}
	out, err := cat.LoadSources(ctx)
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}
	if len(out) != 1 || out[0].ID != "c" {
		t.Fatalf("expected only c, got %+v", out)
	}
}

// TestCatalog_EnsureSchemaIdempotent verifies startup can run it repeatedly.
func TestCatalog_EnsureSchemaIdempotent(t *testing.T) {
	t.Parallel()

	cat := openTemp(t)
	if err := cat.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
}

// TestDialect_SQL pins the generated statements.
func TestDialect_SQL(t *testing.T) {
	t.Parallel()

	d := Dialect{}
	if got := d.Insert("catalog.sources"); got != `INSERT INTO "catalog_sources" (id, position, config) VALUES (?, ?, ?)` {
		t.Fatalf("Insert = %s", got)
	}
	if got := d.SelectAll("sources"); got != `SELECT id, position, config FROM "sources" ORDER BY position, id` {
		t.Fatalf("SelectAll = %s", got)
	}
	if stmts := d.CreateTable("sources"); len(stmts) != 1 || !strings.Contains(stmts[0], `CREATE TABLE IF NOT EXISTS "sources"`) {
		t.Fatalf("CreateTable = %v", stmts)
	}
}
