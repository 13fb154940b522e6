package storage

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"pricecompare/internal/registry"
)

// Row is one stored source: its id, position and JSON-encoded configuration.
type Row struct {
	ID       string
	Position int
	Config   string
}

var reTable = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// CheckTable rejects table names that are not plain (optionally
// schema-qualified) identifiers. Table names are interpolated into SQL.
func CheckTable(name string) error {
	if !reTable.MatchString(name) {
		return fmt.Errorf("storage: invalid table name %q", name)
	}
	return nil
}

// SplitTable splits "schema.table" into its parts. schema is "" when the
// name is unqualified.
func SplitTable(name string) (schema, table string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// EncodeRows converts sources into rows, using slice order as position.
func EncodeRows(sources []registry.SourceConfig) ([]Row, error) {
	rows := make([]Row, 0, len(sources))
	seen := make(map[string]bool, len(sources))
	for i, src := range sources {
		if seen[src.ID] {
			return nil, fmt.Errorf("encode source %q: %w", src.ID, registry.ErrDuplicateID)
		}
		seen[src.ID] = true

		b, err := json.Marshal(src)
		if err != nil {
			return nil, fmt.Errorf("encode source %q: %w", src.ID, err)
		}
		rows = append(rows, Row{ID: src.ID, Position: i, Config: string(b)})
	}
	return rows, nil
}

// DecodeRows converts rows back into sources ordered by position, then id.
func DecodeRows(rows []Row) ([]registry.SourceConfig, error) {
	sorted := append([]Row(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Position != sorted[j].Position {
			return sorted[i].Position < sorted[j].Position
		}
		return sorted[i].ID < sorted[j].ID
	})

	out := make([]registry.SourceConfig, 0, len(sorted))
	for _, r := range sorted {
		var src registry.SourceConfig
		if err := json.Unmarshal([]byte(r.Config), &src); err != nil {
			return nil, fmt.Errorf("decode source %q: %w", r.ID, err)
		}
		if src.ID == "" {
			src.ID = r.ID
		}
		if src.ID != r.ID {
			return nil, fmt.Errorf("decode source %q: config id %q does not match row", r.ID, src.ID)
		}
		out = append(out, src)
	}
	return out, nil
}
