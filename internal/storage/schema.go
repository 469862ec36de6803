package storage

import (
	"strings"
	"unicode"

	"kiesraad/internal/table"
)

// ColumnType is a logical column type; each backend maps it to its own SQL type.
type ColumnType string

const (
	BigInt ColumnType = "bigint"
	Text   ColumnType = "text"
)

// TableSpec describes a table to create. All columns are nullable.
type TableSpec struct {
	Name    string
	Columns []ColumnSpec
}

type ColumnSpec struct {
	Name string
	Type ColumnType
}

// ColumnNames returns the column names in order.
func (s TableSpec) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// SpecFor derives a TableSpec from t. A column whose non-nil values are all
// int64 becomes BigInt; everything else, including all-nil columns, is Text.
func SpecFor(t *table.Table, name string) TableSpec {
	spec := TableSpec{Name: name, Columns: make([]ColumnSpec, 0, len(t.Columns()))}
	for _, col := range t.Columns() {
		spec.Columns = append(spec.Columns, ColumnSpec{Name: col, Type: inferType(t.Column(col))})
	}
	return spec
}

func inferType(values []any) ColumnType {
	seen := false
	for _, v := range values {
		switch v.(type) {
		case nil:
			continue
		case int64:
			seen = true
		default:
			return Text
		}
	}
	if seen {
		return BigInt
	}
	return Text
}

// SanitizeName turns a document-derived name into a safe table name:
// lowercase, every run of characters other than letters, digits and '_'
// replaced by a single '_', no leading or trailing '_'. A name starting with
// a digit gets a "t_" prefix.
func SanitizeName(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "t"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "t_" + out
	}
	return out
}

// ChunkRows splits rows so that no chunk binds more than maxParams values.
// Every chunk holds at least one row.
func ChunkRows(rows [][]any, columns, maxParams int) [][][]any {
	if len(rows) == 0 {
		return nil
	}
	per := 1
	if columns > 0 && maxParams > columns {
		per = maxParams / columns
	}
	out := make([][][]any, 0, (len(rows)+per-1)/per)
	for start := 0; start < len(rows); start += per {
		end := start + per
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}
