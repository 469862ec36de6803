package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Table is a named, column-ordered set of rows built from records.
//
// Its columns are the union of all record keys in discovery order; a row
// missing a column reads as nil.
type Table struct {
	name    string
	columns []string
	rows    []*Record
}

// New builds a table from recs, preserving row order.
func New(name string, recs []*Record) *Table {
	return NewWithColumns(name, nil, recs)
}

// NewWithColumns is New with a declared column layout: columns come first, in
// the order given, even when no record carries them. Record keys outside the
// layout follow in discovery order.
func NewWithColumns(name string, columns []string, recs []*Record) *Table {
	t := &Table{name: name, rows: recs}
	seen := make(map[string]struct{}, len(columns))
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		t.columns = append(t.columns, k)
	}
	for _, c := range columns {
		add(c)
	}
	for _, r := range recs {
		for _, k := range r.Keys() {
			add(k)
		}
	}
	return t
}

func (t *Table) Name() string { return t.name }

func (t *Table) Columns() []string { return t.columns }

func (t *Table) Len() int { return len(t.rows) }

// Value returns the cell at row i, column col (nil if unset).
func (t *Table) Value(i int, col string) any {
	v, _ := t.rows[i].Get(col)
	return v
}

// Column returns all values of col, in row order.
func (t *Table) Column(col string) []any {
	out := make([]any, len(t.rows))
	for i := range t.rows {
		out[i] = t.Value(i, col)
	}
	return out
}

// Reorder moves the columns of prefix that exist in t to the front, in the
// order given, followed by every other column in discovery order.
func (t *Table) Reorder(prefix []string) {
	present := make(map[string]bool, len(t.columns))
	for _, c := range t.columns {
		present[c] = true
	}

	out := make([]string, 0, len(t.columns))
	used := make(map[string]bool, len(prefix))
	for _, c := range prefix {
		if present[c] && !used[c] {
			out = append(out, c)
			used[c] = true
		}
	}
	for _, c := range t.columns {
		if !used[c] {
			out = append(out, c)
		}
	}
	t.columns = out
}

// Values returns the rows as positional slices aligned with Columns.
func (t *Table) Values() [][]any {
	out := make([][]any, len(t.rows))
	for i := range t.rows {
		row := make([]any, len(t.columns))
		for j, c := range t.columns {
			row[j] = t.Value(i, c)
		}
		out[i] = row
	}
	return out
}

// WriteCSV writes a header line followed by one line per row. Nil cells are empty.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	line := make([]string, len(t.columns))
	for i := range t.rows {
		for j, c := range t.columns {
			line[j] = FormatValue(t.Value(i, c))
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatValue renders a cell value as text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(v)
	}
}
