// Package sqlite is the SQLite storage backend, built on the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"kiesraad/internal/storage"
)

// maxParams stays below SQLITE_MAX_VARIABLE_NUMBER (32766 since 3.32).
const maxParams = 32000

// Repo implements storage.Repository for SQLite.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	q, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

// InsertRows writes all rows in one transaction using multi-row inserts.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, chunk := range storage.ChunkRows(rows, len(columns), maxParams) {
		q, args := buildInsertSQL(table, columns, chunk)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func sqlType(t storage.ColumnType) string {
	if t == storage.BigInt {
		return "INTEGER"
	}
	return "TEXT"
}

func buildCreateSQL(spec storage.TableSpec) (string, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}
	if len(spec.Columns) == 0 {
		return "", fmt.Errorf("table %s has no columns", spec.Name)
	}
	parts := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		parts = append(parts, sqlIdent(c.Name)+" "+sqlType(c.Type))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", sqlIdent(spec.Name), strings.Join(parts, ", ")), nil
}

func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		args = append(args, row...)
	}
	return b.String(), args
}
