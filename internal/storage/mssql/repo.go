// Package mssql is the Microsoft SQL Server storage backend.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"kiesraad/internal/storage"
)

// maxParams stays below the 2100 parameters SQL Server accepts per request.
const maxParams = 2000

// maxRowsPerInsert is the row limit of a table value constructor.
const maxRowsPerInsert = 1000

// Repo implements storage.Repository for SQL Server.
type Repo struct {
	db dbConn
}

func init() {
	storage.Register("mssql", New)
}

// New opens a "sqlserver" connection and validates it with PingContext.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	raw.SetMaxOpenConns(8)
	raw.SetMaxIdleConns(8)

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Repo{db: &sqlDB{db: raw}}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// EnsureTable creates the table behind an OBJECT_ID guard.
func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	q, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("mssql: create table %s: %w", spec.Name, err)
	}
	return nil
}

// InsertRows writes rows in one transaction, one INSERT per chunk.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	limit := maxParams
	if len(columns)*maxRowsPerInsert < limit {
		limit = len(columns) * maxRowsPerInsert
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, chunk := range storage.ChunkRows(rows, len(columns), limit) {
		q, args := buildBulkInsertSQL(table, columns, chunk)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("mssql: insert into %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func mssqlType(t storage.ColumnType) string {
	if t == storage.BigInt {
		return "BIGINT"
	}
	return "NVARCHAR(MAX)"
}

func buildCreateSQL(spec storage.TableSpec) (string, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return "", fmt.Errorf("mssql: table name is empty")
	}
	if len(spec.Columns) == 0 {
		return "", fmt.Errorf("mssql: table %s has no columns", spec.Name)
	}
	defs := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		defs = append(defs, mssqlIdent(c.Name)+" "+mssqlType(c.Type)+" NULL")
	}
	return wrapCreateIfMissing(spec.Name, strings.Join(defs, ", ")), nil
}

// wrapCreateIfMissing wraps a CREATE TABLE statement in an OBJECT_ID guard,
// since SQL Server has no CREATE TABLE IF NOT EXISTS.
func wrapCreateIfMissing(tableName string, innerDefs string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(mssqlTableIdent(tableName), "'", "''"),
		mssqlTableIdent(tableName),
		innerDefs,
	)
}

// buildBulkInsertSQL builds a single INSERT ... VALUES statement for all rows.
func buildBulkInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	return b.String(), args
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent quotes each part of a schema-qualified name:
//
//	"dbo.results" -> [dbo].[results]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// ---- database/sql seam types ----

// dbConn is the subset of *sql.DB this package needs, so tests can fake it.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error)
	Close() error
}

type txConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Commit() error
	Rollback() error
}

type sqlDB struct {
	db *sql.DB
}

func (s *sqlDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *sqlDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *sqlDB) Close() error { return s.db.Close() }

var (
	_ dbConn = (*sqlDB)(nil)
	_ txConn = (*sql.Tx)(nil)
)
