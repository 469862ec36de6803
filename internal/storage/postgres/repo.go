// Package postgres is the PostgreSQL storage backend.
//
// Tables are created with plain DDL; rows are loaded with the COPY protocol
// through pgx.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kiesraad/internal/storage"
)

// Repo implements storage.Repository for Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New opens a connection pool and verifies it with a ping.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureTable creates the schema (for "schema.table" names) and the table.
func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	schemaSQL, tableSQL, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if schemaSQL != "" {
		if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema for %s: %w", spec.Name, err)
		}
	}
	if _, err := r.pool.Exec(ctx, tableSQL); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

// InsertRows streams rows with COPY FROM. COPY has no bind-parameter limit,
// so rows are not chunked.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	return r.pool.CopyFrom(ctx, tableIdentifier(table), columns, pgx.CopyFromRows(rows))
}

func pgIdent(id string) string {
	return pgx.Identifier{id}.Sanitize()
}

func tableIdentifier(name string) pgx.Identifier {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgx.Identifier{table}
	}
	return pgx.Identifier{schema, table}
}

func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func pgType(t storage.ColumnType) string {
	if t == storage.BigInt {
		return "BIGINT"
	}
	return "TEXT"
}

// buildCreateSQL returns the CREATE SCHEMA statement (empty for unqualified
// names) and the CREATE TABLE statement.
func buildCreateSQL(spec storage.TableSpec) (schemaSQL, tableSQL string, err error) {
	if strings.TrimSpace(spec.Name) == "" {
		return "", "", fmt.Errorf("table name is empty")
	}
	if len(spec.Columns) == 0 {
		return "", "", fmt.Errorf("table %s has no columns", spec.Name)
	}

	if schema, _ := splitQualifiedName(spec.Name); schema != "" {
		schemaSQL = fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgIdent(schema))
	}

	cols := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		cols = append(cols, pgIdent(c.Name)+" "+pgType(c.Type))
	}
	tableSQL = fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		tableIdentifier(spec.Name).Sanitize(), strings.Join(cols, ", "))
	return schemaSQL, tableSQL, nil
}
