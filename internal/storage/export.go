package storage

import (
	"context"
	"fmt"
	"time"

	"kiesraad/internal/metrics"
	"kiesraad/internal/table"
)

// DefaultBatchSize is the number of rows handed to InsertRows at once.
const DefaultBatchSize = 500

// ExportOptions controls Export.
type ExportOptions struct {
	// Prefix is prepended to the table name before sanitizing.
	Prefix string
	// BatchSize overrides DefaultBatchSize when > 0.
	BatchSize int
}

// Export creates the table for t (if missing) and appends all its rows.
// It returns the sanitized table name and the number of rows written.
func Export(ctx context.Context, repo Repository, t *table.Table, opts ExportOptions) (string, int64, error) {
	start := time.Now()
	name := SanitizeName(opts.Prefix + t.Name())

	n, err := export(ctx, repo, t, name, opts)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordStage("export", status, time.Since(start))
	return name, n, err
}

func export(ctx context.Context, repo Repository, t *table.Table, name string, opts ExportOptions) (int64, error) {
	if len(t.Columns()) == 0 {
		// Nothing to create: a table without rows has no columns either.
		return 0, nil
	}

	spec := SpecFor(t, name)
	if err := repo.EnsureTable(ctx, spec); err != nil {
		return 0, fmt.Errorf("ensure table %s: %w", name, err)
	}

	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	values := t.Values()
	cols := spec.ColumnNames()
	var total int64
	for start := 0; start < len(values); start += size {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		n, err := repo.InsertRows(ctx, name, cols, values[start:end])
		total += n
		if err != nil {
			return total, fmt.Errorf("insert into %s (rows %d-%d): %w", name, start+1, end, err)
		}
	}
	return total, nil
}
