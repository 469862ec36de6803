package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"kiesraad/internal/batch"
	"kiesraad/internal/config"
	"kiesraad/internal/metrics"
	"kiesraad/internal/storage"
	"kiesraad/internal/table"
)

type parseFlags struct {
	configPath   string
	source       string
	perCandidate bool
	out          string
	store        string
	dsn          string
	prefix       string
	batchSize    int
	exclude      []string
	validateOnly bool
}

func newParseCmd(a *app) *cobra.Command {
	var f parseFlags
	cmd := &cobra.Command{
		Use:   "parse --source DIR (--out DIR | --store KIND --dsn DSN)",
		Short: "Build result tables from an EML batch and write them as CSV or into a database.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			job, err := f.job(a, cmd)
			if err != nil {
				return err
			}
			issues := config.Validate(job)
			for _, iss := range issues {
				fmt.Fprintln(a.stderr, iss)
			}
			if config.HasErrors(issues) {
				return usagef("invalid configuration")
			}
			if f.validateOnly {
				fmt.Fprintln(a.stdout, "ok")
				return nil
			}
			return a.runParse(cmd.Context(), job)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "job file (JSON); flags override its values")
	fl.StringVar(&f.source, "source", "", "directory holding the EML batch")
	fl.BoolVar(&f.perCandidate, "per-candidate", false, "also build per-candidate tables and the candidate roster")
	fl.StringVar(&f.out, "out", "", "write one CSV file per table into this directory")
	fl.StringVar(&f.store, "store", "", "export tables into a database: sqlite|postgres|mssql")
	fl.StringVar(&f.dsn, "dsn", "", "database DSN for --store (environment references are expanded)")
	fl.StringVar(&f.prefix, "prefix", "", "table name prefix for --store")
	fl.IntVar(&f.batchSize, "batch-size", 0, "rows per insert batch for --store (0 = default)")
	fl.StringSliceVar(&f.exclude, "exclude", nil, "path markers of documents to skip (default kieskring)")
	fl.BoolVar(&f.validateOnly, "validate", false, "validate the configuration and exit")
	return cmd
}

// job merges the job file (if any) with the flags that were set.
func (f *parseFlags) job(a *app, cmd *cobra.Command) (config.Job, error) {
	var job config.Job
	if f.configPath != "" {
		j, err := a.deps.loadConfig(f.configPath)
		if err != nil {
			return job, usageError{err: err}
		}
		job = j
	}

	changed := cmd.Flags().Changed
	if changed("source") {
		job.Source = f.source
	}
	if changed("per-candidate") {
		job.PerCandidate = f.perCandidate
	}
	if changed("out") {
		job.Output.Dir = f.out
	}
	if changed("exclude") {
		job.ExcludeMarkers = append([]string{}, f.exclude...)
	}
	if changed("store") || changed("dsn") || changed("prefix") || changed("batch-size") {
		if job.Storage == nil {
			job.Storage = &config.Storage{}
		}
		if changed("store") {
			job.Storage.Kind = f.store
		}
		if changed("dsn") {
			job.Storage.DSN = os.ExpandEnv(f.dsn)
		}
		if changed("prefix") {
			job.Storage.Prefix = f.prefix
		}
		if changed("batch-size") {
			job.Storage.BatchSize = f.batchSize
		}
	}
	return job, nil
}

func (a *app) runParse(ctx context.Context, job config.Job) error {
	cleanup, err := a.deps.initMetrics(ctx, job.Name, a.metricsBackendName(job.Metrics.Backend), job.Metrics.Tags)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer cleanup()

	start := time.Now()
	logger := a.logger()

	docs, err := a.deps.discover(job.Source)
	if err != nil {
		return err
	}
	res := batch.Run(docs, batch.Options{
		PerCandidate:   job.PerCandidate,
		ExcludeMarkers: job.ExcludeMarkers,
		Logger:         logger,
	})

	for _, d := range res.Diagnostics {
		label := "skipped"
		if d.Kind == batch.Degraded {
			label = "degraded"
		}
		fmt.Fprintf(a.stderr, "%s: %s\n", label, d)
	}
	degraded := res.Count(batch.Degraded)
	fmt.Fprintf(a.stdout, "election_id=%s election_date=%s tables=%d skipped=%d degraded=%d\n",
		res.ElectionID, res.ElectionDate, len(res.Tables), len(res.Diagnostics)-degraded, degraded)

	if job.Output.Dir != "" {
		if err := writeCSVs(job.Output.Dir, res.Tables); err != nil {
			return err
		}
		for _, t := range res.Tables {
			fmt.Fprintf(a.stdout, "table=%s rows=%d file=%s\n", t.Name(), t.Len(), csvPath(job.Output.Dir, t))
		}
	}

	if job.Storage != nil {
		if err := a.export(ctx, *job.Storage, res.Tables); err != nil {
			return err
		}
	}

	metrics.RecordStage("job", "ok", time.Since(start))
	if logger != nil {
		logger.Printf("stage=job status=ok elapsed=%s", time.Since(start).Truncate(time.Millisecond))
	}
	return nil
}

func (a *app) export(ctx context.Context, s config.Storage, tables []*table.Table) error {
	repo, err := a.deps.openStore(ctx, storage.Config{Kind: s.Kind, DSN: s.DSN})
	if err != nil {
		return fmt.Errorf("open %s: %w", s.Kind, err)
	}
	defer repo.Close()

	for _, t := range tables {
		name, n, err := storage.Export(ctx, repo, t, storage.ExportOptions{Prefix: s.Prefix, BatchSize: s.BatchSize})
		if err != nil {
			return fmt.Errorf("export %s: %w", t.Name(), err)
		}
		fmt.Fprintf(a.stdout, "table=%s rows=%d store=%s\n", name, n, s.Kind)
	}
	return nil
}

func csvPath(dir string, t *table.Table) string {
	return filepath.Join(dir, t.Name()+".csv")
}

func writeCSVs(dir string, tables []*table.Table) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	for _, t := range tables {
		if err := writeCSV(csvPath(dir, t), t); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, t *table.Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if err := t.WriteCSV(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
