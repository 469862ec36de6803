package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"kiesraad/internal/resultpages"
)

func newPagesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Download and parse municipality result pages.",
	}
	cmd.AddCommand(newPagesFetchCmd(a), newPagesParseCmd(a))
	return cmd
}

func newPagesFetchCmd(a *app) *cobra.Command {
	var (
		url, election, province, municipality, out string
		timeout                                    time.Duration
		retries                                    int
		rps                                        float64
	)
	cmd := &cobra.Command{
		Use:   "fetch (--url URL | --election ID) --municipality NAME --out DIR",
		Short: "Store one municipality result page as <out>/<election>/<province>/<name>.html.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if url == "" && election == "" {
				return usagef("one of --url or --election is required")
			}
			if municipality == "" || out == "" {
				return usagef("--municipality and --out are required")
			}
			if url == "" {
				url = resultpages.ElectionURL(election)
			}

			cleanup, err := a.deps.initMetrics(cmd.Context(), "", a.metricsBackendName(""), nil)
			if err != nil {
				return fmt.Errorf("init metrics: %w", err)
			}
			defer cleanup()

			dir := filepath.Join(out, election, province)
			loader := a.deps.newLoader(resultpages.LoaderOptions{
				Timeout:           timeout,
				Retries:           retries,
				RequestsPerSecond: rps,
				Logger:            a.logger(),
			})
			path, err := loader.Store(cmd.Context(), url, dir, municipality)
			if errors.Is(err, resultpages.ErrIncompletePage) {
				fmt.Fprintf(a.stderr, "warning: %v (stored at %s)\n", err, path)
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, path)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&url, "url", "", "page URL (defaults to the election landing page)")
	fl.StringVar(&election, "election", "", "election id, e.g. TK20170315")
	fl.StringVar(&province, "province", "", "province directory below the election")
	fl.StringVar(&municipality, "municipality", "", "municipality shown on the page")
	fl.StringVar(&out, "out", "", "data directory")
	fl.DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	fl.IntVar(&retries, "retries", 2, "retries on transport errors and 5xx responses")
	fl.Float64Var(&rps, "rate", 1, "maximum requests per second, 0 for no limit")
	return cmd
}

func newPagesParseCmd(a *app) *cobra.Command {
	var (
		dir, election, unit, out string
		remove                   bool
	)
	cmd := &cobra.Command{
		Use:   "parse --dir DIR --election ID [--unit votes|seats] [--out FILE]",
		Short: "Parse stored result pages into one CSV table, one row per municipality.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" || election == "" {
				return usagef("--dir and --election are required")
			}
			u, err := resultpages.ParseUnit(unit)
			if err != nil {
				return usageError{err: err}
			}

			t, err := resultpages.ParseDir(dir, election, u, a.logger())
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := t.WriteCSV(&buf); err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = a.stdout.Write(buf.Bytes())
			} else {
				err = os.WriteFile(out, buf.Bytes(), 0o644)
			}
			if err != nil {
				return err
			}

			if remove {
				if err := os.RemoveAll(dir); err != nil {
					return fmt.Errorf("remove %s: %w", dir, err)
				}
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&dir, "dir", "", "directory with <province>/<municipality>.html pages")
	fl.StringVar(&election, "election", "", "election id written into the Verkiezing column")
	fl.StringVar(&unit, "unit", string(resultpages.Votes), "votes or seats")
	fl.StringVar(&out, "out", "-", "CSV output file, - for stdout")
	fl.BoolVar(&remove, "remove", false, "delete --dir after a successful parse")
	return cmd
}
