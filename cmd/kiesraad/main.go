// Command kiesraad extracts Dutch election results from EML batches and
// municipality result pages into tables.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kiesraad/internal/batch"
	"kiesraad/internal/config"
	"kiesraad/internal/discover"
	"kiesraad/internal/resultpages"
	"kiesraad/internal/storage"

	// Links every storage backend; the job selects one by kind.
	_ "kiesraad/internal/storage/all"
)

func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stdout, os.Stderr, defaultDeps()))
}

// pageLoader is the part of resultpages.Loader the pages commands use.
type pageLoader interface {
	Store(ctx context.Context, url, dir, municipality string) (string, error)
}

// appDeps are the side-effecting seams of the CLI.
type appDeps struct {
	loadConfig  func(path string) (config.Job, error)
	discover    func(root string) (batch.Documents, error)
	openStore   func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
	newLoader   func(opts resultpages.LoaderOptions) pageLoader
	initMetrics func(ctx context.Context, jobName, backendName string, tags []string) (func(), error)
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig: config.Load,
		discover:   discover.Discover,
		openStore:  storage.New,
		newLoader: func(opts resultpages.LoaderOptions) pageLoader {
			return resultpages.NewLoader(opts)
		},
		initMetrics: initMetrics,
	}
}

// usageError marks errors that exit with code 2.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, a ...any) error {
	return usageError{err: fmt.Errorf(format, a...)}
}

// app carries the streams and seams every subcommand shares.
type app struct {
	deps    appDeps
	stdout  io.Writer
	stderr  io.Writer
	verbose bool
	backend string
}

type printfLogger interface {
	Printf(format string, v ...any)
}

// logger returns a key=value logger on stderr, or nil (discard) unless -v.
func (a *app) logger() printfLogger {
	if !a.verbose {
		return nil
	}
	return log.New(a.stderr, "", log.LstdFlags)
}

// runMain executes the CLI and returns the process exit code:
// 0 on success, 1 on runtime errors, 2 on usage and configuration errors.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	a := &app{deps: deps, stdout: stdout, stderr: stderr}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "kiesraad: %v\n", err)

	var ue usageError
	if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") {
		return 2
	}
	return 1
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "kiesraad",
		Short:         "Extract Dutch election results from EML documents and result pages.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose logs")
	root.PersistentFlags().StringVar(&a.backend, "metrics-backend", "", "metrics backend: none|datadog (overrides env METRICS_BACKEND)")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	root.AddCommand(newParseCmd(a), newDefinitionCmd(a), newPagesCmd(a))
	return root
}

// noArgs rejects positional arguments as a usage error.
func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usagef("%s takes no arguments, got %q", cmd.CommandPath(), args)
	}
	return nil
}

// metricsBackendName picks the backend: flag, then job file, then env, then none.
func (a *app) metricsBackendName(fromJob string) string {
	if a.backend != "" {
		return a.backend
	}
	if fromJob != "" {
		return fromJob
	}
	return os.Getenv("METRICS_BACKEND")
}
