package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"kiesraad/internal/metrics"
	"kiesraad/internal/metrics/datadog"
)

// metricsBackend is a metrics backend that must be closed to flush.
type metricsBackend interface {
	metrics.Backend
	Close() error
}

// Seams for tests.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	setMetricsBackend = metrics.SetBackend
	logPrintf         = log.Printf
)

// initMetrics wires the named backend into the metrics package.
//
// Extra tags come from METRICS_TAGS followed by tags.
// The returned cleanup is never nil and is safe to call once; for Datadog it
// closes the backend, which performs the final flush.
func initMetrics(ctx context.Context, jobName, backendName string, tags []string) (func(), error) {
	noop := func() {}

	if jobName == "" {
		jobName = "kiesraad"
	}

	switch strings.ToLower(strings.TrimSpace(backendName)) {
	case "", "none", "noop":
		return noop, nil

	case "datadog", "dd":
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    jobName,
			Tags:       append(datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")), tags...),
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			return noop, fmt.Errorf("datadog backend: %w", err)
		}
		setMetricsBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logPrintf("metrics: datadog close error: %v", err)
			}
		}, nil

	default:
		return noop, fmt.Errorf("unknown metrics backend %q (want none|datadog)", backendName)
	}
}
