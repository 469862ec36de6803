package config

import (
	"fmt"
	"slices"
	"strings"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is a JSON-ish location ("storage.dsn").
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks j and returns every issue found, errors and warnings alike.
func Validate(j Job) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, a ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	if strings.TrimSpace(j.Source) == "" {
		add(SeverityError, "source", "is required")
	}

	if strings.TrimSpace(j.Output.Dir) == "" && j.Storage == nil {
		add(SeverityError, "output", "set output.dir or storage")
	}

	for i, m := range j.ExcludeMarkers {
		if strings.TrimSpace(m) == "" {
			add(SeverityWarning, fmt.Sprintf("exclude_markers[%d]", i), "empty marker excludes every document")
		}
	}

	if s := j.Storage; s != nil {
		if !slices.Contains(StorageKinds, s.Kind) {
			add(SeverityError, "storage.kind", "unsupported kind %q (want %s)", s.Kind, strings.Join(StorageKinds, "|"))
		}
		if strings.TrimSpace(s.DSN) == "" {
			add(SeverityError, "storage.dsn", "is required")
		}
		if s.BatchSize < 0 {
			add(SeverityError, "storage.batch_size", "must be >= 0")
		}
	}

	if !slices.Contains(MetricsBackends, strings.ToLower(j.Metrics.Backend)) {
		add(SeverityWarning, "metrics.backend", "unknown backend %q; metrics disabled", j.Metrics.Backend)
	}
	for i, tag := range j.Metrics.Tags {
		if !strings.Contains(tag, ":") {
			add(SeverityWarning, fmt.Sprintf("metrics.tags[%d]", i), "tag %q is not key:value", tag)
		}
	}
	return out
}
