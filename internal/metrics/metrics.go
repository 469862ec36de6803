// Package metrics is a small process-wide metrics facade.
//
// Extraction and export code records through the package-level helpers; the
// CLI chooses a Backend at startup (nop by default, Datadog when configured).
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Metric names understood by the backends.
const (
	DocumentsTotal       = "eml_documents_total"
	RowsTotal            = "eml_rows_total"
	StageDurationSeconds = "eml_stage_duration_seconds"
	HTTPRequestsTotal    = "eml_http_requests_total"
	HTTPErrorsTotal      = "eml_http_errors_total"
	HTTPDurationSeconds  = "eml_http_request_duration_seconds"
	HTTPDownloadBytes    = "eml_http_download_bytes"
)

// Labels are metric dimensions, e.g. {"class": "count", "status": "ok"}.
type Labels map[string]string

// Backend receives metric events.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer.
type Flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	current Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. A nil b restores the nop backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		current = nopBackend{}
		return
	}
	current = b
}

func backend() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Flush flushes the current backend if it buffers.
func Flush() error {
	if f, ok := backend().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// IncCounter forwards to the current backend.
func IncCounter(name string, delta float64, labels Labels) {
	backend().IncCounter(name, delta, labels)
}

// ObserveHistogram forwards to the current backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	backend().ObserveHistogram(name, value, labels)
}

// RecordDocument counts one processed document of the given class
// ("definition", "count", "candidate_list") with its outcome.
func RecordDocument(class, status string) {
	IncCounter(DocumentsTotal, 1, Labels{"class": class, "status": status})
}

// RecordRows counts n rows emitted into a table of the given kind.
func RecordRows(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(RowsTotal, float64(n), Labels{"table_kind": kind})
}

// RecordStage observes how long a stage took.
func RecordStage(stage, status string, d time.Duration) {
	ObserveHistogram(StageDurationSeconds, d.Seconds(), Labels{"stage": stage, "status": status})
}

// RecordHTTP records one page request. A zero status means no response was received.
func RecordHTTP(status int, err error, d time.Duration, bytes int64) {
	s := "error"
	if status > 0 {
		s = strconv.Itoa(status)
	}
	l := Labels{"status": s}
	IncCounter(HTTPRequestsTotal, 1, l)
	if err != nil || status >= 400 || status == 0 {
		IncCounter(HTTPErrorsTotal, 1, l)
	}
	ObserveHistogram(HTTPDurationSeconds, d.Seconds(), l)
	if bytes > 0 {
		ObserveHistogram(HTTPDownloadBytes, float64(bytes), l)
	}
}
