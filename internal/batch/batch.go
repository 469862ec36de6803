// Package batch drives the EML builders across one batch of documents and
// assembles the named result tables.
//
// Every document is processed in isolation: a document that cannot be decoded
// or does not have the expected shape is reported as a Diagnostic and the
// rest of the batch carries on.
package batch

import (
	"fmt"
	"log"
	"strings"
	"time"

	"kiesraad/internal/eml"
	"kiesraad/internal/emltree"
	"kiesraad/internal/metrics"
	"kiesraad/internal/table"
)

// RosterTable is the name of the candidate roster table.
const RosterTable = "candidate_list"

// Table name suffixes for vote-count documents.
const (
	AggregateSuffix    = "_aggregate"
	PerCandidateSuffix = "_per_candidate"
)

// DefaultExcludeMarkers are the path markers of upper-tier count documents
// (electoral-district totals) that duplicate the municipal counts.
var DefaultExcludeMarkers = []string{"kieskring"}

// AggregateColumnOrder is the canonical column prefix of aggregate tables.
// Party columns follow in discovery order.
var AggregateColumnOrder = []string{
	"contest_name",
	"managing_authority",
	"election_id",
	"election_name",
	"election_domain_id",
	"election_domain_name",
	"election_date",
	"station_name",
	"station_id",
	"postcode",
	"cast",
	"total_counted",
	"rejected_blanco",
	"rejected_ongeldig",
	"uncounted_andere verklaring",
	"uncounted_geen verklaring",
	"uncounted_geldige kiezerspassen",
	"uncounted_geldige stempassen",
	"uncounted_geldige volmachtbewijzen",
	"uncounted_kwijtgeraakte stembiljetten",
	"uncounted_meegenomen stembiljetten",
	"uncounted_meer getelde stembiljetten",
	"uncounted_minder getelde stembiljetten",
	"uncounted_te veel uitgereikte stembiljetten",
	"uncounted_te weinig uitgereikte stembiljetten",
	"uncounted_toegelaten kiezers",
}

// Document is one source document of a batch.
type Document struct {
	// Name labels the output tables (the file stem).
	Name string
	// Path is where the document came from; exclusion markers match against it.
	Path string
	// Tree is the parsed document, nil when Err is set.
	Tree *emltree.Node
	// Err is the decode failure, if any.
	Err error
}

// Documents groups a batch by document class, each in caller order.
type Documents struct {
	Definitions    []Document
	Counts         []Document
	CandidateLists []Document
}

// Kind classifies a per-document diagnostic.
type Kind string

const (
	// DecodeFailure: the document bytes could not be turned into a tree.
	DecodeFailure Kind = "decode_failure"
	// ShapeMismatch: the tree is not the expected document type.
	ShapeMismatch Kind = "shape_mismatch"
	// Excluded: the document matched an exclusion marker.
	Excluded Kind = "excluded"
	// Degraded: the document produced tables but parts of it were skipped
	// or read as nil.
	Degraded Kind = "degraded"
)

// Diagnostic records one skipped or degraded document.
type Diagnostic struct {
	Document string
	Kind     Kind
	Err      error
}

func (d Diagnostic) String() string {
	if d.Err == nil {
		return fmt.Sprintf("%s: %s", d.Document, d.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", d.Document, d.Kind, d.Err)
}

// Options controls a batch run.
type Options struct {
	// PerCandidate adds a per-candidate table per count document and the
	// candidate roster table.
	PerCandidate bool
	// ExcludeMarkers are matched case-insensitively against document paths.
	// Nil means DefaultExcludeMarkers; an empty non-nil slice excludes nothing.
	ExcludeMarkers []string
	// Logger receives diagnostics; nil discards them.
	Logger eml.Logger
}

// Result is the outcome of one batch.
type Result struct {
	// ElectionID and ElectionDate come from the first readable definition document.
	ElectionID   string
	ElectionDate string

	// Tables in output order: per count document the per-candidate table (if
	// requested) then the aggregate table; the roster table last.
	Tables []*table.Table

	Diagnostics []Diagnostic
}

// Table returns the table with the given name, or nil.
func (r Result) Table(name string) *table.Table {
	for _, t := range r.Tables {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// Count returns the number of diagnostics of the given kind.
func (r Result) Count(kind Kind) int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Run processes docs. It never fails as a whole; skipped and degraded
// documents are listed in Result.Diagnostics.
func Run(docs Documents, opts Options) Result {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(discardWriter{}, "", 0)
	}
	markers := opts.ExcludeMarkers
	if markers == nil {
		markers = DefaultExcludeMarkers
	}

	r := &runner{logger: logger, markers: markers}
	start := time.Now()

	r.definitions(docs.Definitions)
	for _, d := range docs.Counts {
		r.count(d, opts.PerCandidate)
	}
	if opts.PerCandidate {
		r.roster(docs.CandidateLists)
	}

	status := "ok"
	if len(r.res.Diagnostics) > 0 {
		status = "degraded"
	}
	metrics.RecordStage("batch", status, time.Since(start))
	degraded := r.res.Count(Degraded)
	logger.Printf("stage=batch status=%s tables=%d skipped=%d degraded=%d",
		status, len(r.res.Tables), len(r.res.Diagnostics)-degraded, degraded)
	return r.res
}

type runner struct {
	logger  eml.Logger
	markers []string
	res     Result
}

func (r *runner) skip(class string, d Document, kind Kind, err error) {
	r.res.Diagnostics = append(r.res.Diagnostics, Diagnostic{Document: d.Name, Kind: kind, Err: err})
	metrics.RecordDocument(class, string(kind))
	r.logger.Printf("stage=%s doc=%s status=skipped kind=%s err=%v", class, d.Name, kind, err)
}

// degraded records a document that yielded tables with parts missing.
// Reasons are summarized once each, with their count.
func (r *runner) degraded(class string, d Document, reasons []string) {
	err := fmt.Errorf("%d issue(s): %s", len(reasons), summarize(reasons))
	r.res.Diagnostics = append(r.res.Diagnostics, Diagnostic{Document: d.Name, Kind: Degraded, Err: err})
	metrics.RecordDocument(class, string(Degraded))
	r.logger.Printf("stage=%s doc=%s status=degraded err=%v", class, d.Name, err)
}

func summarize(reasons []string) string {
	counts := make(map[string]int, len(reasons))
	var order []string
	for _, reason := range reasons {
		if counts[reason] == 0 {
			order = append(order, reason)
		}
		counts[reason]++
	}
	parts := make([]string, len(order))
	for i, reason := range order {
		parts[i] = fmt.Sprintf("%s=%d", reason, counts[reason])
	}
	return strings.Join(parts, " ")
}

func (r *runner) definitions(docs []Document) {
	for _, d := range docs {
		if d.Err != nil {
			r.skip("definition", d, DecodeFailure, d.Err)
			continue
		}
		def, err := eml.ReadDefinition(d.Tree)
		if err != nil {
			r.skip("definition", d, ShapeMismatch, err)
			continue
		}
		r.res.ElectionID, r.res.ElectionDate = def.ElectionID, def.ElectionDate
		metrics.RecordDocument("definition", "ok")
		if len(docs) > 1 {
			r.logger.Printf("stage=definition doc=%s status=ok using=first definitions=%d", d.Name, len(docs))
		}
		return
	}
}

func (r *runner) excluded(path string) (string, bool) {
	lower := strings.ToLower(path)
	for _, m := range r.markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return m, true
		}
	}
	return "", false
}

func (r *runner) count(d Document, perCandidate bool) {
	if m, ok := r.excluded(d.Path); ok {
		r.skip("count", d, Excluded, fmt.Errorf("path matches marker %q", m))
		return
	}
	if d.Err != nil {
		r.skip("count", d, DecodeFailure, d.Err)
		return
	}

	res, err := eml.ParseCount(d.Tree, perCandidate, prefixed{r.logger, "doc=" + d.Name + " "})
	if err != nil {
		r.skip("count", d, ShapeMismatch, err)
		return
	}

	if perCandidate {
		r.res.Tables = append(r.res.Tables, table.New(d.Name+PerCandidateSuffix, res.Candidates))
		metrics.RecordRows("per_candidate", len(res.Candidates))
	}
	agg := table.New(d.Name+AggregateSuffix, res.Aggregates)
	agg.Reorder(AggregateColumnOrder)
	r.res.Tables = append(r.res.Tables, agg)
	metrics.RecordRows("aggregate", len(res.Aggregates))
	if len(res.Degraded) > 0 {
		r.degraded("count", d, res.Degraded)
		return
	}
	metrics.RecordDocument("count", "ok")
	r.logger.Printf("stage=count doc=%s status=ok stations=%d candidates=%d", d.Name, len(res.Aggregates), len(res.Candidates))
}

func (r *runner) roster(docs []Document) {
	roster := eml.NewRoster(r.logger)
	for _, d := range docs {
		if d.Err != nil {
			r.skip("candidate_list", d, DecodeFailure, d.Err)
			continue
		}
		before, issuesBefore := roster.Len(), len(roster.Degraded())
		if err := roster.Add(d.Tree); err != nil {
			r.skip("candidate_list", d, ShapeMismatch, err)
			continue
		}
		if reasons := roster.Degraded()[issuesBefore:]; len(reasons) > 0 {
			r.degraded("candidate_list", d, reasons)
			continue
		}
		metrics.RecordDocument("candidate_list", "ok")
		r.logger.Printf("stage=roster doc=%s status=ok candidates=%d", d.Name, roster.Len()-before)
	}
	r.res.Tables = append(r.res.Tables, table.NewWithColumns(RosterTable, eml.RosterColumns, roster.Rows()))
	metrics.RecordRows("candidate_list", roster.Len())
}

// prefixed tags every message of a per-document builder with the document name.
type prefixed struct {
	l      eml.Logger
	prefix string
}

func (p prefixed) Printf(format string, v ...any) {
	p.l.Printf("%s"+format, append([]any{p.prefix}, v...)...)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
