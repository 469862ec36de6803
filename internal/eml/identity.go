// Package eml turns parsed EML documents into flat records: per-station
// aggregates, per-candidate vote counts and candidate rosters.
package eml

import (
	"log"

	"kiesraad/internal/emltree"
	"kiesraad/internal/table"
)

// Namespace-prefix families, one per schema era, in lookup order.
//
// Vote-count and definition documents tag the Kiesraad extension fields with
// "kr"; older candidate-list documents were produced with "ns6".
var (
	CountFamilies         = []string{"kr", "ns6"}
	CandidateListFamilies = []string{"ns6", "kr"}
)

// Logger is the minimal logging interface used by the builders.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

func printf(l Logger) func(format string, v ...any) {
	if l == nil {
		return log.New(discardWriter{}, "", 0).Printf
	}
	return l.Printf
}

type discardWriter struct{}

// issues collects the reasons a document was only partly extracted.
type issues struct {
	logf    func(format string, v ...any)
	reasons []string
}

func (s *issues) notef(reason, format string, v ...any) {
	s.reasons = append(s.reasons, reason)
	s.logf(format, v...)
}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Identity is the election identity shared by every row of a document.
// Each field is independently optional.
type Identity struct {
	ElectionID   *string
	ElectionName *string
	DomainID     *string
	DomainName   *string
	ElectionDate *string
}

// ReadIdentity resolves an ElectionIdentifier block. Date and domain are
// looked up under each prefix family in order.
func ReadIdentity(ident *emltree.Node, families []string) Identity {
	id := Identity{
		ElectionID:   optional(emltree.Attr(ident, "Id")),
		ElectionName: optional(emltree.Text(ident, "ElectionName")),
		ElectionDate: prefixedText(ident, "ElectionDate", families),
	}
	domain, _ := emltree.ResolvePrefixed(ident, "ElectionDomain", families...)
	id.DomainID, id.DomainName = resolveDomain(domain)
	return id
}

// resolveDomain handles the three shapes of ElectionDomain: absent, a bare
// name, or an element carrying an Id attribute and the name as text.
func resolveDomain(n *emltree.Node) (id, name *string) {
	switch n.Kind() {
	case emltree.KindText:
		s, _ := n.Scalar()
		return nil, &s
	case emltree.KindMap:
		return optional(emltree.Attr(n, "Id")), optional(emltree.Text(n))
	default:
		return nil, nil
	}
}

// apply writes the identity columns onto r in the aggregate column order.
func (id Identity) apply(r *table.Record) {
	r.Set("election_id", table.StringPtr(id.ElectionID))
	r.Set("election_name", table.StringPtr(id.ElectionName))
	r.Set("election_domain_id", table.StringPtr(id.DomainID))
	r.Set("election_domain_name", table.StringPtr(id.DomainName))
	r.Set("election_date", table.StringPtr(id.ElectionDate))
}

func optional(s string, ok bool) *string {
	if !ok {
		return nil
	}
	return &s
}

func prefixedText(n *emltree.Node, base string, families []string) *string {
	v, err := emltree.ResolvePrefixed(n, base, families...)
	if err != nil {
		return nil
	}
	return optional(emltree.Text(v))
}

// first returns the first item of a field that may be a single item or a list.
func first(n *emltree.Node) *emltree.Node {
	items := emltree.AsList(n)
	if len(items) == 0 {
		return nil
	}
	return items[0]
}
