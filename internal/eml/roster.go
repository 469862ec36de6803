package eml

import (
	"errors"

	"kiesraad/internal/emltree"
	"kiesraad/internal/table"
)

// ErrNotCandidateList is returned when a document has no CandidateList/Election block.
var ErrNotCandidateList = errors.New("eml: not a candidate-list document")

// RosterColumns is the column layout of the candidate roster table.
var RosterColumns = []string{
	"election_id",
	"election_name",
	"election_date",
	"nomination_date",
	"election_domain_id",
	"election_domain_name",
	"contest_name",
	"party_name",
	"party_id",
	"candidate_identifier",
	"first_name",
	"last_name",
	"initials",
	"prefix",
	"gender",
	"address",
}

// NameBlockFamilies are the fixed prefixes tried, in order, for a candidate's
// name block that carries no numbered prefix.
var NameBlockFamilies = []string{"xnl"}

// Roster accumulates candidate records across candidate-list documents.
// Rows keep the order in which documents were added.
type Roster struct {
	rows []*table.Record
	iss  *issues
}

// NewRoster returns an empty roster. A nil logger discards diagnostics.
func NewRoster(logger Logger) *Roster {
	return &Roster{iss: &issues{logf: printf(logger)}}
}

// Rows returns the records accumulated so far.
func (r *Roster) Rows() []*table.Record { return r.rows }

// Len reports the number of accumulated records.
func (r *Roster) Len() int { return len(r.rows) }

// Degraded lists the reasons candidates were skipped or emitted with nil
// name fields, across every document added so far.
func (r *Roster) Degraded() []string { return r.iss.reasons }

// Add appends one record per (party, candidate) pair found in doc.
//
// Biographical fields sit in a name block whose namespace prefix is numbered
// per document; it is discovered from each candidate's CandidateFullName,
// falling back to NameBlockFamilies. When no prefix resolves the name fields
// are left nil and the record is still emitted.
func (r *Roster) Add(doc *emltree.Node) error {
	election := emltree.Get(doc, "EML", "CandidateList", "Election")
	if !election.IsMap() {
		return ErrNotCandidateList
	}

	ident := emltree.Get(election, "ElectionIdentifier")
	id := ReadIdentity(ident, CandidateListFamilies)
	nomination := prefixedText(ident, "NominationDate", CandidateListFamilies)

	contest := first(emltree.Get(election, "Contest"))
	contestName := optional(emltree.Text(contest, "ContestIdentifier", "ContestName"))

	base := table.NewRecord(len(RosterColumns))
	base.Set("election_id", table.StringPtr(id.ElectionID))
	base.Set("election_name", table.StringPtr(id.ElectionName))
	base.Set("election_date", table.StringPtr(id.ElectionDate))
	base.Set("nomination_date", table.StringPtr(nomination))
	base.Set("election_domain_id", table.StringPtr(id.DomainID))
	base.Set("election_domain_name", table.StringPtr(id.DomainName))
	base.Set("contest_name", table.StringPtr(contestName))

	for _, party := range emltree.AsList(emltree.Get(contest, "Affiliation")) {
		aff := emltree.Get(party, "AffiliationIdentifier")
		partyName := table.String(emltree.Text(aff, "RegisteredName"))
		partyID := table.String(emltree.Attr(aff, "Id"))

		for i, cand := range emltree.AsList(emltree.Get(party, "Candidate")) {
			if !cand.IsMap() {
				r.iss.notef("candidate_shape_mismatch", "stage=roster party=%v candidate=%d status=skipped reason=shape_mismatch kind=%s", partyID, i, cand.Kind())
				continue
			}
			rec := base.Clone().
				Set("party_name", partyName).
				Set("party_id", partyID).
				Set("candidate_identifier", table.String(emltree.Attr(emltree.Get(cand, "CandidateIdentifier"), "Id")))
			r.candidateFields(rec, cand)
			r.rows = append(r.rows, rec)
		}
	}
	return nil
}

func (r *Roster) candidateFields(rec *table.Record, cand *emltree.Node) {
	full := emltree.Get(cand, "CandidateFullName")
	ns, ok := namePrefix(full)
	if !ok {
		cid, _ := rec.Get("candidate_identifier")
		r.iss.notef("ambiguous_prefix", "stage=roster candidate=%v status=degraded reason=ambiguous_prefix", cid)
		rec.Set("first_name", nil).
			Set("last_name", nil).
			Set("initials", nil).
			Set("prefix", nil).
			Set("gender", table.String(emltree.Text(cand, "Gender"))).
			Set("address", nil)
		return
	}

	p := func(local string) string { return emltree.Prefixed(ns, local) }
	person := emltree.Get(full, p("PersonName"))

	rec.Set("first_name", table.String(emltree.Text(person, p("FirstName"))))
	rec.Set("last_name", table.String(emltree.Text(person, p("LastName"))))
	rec.Set("initials", table.String(emltree.Text(person, p("NameLine"))))
	rec.Set("prefix", table.String(emltree.Text(person, p("NamePrefix"))))
	rec.Set("gender", table.String(emltree.Text(cand, "Gender")))
	rec.Set("address", table.String(emltree.Text(cand, "QualifyingAddress", p("Locality"), p("LocalityName"))))
}

// namePrefix picks the prefix of a CandidateFullName block: a numbered prefix
// found on its keys, else the first of NameBlockFamilies holding a PersonName.
func namePrefix(full *emltree.Node) (string, bool) {
	if ns, ok := emltree.DiscoverPrefix(full); ok {
		return ns, true
	}
	for _, family := range NameBlockFamilies {
		if _, err := emltree.ResolvePrefixed(full, "PersonName", family); err == nil {
			return family, true
		}
	}
	return "", false
}
