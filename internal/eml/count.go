package eml

import (
	"errors"
	"strconv"
	"strings"

	"kiesraad/internal/emltree"
	"kiesraad/internal/table"
)

// ErrNotCountDocument is returned when a document has no Count/Election block.
var ErrNotCountDocument = errors.New("eml: not a vote-count document")

// candidateColumns are the aggregate columns copied onto every per-candidate row.
var candidateColumns = []string{
	"election_id",
	"election_name",
	"election_domain_name",
	"election_domain_id",
	"election_date",
	"contest_name",
	"managing_authority",
	"station_id",
	"station_name",
	"postcode",
}

// CountResult holds the rows extracted from one vote-count document.
type CountResult struct {
	Aggregates []*table.Record
	Candidates []*table.Record

	ContestName       *string
	ManagingAuthority *string

	// Degraded lists, in document order, the reasons parts of the document
	// were skipped or replaced by nil. Empty for a clean document.
	Degraded []string
}

// ParseCount walks one vote-count document.
//
// It emits one aggregate row per reporting unit, with a column per party
// holding that party's total, and, when perCandidate is set, one row per
// candidate selection. A document without any reporting-unit breakdown still
// yields one aggregate row carrying the identity columns.
//
// Missing optional fields resolve to nil. Reporting units and selections that
// are not structured items are logged, skipped and listed in Degraded.
func ParseCount(doc *emltree.Node, perCandidate bool, logger Logger) (CountResult, error) {
	iss := &issues{logf: printf(logger)}

	election := emltree.Get(doc, "EML", "Count", "Election")
	if !election.IsMap() {
		return CountResult{}, ErrNotCountDocument
	}

	contests := emltree.AsList(emltree.Get(election, "Contests", "Contest"))
	if len(contests) > 1 {
		iss.notef("multiple_contests", "stage=count status=degraded reason=multiple_contests contests=%d using=first", len(contests))
	}
	contest := first(emltree.Get(election, "Contests", "Contest"))

	res := CountResult{
		ContestName:       optional(emltree.Text(contest, "ContestIdentifier", "ContestName")),
		ManagingAuthority: optional(emltree.Text(doc, "EML", "ManagingAuthority", "AuthorityIdentifier")),
	}

	base := table.NewRecord(16)
	ReadIdentity(emltree.Get(election, "ElectionIdentifier"), CountFamilies).apply(base)
	base.Set("contest_name", table.StringPtr(res.ContestName))
	base.Set("managing_authority", table.StringPtr(res.ManagingAuthority))

	units := emltree.Get(contest, "ReportingUnitVotes")
	if units.IsNull() {
		row := base.Clone().
			Set("station_id", nil).
			Set("station_name", nil).
			Set("postcode", nil)
		res.Aggregates = append(res.Aggregates, row)
		res.Degraded = iss.reasons
		return res, nil
	}

	for i, unit := range emltree.AsList(units) {
		if !unit.IsMap() {
			iss.notef("unit_shape_mismatch", "stage=count unit=%d status=skipped reason=shape_mismatch kind=%s", i, unit.Kind())
			continue
		}
		row, cands := parseReportingUnit(base, unit, perCandidate, iss)
		res.Aggregates = append(res.Aggregates, row)
		res.Candidates = append(res.Candidates, cands...)
	}
	res.Degraded = iss.reasons
	return res, nil
}

func parseReportingUnit(base *table.Record, unit *emltree.Node, perCandidate bool, iss *issues) (*table.Record, []*table.Record) {
	row := base.Clone()

	stationID, label := stationIdentity(emltree.Get(unit, "ReportingUnitIdentifier"))
	name, postcode := DecomposeStationName(label)
	row.Set("station_id", table.StringPtr(stationID))
	row.Set("station_name", table.StringPtr(name))
	row.Set("postcode", table.StringPtr(postcode))
	row.Set("cast", table.String(emltree.Text(unit, "Cast")))
	row.Set("total_counted", table.String(emltree.Text(unit, "TotalCounted")))
	flattenReasons(row, "rejected_", emltree.Get(unit, "RejectedVotes"), iss)
	flattenReasons(row, "uncounted_", emltree.Get(unit, "UncountedVotes"), iss)

	keep := row.Subset(candidateColumns)

	var (
		cands            []*table.Record
		partyName, party any
	)
	for _, sel := range emltree.AsList(emltree.Get(unit, "Selection")) {
		if !sel.IsMap() {
			iss.notef("selection_shape_mismatch", "stage=count station=%v status=skipped reason=shape_mismatch selection_kind=%s", table.StringPtr(stationID), sel.Kind())
			continue
		}

		if aff, ok := sel.Field("AffiliationIdentifier"); ok {
			party = table.String(emltree.Attr(aff, "Id"))
			col := partyColumn(aff)
			if col == "" {
				partyName = nil
				iss.notef("party_without_name_or_id", "stage=count station=%v status=degraded reason=party_without_name_or_id", table.StringPtr(stationID))
				continue
			}
			partyName = col
			accumulate(row, col, votes(sel, iss))
			continue
		}

		cand, ok := sel.Field("Candidate")
		if !ok {
			iss.notef("selection_without_party_or_candidate", "stage=count station=%v status=degraded reason=selection_without_party_or_candidate", table.StringPtr(stationID))
			continue
		}
		if !perCandidate {
			continue
		}
		c := keep.Clone()
		c.Set("party_name", partyName)
		c.Set("party_id", party)
		c.Set("candidate_identifier", table.String(emltree.Attr(emltree.Get(cand, "CandidateIdentifier"), "Id")))
		c.Set("votes", votes(sel, iss))
		cands = append(cands, c)
	}
	return row, cands
}

// stationIdentity reads a ReportingUnitIdentifier, which is either an element
// with an Id attribute and the label as text, or the bare label.
func stationIdentity(n *emltree.Node) (id, label *string) {
	if s, ok := n.Scalar(); ok {
		return nil, &s
	}
	return optional(emltree.Attr(n, "Id")), optional(emltree.Text(n))
}

// flattenReasons writes one column per reason code, named prefix + lowercased code.
func flattenReasons(row *table.Record, prefix string, reasons *emltree.Node, iss *issues) {
	for _, r := range emltree.AsList(reasons) {
		code, ok := emltree.Attr(r, "ReasonCode")
		if !ok {
			iss.notef("missing_reason_code", "stage=count status=degraded reason=missing_reason_code column_prefix=%s", prefix)
			continue
		}
		row.Set(prefix+strings.ToLower(code), table.String(emltree.Text(r)))
	}
}

// partyColumn names a party column after its registered name, falling back to its id.
func partyColumn(aff *emltree.Node) string {
	if name, ok := emltree.Text(aff, "RegisteredName"); ok && name != "" {
		return name
	}
	id, _ := emltree.Attr(aff, "Id")
	return id
}

// votes coerces the ValidVotes of a selection to int64; nil if absent or not a number.
func votes(sel *emltree.Node, iss *issues) any {
	s, ok := emltree.Text(sel, "ValidVotes")
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		iss.notef("votes_not_a_number", "stage=count status=degraded reason=shape_mismatch field=ValidVotes value=%q", s)
		return nil
	}
	return n
}

// accumulate adds v to an existing integer cell, so repeated selections for
// the same party sum up.
func accumulate(row *table.Record, col string, v any) {
	prev, _ := row.Get(col)
	p, okPrev := prev.(int64)
	n, okNew := v.(int64)
	switch {
	case okPrev && okNew:
		row.Set(col, p+n)
	case okPrev:
		// keep the existing total
	default:
		row.Set(col, v)
	}
}
