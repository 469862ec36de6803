package batch

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"kiesraad/internal/eml"
	"kiesraad/internal/emltree"
)

const definitionXML = `<EML><ElectionEvent><Election>
  <ElectionIdentifier Id="GR2018"><kr:ElectionDate>2018-03-21</kr:ElectionDate></ElectionIdentifier>
</Election></ElectionEvent></EML>`

func countXML(station string) string {
	return `<EML><ManagingAuthority><AuthorityIdentifier Id="1">Gemeente</AuthorityIdentifier></ManagingAuthority>
<Count><Election>
  <ElectionIdentifier Id="GR2018"><ElectionName>GR 2018</ElectionName><kr:ElectionDomain Id="1">Gemeente</kr:ElectionDomain></ElectionIdentifier>
  <Contests><Contest>
    <ContestIdentifier Id="geen"><ContestName>Gemeente</ContestName></ContestIdentifier>
    <ReportingUnitVotes>
      <ReportingUnitIdentifier Id="SB1">` + station + `</ReportingUnitIdentifier>
      <Selection><AffiliationIdentifier Id="2"><RegisteredName>PartyB</RegisteredName></AffiliationIdentifier><ValidVotes>5</ValidVotes></Selection>
      <Selection><Candidate><CandidateIdentifier Id="1"/></Candidate><ValidVotes>5</ValidVotes></Selection>
      <Selection><AffiliationIdentifier Id="1"><RegisteredName>PartyA</RegisteredName></AffiliationIdentifier><ValidVotes>9</ValidVotes></Selection>
      <Cast>14</Cast>
      <TotalCounted>14</TotalCounted>
      <RejectedVotes ReasonCode="blanco">0</RejectedVotes>
    </ReportingUnitVotes>
  </Contest></Contests>
</Election></Count></EML>`
}

const rosterXML = `<EML><CandidateList><Election>
  <ElectionIdentifier Id="GR2018"><ns6:ElectionDate>2018-03-21</ns6:ElectionDate></ElectionIdentifier>
  <Contest><Affiliation>
    <AffiliationIdentifier Id="1"><RegisteredName>PartyA</RegisteredName></AffiliationIdentifier>
    <Candidate><CandidateIdentifier Id="1"/><CandidateFullName><ns5:PersonName><ns5:LastName>Jansen</ns5:LastName></ns5:PersonName></CandidateFullName></Candidate>
  </Affiliation></Contest>
</Election></CandidateList></EML>`

func doc(t *testing.T, name, path, xml string) Document {
	t.Helper()
	tree, err := emltree.ParseString(xml)
	if err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	return Document{Name: name, Path: path, Tree: tree}
}

func tableNames(r Result) []string {
	var out []string
	for _, t := range r.Tables {
		out = append(out, t.Name())
	}
	return out
}

// Scenario D: an upper-tier document in the batch yields no tables.
func TestRun_ExcludesUpperTierDocuments(t *testing.T) {
	t.Parallel()

	docs := Documents{
		Counts: []Document{
			doc(t, "Telling_GR2018_Utrecht", "GR2018/Telling_GR2018_Utrecht.xml", countXML("Stembureau 1")),
			doc(t, "Telling_GR2018_Kieskring_1", "GR2018/Kieskring/Telling_GR2018_Kieskring_1.xml", countXML("Kieskring 1")),
		},
	}

	res := Run(docs, Options{})

	if diff := cmp.Diff([]string{"Telling_GR2018_Utrecht_aggregate"}, tableNames(res)); diff != "" {
		t.Fatalf("tables (-want +got):\n%s", diff)
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != Excluded || res.Diagnostics[0].Document != "Telling_GR2018_Kieskring_1" {
		t.Fatalf("diagnostics = %v", res.Diagnostics)
	}
}

func TestRun_FullBatch(t *testing.T) {
	t.Parallel()

	docs := Documents{
		Definitions: []Document{
			{Name: "Verkiezingsdefinitie_broken", Err: &emltree.DecodeError{Err: errors.New("bad")}},
			doc(t, "Verkiezingsdefinitie_GR2018", "Verkiezingsdefinitie_GR2018.xml", definitionXML),
		},
		Counts: []Document{
			doc(t, "Telling_GR2018_A", "Telling_GR2018_A.xml", countXML("School (postcode: 1234AB)")),
			{Name: "Telling_GR2018_broken", Path: "Telling_GR2018_broken.xml", Err: &emltree.DecodeError{Err: errors.New("unexpected EOF")}},
			doc(t, "Telling_GR2018_roster", "Telling_GR2018_roster.xml", rosterXML),
		},
		CandidateLists: []Document{
			doc(t, "Kandidatenlijsten_GR2018", "Kandidatenlijsten_GR2018.xml", rosterXML),
		},
	}

	var logs strings.Builder
	res := Run(docs, Options{PerCandidate: true, Logger: &builderLogger{&logs}})

	if res.ElectionID != "GR2018" || res.ElectionDate != "2018-03-21" {
		t.Fatalf("definition = %q %q", res.ElectionID, res.ElectionDate)
	}

	wantTables := []string{
		"Telling_GR2018_A_per_candidate",
		"Telling_GR2018_A_aggregate",
		RosterTable,
	}
	if diff := cmp.Diff(wantTables, tableNames(res)); diff != "" {
		t.Fatalf("tables (-want +got):\n%s", diff)
	}

	wantKinds := map[string]Kind{
		"Verkiezingsdefinitie_broken": DecodeFailure,
		"Telling_GR2018_broken":       DecodeFailure,
		"Telling_GR2018_roster":       ShapeMismatch,
	}
	if len(res.Diagnostics) != len(wantKinds) {
		t.Fatalf("diagnostics = %v", res.Diagnostics)
	}
	for _, d := range res.Diagnostics {
		if wantKinds[d.Document] != d.Kind {
			t.Errorf("%s kind = %s, want %s", d.Document, d.Kind, wantKinds[d.Document])
		}
	}

	agg := res.Table("Telling_GR2018_A_aggregate")
	wantCols := []string{
		"contest_name", "managing_authority", "election_id", "election_name",
		"election_domain_id", "election_domain_name", "election_date",
		"station_name", "station_id", "postcode", "cast", "total_counted",
		"rejected_blanco", "PartyB", "PartyA",
	}
	if diff := cmp.Diff(wantCols, agg.Columns()); diff != "" {
		t.Fatalf("aggregate columns (-want +got):\n%s", diff)
	}
	if agg.Value(0, "postcode") != "1234AB" || agg.Value(0, "PartyA") != int64(9) {
		t.Fatalf("aggregate row = %v", agg.Values()[0])
	}

	cand := res.Table("Telling_GR2018_A_per_candidate")
	if cand.Len() != 1 || cand.Value(0, "party_name") != "PartyB" {
		t.Fatalf("per-candidate rows = %v", cand.Values())
	}

	roster := res.Table(RosterTable)
	if roster.Len() != 1 || roster.Value(0, "last_name") != "Jansen" {
		t.Fatalf("roster rows = %v", roster.Values())
	}

	if !strings.Contains(logs.String(), "doc=Telling_GR2018_broken status=skipped kind=decode_failure") {
		t.Fatalf("missing skip log:\n%s", logs.String())
	}
}

func TestRun_WithoutPerCandidate(t *testing.T) {
	t.Parallel()

	docs := Documents{
		Counts:         []Document{doc(t, "Telling_X", "Telling_X.xml", countXML("A"))},
		CandidateLists: []Document{doc(t, "Kandidatenlijsten_X", "Kandidatenlijsten_X.xml", rosterXML)},
	}
	res := Run(docs, Options{})
	if diff := cmp.Diff([]string{"Telling_X_aggregate"}, tableNames(res)); diff != "" {
		t.Fatalf("tables (-want +got):\n%s", diff)
	}
	if res.ElectionID != "" {
		t.Fatalf("ElectionID = %q without definition document", res.ElectionID)
	}
}

func TestRun_ExcludeMarkers(t *testing.T) {
	t.Parallel()

	counts := []Document{
		doc(t, "Telling_A", "data/KIESKRING/Telling_A.xml", countXML("A")),
		doc(t, "Telling_B", "data/provincie/Telling_B.xml", countXML("B")),
	}

	cases := []struct {
		name    string
		markers []string
		want    []string
	}{
		{name: "default_case_insensitive", markers: nil, want: []string{"Telling_B_aggregate"}},
		{name: "none", markers: []string{}, want: []string{"Telling_A_aggregate", "Telling_B_aggregate"}},
		{name: "custom", markers: []string{"Provincie"}, want: []string{"Telling_A_aggregate"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := Run(Documents{Counts: counts}, Options{ExcludeMarkers: tc.markers})
			if diff := cmp.Diff(tc.want, tableNames(res)); diff != "" {
				t.Fatalf("tables (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRun_ReportsDegradedDocuments(t *testing.T) {
	t.Parallel()

	partial := `<EML><Count><Election><ElectionIdentifier Id="GR2018"/><Contests><Contest>
  <ReportingUnitVotes>Stembureau zonder opbouw</ReportingUnitVotes>
  <ReportingUnitVotes>
    <ReportingUnitIdentifier Id="SB2">Stembureau 2</ReportingUnitIdentifier>
    <Selection><AffiliationIdentifier Id="1"><RegisteredName>PartyA</RegisteredName></AffiliationIdentifier><ValidVotes>abc</ValidVotes></Selection>
  </ReportingUnitVotes>
</Contest></Contests></Election></Count></EML>`

	unprefixed := `<EML><CandidateList><Election><ElectionIdentifier Id="GR2018"/>
  <Contest><Affiliation>
    <AffiliationIdentifier Id="1"><RegisteredName>PartyA</RegisteredName></AffiliationIdentifier>
    <Candidate><CandidateIdentifier Id="1"/><CandidateFullName><PersonName><LastName>Smit</LastName></PersonName></CandidateFullName></Candidate>
  </Affiliation></Contest>
</Election></CandidateList></EML>`

	docs := Documents{
		Counts: []Document{
			doc(t, "Telling_GR2018_partial", "Telling_GR2018_partial.xml", partial),
			doc(t, "Telling_GR2018_clean", "Telling_GR2018_clean.xml", countXML("Stembureau 1")),
		},
		CandidateLists: []Document{
			doc(t, "Kandidatenlijsten_unprefixed", "Kandidatenlijsten_unprefixed.xml", unprefixed),
			doc(t, "Kandidatenlijsten_clean", "Kandidatenlijsten_clean.xml", rosterXML),
		},
	}

	var logs strings.Builder
	res := Run(docs, Options{PerCandidate: true, Logger: &builderLogger{&logs}})

	agg := res.Table("Telling_GR2018_partial_aggregate")
	if agg == nil || agg.Len() != 1 || agg.Value(0, "PartyA") != nil {
		t.Fatalf("degraded document should still yield its rows, got %v", tableNames(res))
	}
	if roster := res.Table(RosterTable); roster.Len() != 2 {
		t.Fatalf("roster rows = %d, want 2", roster.Len())
	}

	want := []Diagnostic{
		{Document: "Telling_GR2018_partial", Kind: Degraded},
		{Document: "Kandidatenlijsten_unprefixed", Kind: Degraded},
	}
	got := make([]Diagnostic, len(res.Diagnostics))
	for i, d := range res.Diagnostics {
		got[i] = Diagnostic{Document: d.Document, Kind: d.Kind}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("diagnostics (-want +got):\n%s", diff)
	}
	if msg := res.Diagnostics[0].Err.Error(); msg != "2 issue(s): unit_shape_mismatch=1 votes_not_a_number=1" {
		t.Fatalf("count diagnostic = %q", msg)
	}
	if msg := res.Diagnostics[1].Err.Error(); msg != "1 issue(s): ambiguous_prefix=1" {
		t.Fatalf("roster diagnostic = %q", msg)
	}
	if res.Count(Degraded) != 2 || res.Count(DecodeFailure) != 0 {
		t.Fatalf("counts: degraded=%d decode=%d", res.Count(Degraded), res.Count(DecodeFailure))
	}
	if !strings.Contains(logs.String(), "stage=batch status=degraded tables=5 skipped=0 degraded=2") {
		t.Fatalf("missing batch summary:\n%s", logs.String())
	}
}

func TestRun_EmptyRosterKeepsColumns(t *testing.T) {
	t.Parallel()

	res := Run(Documents{}, Options{PerCandidate: true})
	roster := res.Table(RosterTable)
	if roster == nil || roster.Len() != 0 {
		t.Fatalf("roster = %v", roster)
	}
	if diff := cmp.Diff(eml.RosterColumns, roster.Columns()); diff != "" {
		t.Fatalf("roster columns (-want +got):\n%s", diff)
	}
}

type builderLogger struct{ b *strings.Builder }

func (l *builderLogger) Printf(format string, v ...any) {
	l.b.WriteString(fmt.Sprintf(format, v...))
	l.b.WriteByte('\n')
}
