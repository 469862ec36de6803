package resultpages

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func page(municipality string, general [4]string, parties ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><h3>Uitslag</h3><h3>` + municipality + `</h3>`)
	b.WriteString(`<ul id="algemeneUitslagen">`)
	for _, v := range general {
		b.WriteString(`<li><span class="label">x</span><span class="value">` + v + `</span></li>`)
	}
	b.WriteString(`</ul><div class="partijen">`)
	for _, p := range parties {
		b.WriteString(p)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func party(name string, values ...string) string {
	var b strings.Builder
	b.WriteString(`<div class="partij"><h4 class="partij-naam">` + name + `</h4>`)
	for _, v := range values {
		b.WriteString(`<span class="value">` + v + `</span>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}

var utrecht = page("Utrecht", [4]string{"260.311", "148.102 (56,9%)", "412", "318"},
	party("VVD", "21.355", "7"),
	party("GROENLINKS", "33.016", "11"),
	party("Piratenpartij", "512"),
)

func TestStringToInt(t *testing.T) {
	t.Parallel()

	cases := map[string]int64{
		"12":               12,
		"1.234.567":        1234567,
		" 148.102 (56,9%)": 148102,
		"0":                0,
	}
	for in, want := range cases {
		got, err := StringToInt(in)
		if err != nil || got != want {
			t.Errorf("StringToInt(%q) = (%d, %v), want %d", in, got, err, want)
		}
	}
	if _, err := StringToInt("n.v.t."); err == nil {
		t.Error("expected error for non-numeric input")
	}
}

func TestParsePage_Votes(t *testing.T) {
	t.Parallel()

	rec, err := ParsePage(utrecht, "GR2018", "Utrecht", Votes)
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	want := map[string]any{
		"Verkiezing": "GR2018", "Provincie": "Utrecht", "Gemeente": "Utrecht",
		"Kiesgerechtigden": int64(260311), "Opkomst": int64(148102), "Blanco": int64(412), "Ongeldig": int64(318),
		"VVD": int64(21355), "GROENLINKS": int64(33016), "Piratenpartij": int64(512),
	}
	if diff := cmp.Diff(want, rec.Map()); diff != "" {
		t.Fatalf("record (-want +got):\n%s", diff)
	}
}

func TestParsePage_Seats(t *testing.T) {
	t.Parallel()

	rec, err := ParsePage(utrecht, "GR2018", "Utrecht", Seats)
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	for partyName, want := range map[string]int64{"VVD": 7, "GROENLINKS": 11, "Piratenpartij": 0} {
		if got, _ := rec.Get(partyName); got != want {
			t.Errorf("%s = %v, want %d", partyName, got, want)
		}
	}
}

func TestParsePage_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		unit Unit
		want error
	}{
		{"bad_unit", utrecht, Unit("zetels"), ErrInvalidUnit},
		{"no_h3", `<ul id="algemeneUitslagen"></ul>`, Votes, ErrNoMunicipality},
		{"short_general", `<h3>X</h3><ul id="algemeneUitslagen"><span class="value">1</span></ul>`, Votes, ErrGeneralResults},
		{"party_without_value", page("X", [4]string{"1", "1", "0", "0"}, party("D66")), Votes, ErrPartyBlockValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParsePage(tt.html, "E", "P", tt.unit); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(rel, content string) {
		t.Helper()
		p := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("Utrecht/Utrecht.html", utrecht)
	write("Utrecht/Amersfoort.html", page("Amersfoort", [4]string{"115.000", "60.000", "100", "50"},
		party("CDA", "8.000", "4"),
		party("VVD", "9.000", "5"),
	))
	write("Groningen/Broken.html", "<h3>Broken</h3>")
	write("Groningen/notes.txt", "ignored")

	logger := &recordingLogger{}
	tbl, err := ParseDir(dir, "GR2018", Votes, logger)
	if err != nil {
		t.Fatalf("ParseDir: %v", err)
	}

	wantCols := []string{"Verkiezing", "Provincie", "Gemeente", "Kiesgerechtigden", "Opkomst", "Blanco", "Ongeldig",
		"CDA", "VVD", "GROENLINKS", "Piratenpartij"}
	if diff := cmp.Diff(wantCols, tbl.Columns()); diff != "" {
		t.Fatalf("columns (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"Amersfoort", "Utrecht"}, tbl.Column("Gemeente")); diff != "" {
		t.Fatalf("municipalities (-want +got):\n%s", diff)
	}
	if got := tbl.Value(0, "GROENLINKS"); got != nil {
		t.Fatalf("missing party should be nil, got %v", got)
	}
	if got := tbl.Value(1, "Provincie"); got != "Utrecht" {
		t.Fatalf("province = %v", got)
	}
	if !logger.contains("path=" + filepath.Join(dir, "Groningen", "Broken.html") + " status=skipped") {
		t.Fatalf("broken page not logged: %q", logger.lines)
	}

	if _, err := ParseDir(dir, "GR2018", Unit("x"), nil); !errors.Is(err, ErrInvalidUnit) {
		t.Fatalf("invalid unit: err = %v", err)
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Utrecht":          "Utrecht.html",
		"'s-Hertogenbosch": "sHertogenbosch.html",
		"Súdwest-Fryslân":  "SdwestFrysln.html",
		"Bergen (L.)":      "Bergen L.html",
	}
	for in, want := range cases {
		if got := FileName(in); got != want {
			t.Errorf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
}
