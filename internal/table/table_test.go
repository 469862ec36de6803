package table

import (
	"bytes"
	"reflect"
	"testing"
)

func TestNew_UnionColumnsInDiscoveryOrder(t *testing.T) {
	t.Parallel()

	a := NewRecord(3).Set("station", "1").Set("PartyA", int64(5))
	b := NewRecord(3).Set("station", "2").Set("PartyB", int64(7)).Set("PartyA", int64(1))

	tbl := New("x_aggregate", []*Record{a, b})

	want := []string{"station", "PartyA", "PartyB"}
	if !reflect.DeepEqual(tbl.Columns(), want) {
		t.Fatalf("columns = %v, want %v", tbl.Columns(), want)
	}
	if tbl.Value(0, "PartyB") != nil {
		t.Fatalf("missing cell = %v, want nil", tbl.Value(0, "PartyB"))
	}
	if got := tbl.Column("PartyA"); !reflect.DeepEqual(got, []any{int64(5), int64(1)}) {
		t.Fatalf("PartyA = %v", got)
	}
}

func TestReorder_CanonicalPrefixThenDiscovery(t *testing.T) {
	t.Parallel()

	r := NewRecord(5).
		Set("station_name", "A").
		Set("PartyB", int64(1)).
		Set("contest_name", "C").
		Set("PartyA", int64(2)).
		Set("cast", "3")

	tbl := New("t", []*Record{r})
	tbl.Reorder([]string{"contest_name", "managing_authority", "station_name", "cast", "cast"})

	want := []string{"contest_name", "station_name", "cast", "PartyB", "PartyA"}
	if !reflect.DeepEqual(tbl.Columns(), want) {
		t.Fatalf("columns = %v, want %v", tbl.Columns(), want)
	}
	if got := tbl.Values()[0]; !reflect.DeepEqual(got, []any{"C", "A", "3", int64(1), int64(2)}) {
		t.Fatalf("values = %v", got)
	}
}

func TestRecord_SetKeepsPositionAndCloneIsIndependent(t *testing.T) {
	t.Parallel()

	r := NewRecord(2).Set("a", 1).Set("b", 2).Set("a", 3)
	if !reflect.DeepEqual(r.Keys(), []string{"a", "b"}) {
		t.Fatalf("keys = %v", r.Keys())
	}
	c := r.Clone().Set("c", 4)
	if r.Len() != 2 || c.Len() != 3 {
		t.Fatalf("clone not independent: r=%d c=%d", r.Len(), c.Len())
	}
	s := r.Subset([]string{"b", "z"})
	if !reflect.DeepEqual(s.Map(), map[string]any{"b": 2, "z": nil}) {
		t.Fatalf("subset = %v", s.Map())
	}
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	tbl := New("t", []*Record{
		NewRecord(2).Set("name", "Stembureau, 1").Set("votes", int64(10)),
		NewRecord(2).Set("name", nil),
	})

	var buf bytes.Buffer
	if err := tbl.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "name,votes\n\"Stembureau, 1\",10\n,\n"
	if buf.String() != want {
		t.Fatalf("csv =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestNewWithColumns(t *testing.T) {
	t.Parallel()

	empty := NewWithColumns("candidate_list", []string{"party_name", "last_name"}, nil)
	var buf bytes.Buffer
	if err := empty.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if buf.String() != "party_name,last_name\n" {
		t.Fatalf("empty table csv = %q", buf.String())
	}

	tbl := NewWithColumns("t", []string{"a", "b"}, []*Record{
		NewRecord(2).Set("extra", "x").Set("b", "2"),
	})
	if want := []string{"a", "b", "extra"}; !reflect.DeepEqual(tbl.Columns(), want) {
		t.Fatalf("columns = %v, want %v", tbl.Columns(), want)
	}
	if tbl.Value(0, "a") != nil {
		t.Fatalf("declared column without value = %v", tbl.Value(0, "a"))
	}
}
