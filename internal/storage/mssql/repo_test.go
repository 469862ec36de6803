package mssql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"kiesraad/internal/storage"
)

type fakeResult struct{ n int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.n, nil }

type fakeTx struct {
	db *fakeDB
}

func (t *fakeTx) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	t.db.statements = append(t.db.statements, query)
	t.db.argCounts = append(t.db.argCounts, len(args))
	if t.db.failExec {
		return nil, errors.New("exec failed")
	}
	return fakeResult{n: int64(len(args) / t.db.columns)}, nil
}

func (t *fakeTx) Commit() error   { t.db.committed = true; return nil }
func (t *fakeTx) Rollback() error { t.db.rolledBack = !t.db.committed; return nil }

type fakeDB struct {
	columns    int
	statements []string
	argCounts  []int
	failExec   bool
	committed  bool
	rolledBack bool
}

func (f *fakeDB) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	f.statements = append(f.statements, query)
	return fakeResult{}, nil
}

func (f *fakeDB) BeginTx(context.Context, *sql.TxOptions) (txConn, error) {
	return &fakeTx{db: f}, nil
}

func (f *fakeDB) Close() error { return nil }

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	got, err := buildCreateSQL(storage.TableSpec{Name: "dbo.gr2018", Columns: []storage.ColumnSpec{
		{Name: "station_id", Type: storage.Text},
		{Name: "odd]name", Type: storage.BigInt},
	}})
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	want := "IF OBJECT_ID(N'[dbo].[gr2018]', N'U') IS NULL BEGIN CREATE TABLE [dbo].[gr2018] " +
		"([station_id] NVARCHAR(MAX) NULL, [odd]]name] BIGINT NULL); END;"
	if got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

func TestBuildBulkInsertSQL(t *testing.T) {
	t.Parallel()

	q, args := buildBulkInsertSQL("t", []string{"a", "b"}, [][]any{{1, "x"}, {2, nil}})
	want := "INSERT INTO [t] ([a], [b]) VALUES (@p1, @p2), (@p3, @p4)"
	if q != want {
		t.Fatalf("got  %s\nwant %s", q, want)
	}
	if len(args) != 4 || args[3] != nil {
		t.Fatalf("args = %v", args)
	}
}

func TestInsertRows_ChunksWithinParameterLimit(t *testing.T) {
	t.Parallel()

	db := &fakeDB{columns: 3}
	repo := &Repo{db: db}

	rows := make([][]any, 1500)
	for i := range rows {
		rows[i] = []any{int64(i), "x", nil}
	}
	n, err := repo.InsertRows(context.Background(), "results", []string{"a", "b", "c"}, rows)
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if n != 1500 {
		t.Fatalf("inserted %d, want 1500", n)
	}
	for i, c := range db.argCounts {
		if c > maxParams {
			t.Fatalf("statement %d binds %d parameters", i, c)
		}
	}
	if len(db.statements) != 3 || !db.committed {
		t.Fatalf("statements=%d committed=%v", len(db.statements), db.committed)
	}
}

func TestInsertRows_RollsBackOnError(t *testing.T) {
	t.Parallel()

	db := &fakeDB{columns: 1, failExec: true}
	repo := &Repo{db: db}

	if _, err := repo.InsertRows(context.Background(), "results", []string{"a"}, [][]any{{1}}); err == nil {
		t.Fatal("expected error")
	}
	if db.committed || !db.rolledBack {
		t.Fatalf("committed=%v rolledBack=%v", db.committed, db.rolledBack)
	}
}

func TestEnsureTable(t *testing.T) {
	t.Parallel()

	db := &fakeDB{}
	repo := &Repo{db: db}
	spec := storage.TableSpec{Name: "candidate_list", Columns: []storage.ColumnSpec{{Name: "gender", Type: storage.Text}}}
	if err := repo.EnsureTable(context.Background(), spec); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if len(db.statements) != 1 || !strings.HasPrefix(db.statements[0], "IF OBJECT_ID(N'[candidate_list]'") {
		t.Fatalf("statements = %q", db.statements)
	}
}
