package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JaimeStill/tally/pkg/pagination"
	"github.com/JaimeStill/tally/pkg/query"
	"github.com/JaimeStill/tally/pkg/repository"
)

var (
	errNotFound  = errors.New("not found")
	errDuplicate = errors.New("duplicate")
)

func TestMapError(t *testing.T) {
	other := errors.New("connection reset")
	foreignKey := &pgconn.PgError{Code: "23503"}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, errNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, errDuplicate},
		{"wrapped unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), errDuplicate},
		{"other pg error", foreignKey, foreignKey},
		{"passthrough", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repository.MapError(tt.err, errNotFound, errDuplicate)
			if !errors.Is(got, tt.want) && got != tt.want {
				t.Errorf("MapError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestMapErrorNamesConstraint(t *testing.T) {
	err := repository.MapError(&pgconn.PgError{Code: "23505", ConstraintName: "prompts_stage_active_idx"}, errNotFound, errDuplicate)
	if !errors.Is(err, errDuplicate) {
		t.Fatalf("MapError = %v, want duplicate", err)
	}
	if err.Error() != "duplicate (prompts_stage_active_idx)" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !repository.IsUniqueViolation(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "23505"})) {
		t.Error("wrapped 23505 should be a unique violation")
	}
	if repository.IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("23503 is not a unique violation")
	}
	if repository.IsUniqueViolation(sql.ErrNoRows) {
		t.Error("ErrNoRows is not a unique violation")
	}
}

// stubDriver answers COUNT(*) with a fixed total and any other query with
// one row per name. It records transaction outcomes.
type stubDriver struct {
	total     int64
	names     []string
	commits   int
	rollbacks int
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return &stubConn{d: d}, nil }

type stubConn struct{ d *stubDriver }

func (c *stubConn) Prepare(q string) (driver.Stmt, error) { return &stubStmt{d: c.d, q: q}, nil }
func (c *stubConn) Close() error                          { return nil }
func (c *stubConn) Begin() (driver.Tx, error)             { return &stubTx{d: c.d}, nil }

type stubTx struct{ d *stubDriver }

func (t *stubTx) Commit() error   { t.d.commits++; return nil }
func (t *stubTx) Rollback() error { t.d.rollbacks++; return nil }

type stubStmt struct {
	d *stubDriver
	q string
}

func (s *stubStmt) Close() error  { return nil }
func (s *stubStmt) NumInput() int { return -1 }

func (s *stubStmt) Exec([]driver.Value) (driver.Result, error) {
	return driver.RowsAffected(int64(len(s.d.names))), nil
}

func (s *stubStmt) Query([]driver.Value) (driver.Rows, error) {
	if strings.HasPrefix(s.q, "SELECT COUNT(*)") {
		return &stubRows{values: [][]driver.Value{{s.d.total}}}, nil
	}
	rows := &stubRows{}
	for _, n := range s.d.names {
		rows.values = append(rows.values, []driver.Value{n})
	}
	return rows, nil
}

type stubRows struct {
	values [][]driver.Value
	next   int
}

func (r *stubRows) Columns() []string { return []string{"value"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.next >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.next])
	r.next++
	return nil
}

func openStub(t *testing.T, d *stubDriver) *sql.DB {
	t.Helper()
	db := sql.OpenDB(stubConnector{d})
	t.Cleanup(func() { db.Close() })
	return db
}

type stubConnector struct{ d *stubDriver }

func (c stubConnector) Connect(context.Context) (driver.Conn, error) { return c.d.Open("") }
func (c stubConnector) Driver() driver.Driver                        { return c.d }

func scanName(s repository.Scanner) (string, error) {
	var name string
	err := s.Scan(&name)
	return name, err
}

func TestQueryPage(t *testing.T) {
	d := &stubDriver{total: 5, names: []string{"approval", "invoice"}}
	db := openStub(t, d)

	projection := query.NewProjectionMap("public", "transitions", "t").Project("event", "Event")
	qb := query.NewBuilder(projection, query.SortField{Field: "Event"})

	result, err := repository.QueryPage(context.Background(), db, qb,
		pagination.PageRequest{Page: 2, PageSize: 2}, scanName)
	if err != nil {
		t.Fatalf("query page failed: %v", err)
	}

	if result.Total != 5 || result.TotalPages != 3 || result.Page != 2 {
		t.Errorf("page metadata: got %+v", result)
	}
	if len(result.Data) != 2 || result.Data[0] != "approval" {
		t.Errorf("data: got %v", result.Data)
	}
}

func TestQueryManyEmpty(t *testing.T) {
	db := openStub(t, &stubDriver{})

	names, err := repository.QueryMany(context.Background(), db, "SELECT value", nil, scanName)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if names == nil || len(names) != 0 {
		t.Errorf("want empty non-nil slice, got %#v", names)
	}
}

func TestInTx(t *testing.T) {
	d := &stubDriver{names: []string{"prompt"}}
	db := openStub(t, d)
	ctx := context.Background()

	err := repository.InTx(ctx, db, func(tx *sql.Tx) error {
		return repository.ExecExpectOne(ctx, tx, "DELETE FROM prompts WHERE id = $1", 1)
	})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if d.commits != 1 {
		t.Errorf("commits: got %d, want 1", d.commits)
	}

	d.names = nil
	err = repository.InTx(ctx, db, func(tx *sql.Tx) error {
		return repository.ExecExpectOne(ctx, tx, "DELETE FROM prompts WHERE id = $1", 2)
	})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("missing row: got %v, want sql.ErrNoRows", err)
	}
	if d.commits != 1 || d.rollbacks != 1 {
		t.Errorf("outcomes: got %d commits %d rollbacks", d.commits, d.rollbacks)
	}
}
