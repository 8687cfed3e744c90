package persistence

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type beginnerFunc func(ctx context.Context) (pgx.Tx, error)

func (f beginnerFunc) Begin(ctx context.Context) (pgx.Tx, error) { return f(ctx) }

// stubTx serves queued rows and records statements. QueryRow pops from row,
// Query pops from rows; both fall back to empty results.
type stubTx struct {
	execErr   error
	queryErr  error
	commitErr error

	execSQLs   []string
	execArgs   [][]any
	querySQLs  []string
	queryArgs  [][]any
	committed  bool
	rolledBack bool

	row  []pgx.Row
	rows []pgx.Rows
}

func (t *stubTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *stubTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}
func (t *stubTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}
func (t *stubTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *stubTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *stubTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *stubTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *stubTx) Conn() *pgx.Conn { return nil }

func (t *stubTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execSQLs = append(t.execSQLs, sql)
	t.execArgs = append(t.execArgs, args)
	if t.execErr != nil {
		return pgconn.CommandTag{}, t.execErr
	}
	return pgconn.CommandTag{}, nil
}

func (t *stubTx) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	t.querySQLs = append(t.querySQLs, sql)
	t.queryArgs = append(t.queryArgs, args)
	if t.queryErr != nil {
		return nil, t.queryErr
	}
	if len(t.rows) == 0 {
		return &stubRows{}, nil
	}
	r := t.rows[0]
	t.rows = t.rows[1:]
	return r, nil
}

func (t *stubTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	t.querySQLs = append(t.querySQLs, sql)
	t.queryArgs = append(t.queryArgs, args)
	if len(t.row) == 0 {
		return &stubRow{err: pgx.ErrNoRows}
	}
	r := t.row[0]
	t.row = t.row[1:]
	return r
}

type stubRows struct {
	data    [][]any
	idx     int
	scanErr error
	err     error
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return r.err }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}
func (r *stubRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	return scanValues(r.data[r.idx-1], dest)
}
func (r *stubRows) Values() ([]any, error) { return r.data[r.idx-1], nil }
func (r *stubRows) RawValues() [][]byte    { return nil }
func (r *stubRows) Conn() *pgx.Conn        { return nil }

type stubRow struct {
	vals []any
	err  error
}

func (r *stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanValues(r.vals, dest)
}

// scanValues assigns vals to dest pointers; a nil value zeroes the target.
func scanValues(vals []any, dest []any) error {
	if len(vals) != len(dest) {
		return fmt.Errorf("scan: %d values for %d destinations", len(vals), len(dest))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d)
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return errors.New("scan: destination must be a non-nil pointer")
		}
		elem := target.Elem()
		if vals[i] == nil {
			elem.Set(reflect.Zero(elem.Type()))
			continue
		}
		v := reflect.ValueOf(vals[i])
		if !v.Type().AssignableTo(elem.Type()) {
			return fmt.Errorf("scan: column %d: cannot assign %s to %s", i, v.Type(), elem.Type())
		}
		elem.Set(v)
	}
	return nil
}

func txBeginner(tx *stubTx) beginnerFunc {
	return func(context.Context) (pgx.Tx, error) { return tx, nil }
}

func failingBeginner(err error) beginnerFunc {
	return func(context.Context) (pgx.Tx, error) { return nil, err }
}
