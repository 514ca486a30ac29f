// Package dbtest provides recording fakes for the db.Pool port so
// repository SQL paths can be tested without a live PostgreSQL.
package dbtest

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/machinemu/machinemu/internal/platform/db"
)

var errNotSupported = errors.New("dbtest: not supported")

var (
	_ pgx.Tx  = (*Tx)(nil)
	_ db.Pool = (*Pool)(nil)
)

// ExecCall records one statement executed inside a transaction.
type ExecCall struct {
	SQL  string
	Args []any
}

// Tx is a fake pgx.Tx. Exec appends to Calls and delegates to ExecFn when
// set; with no ExecFn every statement reports one affected row.
type Tx struct {
	Calls      []ExecCall
	ExecFn     func(sql string, args ...any) (pgconn.CommandTag, error)
	QueryRowFn func(sql string, args ...any) pgx.Row
	Committed  bool
	RolledBack bool
}

func (t *Tx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.Calls = append(t.Calls, ExecCall{SQL: sql, Args: args})
	if t.ExecFn != nil {
		return t.ExecFn(sql, args...)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errNotSupported
}

func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if t.QueryRowFn != nil {
		return t.QueryRowFn(sql, args...)
	}
	return Row{Err: errNotSupported}
}

func (t *Tx) Commit(ctx context.Context) error {
	if t.Committed || t.RolledBack {
		return pgx.ErrTxClosed
	}
	t.Committed = true
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.Committed {
		return pgx.ErrTxClosed
	}
	t.RolledBack = true
	return nil
}

func (t *Tx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, errNotSupported }

func (t *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errNotSupported
}

func (t *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }

func (t *Tx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errNotSupported
}

func (t *Tx) Conn() *pgx.Conn { return nil }

// Row is a fake pgx.Row. Scan copies Values positionally into the
// destinations, or fails with Err when set.
type Row struct {
	Values []any
	Err    error
}

func (r Row) Scan(dest ...any) error {
	if r.Err != nil {
		return r.Err
	}
	if len(dest) != len(r.Values) {
		return fmt.Errorf("dbtest: scan expects %d destinations, got %d", len(r.Values), len(dest))
	}
	for i, v := range r.Values {
		switch d := dest[i].(type) {
		case *bool:
			d2, ok := v.(bool)
			if !ok {
				return fmt.Errorf("dbtest: value %d is %T, want bool", i, v)
			}
			*d = d2
		case *int64:
			d2, ok := v.(int64)
			if !ok {
				return fmt.Errorf("dbtest: value %d is %T, want int64", i, v)
			}
			*d = d2
		case *string:
			d2, ok := v.(string)
			if !ok {
				return fmt.Errorf("dbtest: value %d is %T, want string", i, v)
			}
			*d = d2
		default:
			return fmt.Errorf("dbtest: unsupported destination %T", dest[i])
		}
	}
	return nil
}

// Pool is a fake db.Pool whose transactions all resolve to Tx. BeginTx
// records the requested isolation level.
type Pool struct {
	Tx        *Tx
	BeginErr  error
	BeginOpts pgx.TxOptions
}

func (p *Pool) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	p.BeginOpts = opts
	if p.BeginErr != nil {
		return nil, p.BeginErr
	}
	return p.Tx, nil
}

func (p *Pool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errNotSupported
}

func (p *Pool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return Row{Err: errNotSupported}
}

func (p *Pool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errNotSupported
}
