package store

import (
	"context"
	"errors"
	"time"

	"campaigncollector/internal/platform/store/pg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgAdapter implements TxRunner and Pinger over a pg.PG
type pgAdapter struct {
	p *pg.PG
	t tracing
}

func newPGAdapter(p *pg.PG) *pgAdapter {
	return &pgAdapter{p: p, t: tracing{tracer: p.Tracer, slowUS: int64(p.SlowMs) * 1000}}
}

func (a *pgAdapter) Ping(ctx context.Context) error {
	if a == nil || a.p == nil {
		return errors.New("pg: nil adapter")
	}
	var one int
	return a.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func (a *pgAdapter) Close() error { a.p.Close(); return nil }

func (a *pgAdapter) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return exec(ctx, a.p.Pool, a.t, sql, args)
}

func (a *pgAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return query(ctx, a.p.Pool, a.t, sql, args)
}

func (a *pgAdapter) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return queryRow(ctx, a.p.Pool, a.t, sql, args)
}

func (a *pgAdapter) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	tx, err := a.p.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(txQuerier{tx: tx, t: a.t}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// txQuerier runs statements on an open transaction, traced like the pool
type txQuerier struct {
	tx pgx.Tx
	t  tracing
}

func (q txQuerier) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return exec(ctx, q.tx, q.t, sql, args)
}

func (q txQuerier) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return query(ctx, q.tx, q.t, sql, args)
}

func (q txQuerier) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return queryRow(ctx, q.tx, q.t, sql, args)
}

// conn is the part of pgxpool.Pool and pgx.Tx the adapters use
type conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func exec(ctx context.Context, c conn, t tracing, sql string, args []any) (CommandTag, error) {
	start := time.Now()
	ct, err := c.Exec(ctx, sql, args...)
	t.emit(ctx, sql, args, start, err)
	return tag{ct}, err
}

// query traces on open; scan time is not included
func query(ctx context.Context, c conn, t tracing, sql string, args []any) (Rows, error) {
	start := time.Now()
	rs, err := c.Query(ctx, sql, args...)
	t.emit(ctx, sql, args, start, err)
	if err != nil {
		return nil, err
	}
	return rows{r: rs}, nil
}

// queryRow traces after Scan so the scan error is captured
func queryRow(ctx context.Context, c conn, t tracing, sql string, args []any) Row {
	start := time.Now()
	return row{
		r:     c.QueryRow(ctx, sql, args...),
		after: func(err error) { t.emit(ctx, sql, args, start, err) },
	}
}

type tracing struct {
	tracer pg.QueryTracer
	slowUS int64
}

func (t tracing) emit(ctx context.Context, sql string, args []any, start time.Time, err error) {
	if t.tracer == nil {
		return
	}
	elapsedUS := time.Since(start).Microseconds()
	t.tracer.OnQuery(ctx, pg.QueryEvent{
		SQL:       sql,
		Args:      args,
		ElapsedUS: elapsedUS,
		Err:       err,
		Slow:      t.slowUS >= 0 && elapsedUS >= t.slowUS,
	})
}

type row struct {
	r     pgx.Row
	after func(error)
}

func (x row) Scan(dst ...any) error {
	err := x.r.Scan(dst...)
	if x.after != nil {
		x.after(err)
	}
	return err
}

type rows struct{ r pgx.Rows }

func (x rows) Next() bool            { return x.r.Next() }
func (x rows) Scan(dst ...any) error { return x.r.Scan(dst...) }
func (x rows) Err() error            { return x.r.Err() }
func (x rows) Close()                { x.r.Close() }
func (x rows) Columns() []string {
	f := x.r.FieldDescriptions()
	out := make([]string, len(f))
	for i := range f {
		out[i] = f[i].Name
	}
	return out
}

type tag struct{ t pgconn.CommandTag }

func (t tag) String() string      { return t.t.String() }
func (t tag) RowsAffected() int64 { return t.t.RowsAffected() }
