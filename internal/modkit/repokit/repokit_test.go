package repokit

import (
	"context"
	"errors"
	"testing"
	"time"

	"campaigncollector/internal/platform/testkit"
)

type recTx struct {
	execs []string
	fail  string
	inTx  bool
}

func (r *recTx) Exec(_ context.Context, sql string, _ ...any) (CommandTag, error) {
	r.execs = append(r.execs, sql)
	if sql == r.fail {
		return nil, errors.New("exec failed")
	}
	return nil, nil
}

func (r *recTx) Query(context.Context, string, ...any) (Rows, error) { return nil, nil }
func (r *recTx) QueryRow(context.Context, string, ...any) Row        { return nil }

func (r *recTx) Tx(ctx context.Context, fn func(Queryer) error) error {
	r.inTx = true
	defer func() { r.inTx = false }()
	return fn(r)
}

func TestWithBeginHooks_RunsBeforeFn(t *testing.T) {
	t.Parallel()

	inner := &recTx{}
	tx := WithBeginHooks(inner, StatementTimeout(1500*time.Millisecond))

	err := WithTx(context.Background(), tx, func(q Queryer) error {
		_, err := q.Exec(context.Background(), "INSERT 1")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	testkit.MustEqual(t, []string{"SET LOCAL statement_timeout = 1500", "INSERT 1"}, inner.execs)
}

func TestWithBeginHooks_HookErrorSkipsFn(t *testing.T) {
	t.Parallel()

	inner := &recTx{fail: "SET LOCAL statement_timeout = 10"}
	tx := WithBeginHooks(inner, StatementTimeout(10*time.Millisecond))

	called := false
	err := tx.Tx(context.Background(), func(Queryer) error { called = true; return nil })
	if err == nil || called {
		t.Fatalf("err = %v, fn called = %v", err, called)
	}
}

func TestWithBeginHooks_DelegatesOutsideTx(t *testing.T) {
	t.Parallel()

	inner := &recTx{}
	tx := WithBeginHooks(inner, StatementTimeout(time.Second))
	if _, err := tx.Exec(context.Background(), "SELECT 1"); err != nil {
		t.Fatal(err)
	}
	testkit.MustEqual(t, []string{"SELECT 1"}, inner.execs)
}

func TestMustBind(t *testing.T) {
	t.Parallel()

	b := BindFunc[string](func(Queryer) string { return "bound" })
	if got := MustBind[string](b, &recTx{}); got != "bound" {
		t.Fatalf("got %q", got)
	}
	testkit.MustPanic(t, func() { MustBind[string](b, nil) })
}

type guardFunc func(context.Context) error

func (g guardFunc) Guard(ctx context.Context) error { return g(ctx) }

func TestMustGuard(t *testing.T) {
	t.Parallel()

	var hadDeadline bool
	ok := guardFunc(func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	})
	testkit.MustNotPanic(t, func() { MustGuard(context.Background(), ok) })
	if !hadDeadline {
		t.Fatal("MustGuard should bound an open-ended ctx")
	}

	down := guardFunc(func(context.Context) error { return errors.New("pg: down") })
	testkit.MustPanic(t, func() { MustGuard(context.Background(), down) })
}
