package pg

import (
	"context"
	"errors"
	"testing"

	"campaigncollector/internal/platform/testkit"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestOpen_BadURL(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Config{URL: "::not a dsn::"}, nil, nil); err == nil {
		t.Fatal("want parse error")
	}
}

func TestOpen_AppliesConfig(t *testing.T) {
	var seen *pgxpool.Config
	boom := errors.New("stop before dialing")
	testkit.Swap(t, &newPool, func(_ context.Context, c *pgxpool.Config) (*pgxpool.Pool, error) {
		seen = c
		return nil, boom
	})

	mut := func(c *pgxpool.Config) { c.MinConns = 2 }
	_, err := Open(context.Background(), Config{URL: "postgres://u:p@localhost:5432/db", MaxConns: 9}, nil, mut)
	if !errors.Is(err, boom) {
		t.Fatalf("want pool error, got %v", err)
	}
	if seen == nil || seen.MaxConns != 9 || seen.MinConns != 2 {
		t.Fatalf("pool config not applied: %+v", seen)
	}
}

func TestClose_Nil(t *testing.T) {
	t.Parallel()

	var p *PG
	p.Close()
	(&PG{}).Close()
}
