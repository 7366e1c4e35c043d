//go:build integration_pg

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	plog "campaigncollector/internal/platform/logger"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "postgres",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithDeadline(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatal(err)
	}
	return fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, port.Port())
}

func TestPGAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{PG: PGConfig{Enabled: true, URL: startPostgres(t), LogSQL: true}},
		WithLogger(*plog.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close(ctx) })

	if err := s.Guard(ctx); err != nil {
		t.Fatalf("guard: %v", err)
	}
	if _, err := Exec(ctx, s.PG, `CREATE TABLE t (k text PRIMARY KEY, v text NOT NULL)`); err != nil {
		t.Fatal(err)
	}
	if err := ExecOne(ctx, s.PG, `INSERT INTO t (k, v) VALUES ($1, $2)`, "a", "1"); err != nil {
		t.Fatal(err)
	}

	v, err := Scalar[string](ctx, s.PG, `SELECT v FROM t WHERE k = $1`, "a")
	if err != nil || v != "1" {
		t.Fatalf("scalar = %q, %v", v, err)
	}

	rollback := errors.New("rollback")
	err = s.PG.Tx(ctx, func(q RowQuerier) error {
		if err := ExecOne(ctx, q, `INSERT INTO t (k, v) VALUES ($1, $2)`, "b", "2"); err != nil {
			return err
		}
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("tx error = %v", err)
	}

	keys, err := Many(ctx, s.PG, func(r Row) (string, error) {
		var k string
		err := r.Scan(&k)
		return k, err
	}, `SELECT k FROM t ORDER BY k`)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "a" {
		t.Fatalf("rolled back row visible: %v", keys)
	}
}
