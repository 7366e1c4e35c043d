//go:build integration_pg

package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"campaigncollector/internal/core/kv"
	"campaigncollector/internal/modkit/repokit"
	plog "campaigncollector/internal/platform/logger"
	"campaigncollector/internal/platform/store"

	"github.com/google/uuid"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func openPG(t *testing.T) repokit.TxRunner {
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
				"POSTGRES_DB":       "collector",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "5432/tcp")
	url := fmt.Sprintf("postgres://postgres:postgres@%s:%s/collector?sslmode=disable", host, port.Port())

	s, err := store.Open(ctx, store.Config{PG: store.PGConfig{Enabled: true, URL: url}}, store.WithLogger(*plog.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return repokit.WithBeginHooks(s.PG, repokit.StatementTimeout(5*time.Second))
}

func TestPG_TableAndLeads(t *testing.T) {
	ctx := context.Background()
	db := openPG(t)
	r := NewPG().Bind(db)
	if err := r.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}

	var errs []error
	scoped := kv.NewScoped(r, "CC.1.1700000000.0123456789", func(_, _ string, err error) { errs = append(errs, err) })
	if err := scoped.Set(ctx, "_lvl_last", "64:e30=", time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := scoped.Set(ctx, "_lvl_last", "64:e31=", time.Hour); err != nil {
		t.Fatal(err)
	}
	if v, ok := scoped.Get(ctx, "_lvl_last"); !ok || v != "64:e31=" {
		t.Fatalf("Get = %q, %v", v, ok)
	}
	if err := scoped.Delete(ctx, "_lvl_last"); err != nil {
		t.Fatal(err)
	}
	if _, ok := scoped.Get(ctx, "_lvl_last"); ok {
		t.Fatal("deleted key still readable")
	}
	if len(errs) != 0 {
		t.Fatalf("table errors: %v", errs)
	}

	row := RowLead{
		EventID:    uuid.NewString(),
		Event:      "generate_lead",
		OccurredAt: time.Now().UTC(),
		Payload:    []byte(`{"event":"generate_lead"}`),
	}
	err := repokit.WithTx(ctx, db, func(q repokit.Queryer) error {
		stored, err := NewPG().Bind(q).InsertLead(ctx, row)
		if err == nil && !stored {
			err = fmt.Errorf("first insert reported duplicate")
		}
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if stored, err := r.InsertLead(ctx, row); err != nil || stored {
		t.Fatalf("replay: stored=%v err=%v", stored, err)
	}
}
