package anonid

import (
	"context"
	"testing"
	"time"

	"campaigncollector/internal/core/kv"
	"campaigncollector/internal/platform/testkit"
)

func TestNew_Format(t *testing.T) {
	testkit.Serial(t)
	testkit.Swap(t, &random, func() string { return "0123456789" })

	id := New(time.Unix(1700000000, 0))
	if id != "CC.1.1700000000.0123456789" {
		t.Fatalf("New = %q", id)
	}
	if !Valid(id) {
		t.Fatal("minted id must be valid")
	}
	at, ok := IssuedAt(id)
	if !ok || at.Unix() != 1700000000 {
		t.Fatalf("IssuedAt = %v, %v", at, ok)
	}
}

func TestNew_RealRandomIsValid(t *testing.T) {
	if id := New(time.Now()); !Valid(id) {
		t.Fatalf("invalid id %q", id)
	}
}

func TestEnsure_ReusesAndRolls(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	now := time.Unix(1700000000, 0)

	id, created, err := Ensure(ctx, mem, "_lvl_anonymous_id", now)
	if err != nil || !created {
		t.Fatalf("Ensure = %q, %v, %v", id, created, err)
	}
	again, created, _ := Ensure(ctx, mem, "_lvl_anonymous_id", now.Add(time.Hour))
	if created || again != id {
		t.Fatalf("second Ensure = %q created=%v", again, created)
	}
	if mem.MaxAge("_lvl_anonymous_id") != MaxAge {
		t.Fatalf("max-age = %v", mem.MaxAge("_lvl_anonymous_id"))
	}
}

func TestEnsure_ReplacesMalformed(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	_ = mem.Set(ctx, "k", "CC.1.x.zz", 0)
	id, created, _ := Ensure(ctx, mem, "k", time.Now())
	if !created || !Valid(id) {
		t.Fatalf("Ensure = %q created=%v", id, created)
	}
}

func TestTransient_NotStoredAndForgets(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()

	id, err := Transient(ctx, mem, "k", time.Unix(1700000000, 0))
	if err != nil || !Valid(id) {
		t.Fatalf("Transient = %q, %v", id, err)
	}
	if _, ok := mem.Get(ctx, "k"); ok {
		t.Fatal("transient id was stored")
	}

	_ = Save(ctx, mem, "k", "CC.1.1700000000.0123456789")
	if _, err := Transient(ctx, mem, "k", time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, ok := mem.Get(ctx, "k"); ok {
		t.Fatal("stored id survived")
	}
}
