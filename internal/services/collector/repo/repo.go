// Package repo provides postgres access for the collector: the server-side
// attribution table and the lead intake sink
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"campaigncollector/internal/core/kv"
	"campaigncollector/internal/modkit/repokit"
	perr "campaigncollector/internal/platform/errors"
	"campaigncollector/internal/platform/store"
)

// Repo defines the repository contract for the collector
type Repo interface {
	kv.Table

	// InsertLead stores a lead; false when its event id was already stored
	InsertLead(ctx context.Context, row RowLead) (bool, error)

	// EnsureSchema creates the collector tables when missing
	EnsureSchema(ctx context.Context) error
}

// RowLead represents a received lead
type RowLead struct {
	EventID     string
	Event       string
	AnonymousID string
	PageURL     string
	OccurredAt  time.Time
	Payload     json.RawMessage
}

type (
	// PG implements the Repo interface using Postgres
	PG struct{}

	// queries holds the database query methods
	queries struct{ q repokit.Queryer }
)

// NewPG creates a new Postgres repository binder
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Postgres queryer to the Repo implementation
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

const schema = `
create table if not exists collector_kv (
	owner      text not null,
	key        text not null,
	value      text not null,
	updated_at timestamptz not null default now(),
	primary key (owner, key)
);
create table if not exists collector_leads (
	event_id     uuid primary key,
	event        text not null,
	anonymous_id text not null default '',
	page_url     text not null default '',
	occurred_at  timestamptz not null,
	received_at  timestamptz not null default now(),
	payload      jsonb not null
);
create index if not exists collector_leads_anon_idx on collector_leads (anonymous_id, occurred_at desc);
`

func (r *queries) EnsureSchema(ctx context.Context) error {
	if _, err := store.Exec(ctx, r.q, schema); err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "collector: ensure schema")
	}
	return nil
}

func (r *queries) Get(ctx context.Context, owner, key string) (string, bool, error) {
	const sql = `select value from collector_kv where owner = $1 and key = $2`
	v, err := store.One(ctx, r.q, func(row store.Row) (string, error) {
		var s string
		err := row.Scan(&s)
		return s, err
	}, sql, owner, key)
	if errors.Is(err, perr.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, perr.FromPostgres(err, "collector: read kv")
	}
	return v, true, nil
}

func (r *queries) Put(ctx context.Context, owner, key, value string) error {
	const sql = `
insert into collector_kv (owner, key, value, updated_at)
values ($1, $2, $3, now())
on conflict (owner, key) do update set value = excluded.value, updated_at = now()
`
	if err := store.ExecOne(ctx, r.q, sql, owner, key, value); err != nil {
		return perr.FromPostgres(err, "collector: write kv")
	}
	return nil
}

func (r *queries) Delete(ctx context.Context, owner, key string) error {
	const sql = `delete from collector_kv where owner = $1 and key = $2`
	if _, err := store.Exec(ctx, r.q, sql, owner, key); err != nil {
		return perr.FromPostgres(err, "collector: delete kv")
	}
	return nil
}

func (r *queries) InsertLead(ctx context.Context, row RowLead) (bool, error) {
	const sql = `
insert into collector_leads (event_id, event, anonymous_id, page_url, occurred_at, payload)
values ($1::uuid, $2, $3, $4, $5, $6::jsonb)
on conflict (event_id) do nothing
`
	tag, err := store.Exec(ctx, r.q, sql, row.EventID, row.Event, row.AnonymousID, row.PageURL, row.OccurredAt, string(row.Payload))
	if err != nil {
		return false, perr.FromPostgres(err, "collector: insert lead")
	}
	return tag.RowsAffected() == 1, nil
}
