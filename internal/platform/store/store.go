// Package store is the collector's Postgres seam
package store

import (
	"context"
	"errors"
	"fmt"

	"campaigncollector/internal/platform/logger"
)

// Store holds the optional backends; the zero value is safe and does nothing
type Store struct {
	// Log is handed to the sql tracer; zero is a no-op logger
	Log logger.Logger

	// PG backs the "local" storage table and lead intake; nil when disabled
	PG TxRunner
}

// Row is the scan contract of a single row
type Row interface {
	Scan(dest ...any) error
}

// Rows iterates a result set
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
	Columns() []string
}

// CommandTag reports what a write did
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is the read and write surface repos use
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner runs fn inside a transaction
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Pinger reports readiness
type Pinger interface{ Ping(context.Context) error }

// Open constructs a Store with the backends enabled in cfg
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}
	s.Log = s.Log.With().Logger()

	if cfg.PG.Enabled {
		p, err := openPG(ctx, cfg.PG.withDefaults(), s)
		if err != nil {
			return nil, err
		}
		s.PG = p
	}
	return s, nil
}

// Guard pings every configured backend that can be pinged
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	if p, ok := s.PG.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
	}
	return nil
}

// Close releases the backends; nil ones are skipped
func (s *Store) Close(context.Context) error {
	if s == nil {
		return nil
	}
	if c, ok := s.PG.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
