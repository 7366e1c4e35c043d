package store

import (
	"context"
	"fmt"
	"time"

	"campaigncollector/internal/platform/store/pg"
)

const (
	backoffStart   = 150 * time.Millisecond
	backoffCeiling = 2 * time.Second
)

// openPool is a seam for tests
var openPool = pg.Open

// nextBackoff doubles d up to the ceiling
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > backoffCeiling {
		d = backoffCeiling
	}
	return d
}

// openPG opens the pool and publishes the adapter only once a ping succeeds
func openPG(ctx context.Context, cfg PGConfig, s *Store) (*pgAdapter, error) {
	var tracer pg.QueryTracer
	if cfg.LogSQL {
		tracer = pg.Tracer(s.Log)
	}

	p, err := openPool(ctx, pg.Config{
		URL:      cfg.URL,
		MaxConns: cfg.MaxConns,
		SlowMs:   cfg.SlowQueryMs,
	}, tracer, nil)
	if err != nil {
		return nil, err
	}

	var lastErr error
	backoff := backoffStart
	for i := 0; i < cfg.ConnectRetries; i++ {
		toCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
		lastErr = p.Ping(toCtx)
		cancel()

		if lastErr == nil {
			return newPGAdapter(p), nil
		}
		if ctx.Err() != nil {
			p.Close()
			return nil, ctx.Err()
		}
		s.Log.Debug().Int("attempt", i+1).Err(lastErr).Msg("postgres not ready")
		time.Sleep(backoff)
		backoff = nextBackoff(backoff)
	}

	p.Close()
	return nil, fmt.Errorf("postgres ping failed after %d attempts: %w", cfg.ConnectRetries, lastErr)
}
