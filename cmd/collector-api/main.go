// Command collector-api serves campaign attribution: evaluation, snapshots,
// consent and lead hand-off
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campaigncollector/internal/core/version"
	"campaigncollector/internal/platform/config"
	"campaigncollector/internal/platform/logger"
	"campaigncollector/internal/platform/metrics"
	phttp "campaigncollector/internal/platform/net/http"
	"campaigncollector/internal/platform/net/middleware"
	"campaigncollector/internal/platform/store"

	"campaigncollector/internal/services/api"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
)

func main() {
	// a missing .env is normal outside local development
	_ = godotenv.Load()
	version.SetService("collector-api")

	// service-scoped config for HTTP etc (CORE_API_*)
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	pgCfg := root.Prefix("SERVICE_PGSQL_")

	// bring up logging early
	l := logger.Get()
	l.Info().Interface("build", version.Info()).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// postgres is optional: it backs local storage and lead intake
	st, err := store.Open(
		ctx,
		store.Config{
			PG: store.PGConfig{
				Enabled:     pgCfg.Has("DBURL"),
				URL:         pgCfg.MayString("DBURL", ""),
				MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
				SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
				LogSQL:      pgCfg.MayBool("LOG_SQL", false),
			},
		},
		store.WithLogger(*logger.Get()),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()
	if err := st.Guard(ctx); err != nil {
		l.Panic().Err(err).Msg("store not ready")
	}

	m := metrics.New()

	// http server (reads CORE_API_ADDR and timeouts)
	srv := phttp.NewServer(apiCfg, func(mux *chi.Mux) {
		mux.Use(middleware.Defaults(middleware.AccessLogOptions{
			Slow:    apiCfg.MayDuration("SLOW_REQUEST", time.Second),
			Observe: m.ObserveHTTP,
		})...)
	})

	a, err := api.Mount(srv.Router(), api.Options{
		Config:  apiCfg,
		Store:   st,
		Logger:  l,
		Metrics: m,
	})
	if err != nil {
		l.Panic().Err(err).Msg("api.Mount failed")
	}
	if err := a.Collector.EnsureSchema(ctx); err != nil {
		l.Panic().Err(err).Msg("collector schema")
	}

	// run until SIGINT/SIGTERM, then drain queued lead deliveries
	if err := srv.Run(ctx); err != nil {
		l.Error().Err(err).Msg("http server stopped")
	}
	drain, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Collector.Close(drain); err != nil {
		l.Warn().Err(err).Msg("lead queue not drained")
	}
}
