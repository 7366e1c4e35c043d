// Package api provides the HTTP API for the application
package api

import (
	"campaigncollector/internal/platform/config"
	"campaigncollector/internal/platform/logger"
	"campaigncollector/internal/platform/metrics"
	phttp "campaigncollector/internal/platform/net/http"
	"campaigncollector/internal/platform/store"

	"campaigncollector/internal/modkit"
	"campaigncollector/internal/modkit/httpkit"
	"campaigncollector/internal/modkit/module"

	metamod "campaigncollector/internal/services/api/meta/module"
	collectormod "campaigncollector/internal/services/collector/module"
	"campaigncollector/internal/services/collector/service"
)

// Options are the API options
type Options struct {
	Config  config.Conf
	Store   *store.Store
	Logger  *logger.Logger
	Metrics *metrics.Metrics

	// Collector overrides the settings read from config
	Collector service.Config
}

// API holds the mounted modules whose lifecycle the caller owns
type API struct {
	Collector *collectormod.Module
}

// Mount mounts the API service onto the given router, plus /metrics when
// metrics are wired. CORS_ORIGINS lists the sites whose tags call the api with
// credentials
func Mount(r phttp.Router, opt Options) (*API, error) {
	deps := modkit.Deps{
		Log:     opt.Logger,
		Cfg:     opt.Config,
		Metrics: opt.Metrics,
	}
	if opt.Store != nil && opt.Store.PG != nil {
		deps.PG = opt.Store.PG
	}

	collector, err := collectormod.New(deps, opt.Collector)
	if err != nil {
		return nil, err
	}

	mods := []module.Module{
		metamod.New(deps, collector.Service().Classifier().Mediums()),
		collector,
	}

	if opt.Metrics != nil {
		r.Handle("/metrics", opt.Metrics.Handler())
	}

	origins := opt.Config.MayCSV("CORS_ORIGINS", nil)
	httpkit.MountAPIV1(r, httpkit.CommonStack(origins), func(api httpkit.Router) {
		for _, m := range mods {
			// register each module's ports under its own name (for cross-module lookups)
			module.Register(m.Name(), m.Ports())

			// mount module routes under its Prefix()
			m.MountRoutes(api)
		}
	})
	return &API{Collector: collector}, nil
}
