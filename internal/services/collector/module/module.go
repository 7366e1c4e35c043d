// Package module wires the collector service into HTTP via modkit
package module

import (
	"context"
	"net/http"

	"campaigncollector/internal/modkit"
	"campaigncollector/internal/modkit/httpkit"
	"campaigncollector/internal/modkit/repokit"
	"campaigncollector/internal/platform/strings"
	"campaigncollector/internal/services/collector/domain"

	collectorhttp "campaigncollector/internal/services/collector/http"
	"campaigncollector/internal/services/collector/service"
)

// Ports exposes the collector ports for cross-module lookups
type Ports struct {
	Intake domain.IntakePort
}

// Module implements the collector module
type Module struct {
	deps  modkit.Deps
	built modkit.Built
	ports Ports

	svc *service.Service
}

// New constructs the collector module: settings come from config, then
// overrides are merged on top
func New(deps modkit.Deps, overrides service.Config, opts ...modkit.Option) (*Module, error) {
	cfg, err := FromConfig(deps.Cfg)
	if err != nil {
		return nil, err
	}
	cfg = cfg.Merge(overrides)

	so := service.Options{
		Metrics: deps.Metrics,
		Log:     deps.Logger(),
	}
	if deps.HasPG() {
		so.DB = repokit.WithBeginHooks(deps.PG, repokit.StatementTimeout(StatementTimeout(deps.Cfg)))
	}
	svc, err := service.New(cfg, so)
	if err != nil {
		return nil, err
	}

	b := modkit.Build(append([]modkit.Option{modkit.WithName("collector"), modkit.WithPrefix("/collect")}, opts...)...)
	m := &Module{deps: deps, built: b, svc: svc}
	m.ports = Ports{Intake: svc}
	return m, nil
}

// MountRoutes mounts the collector API under the module prefix
func (m *Module) MountRoutes(r httpkit.Router) {
	m.built.Mount(r, func(sub httpkit.Router) { collectorhttp.Register(sub, m.svc) })
}

// PageMiddleware evaluates attribution on server-rendered pages
func (m *Module) PageMiddleware() func(http.Handler) http.Handler {
	return collectorhttp.Evaluate(m.svc)
}

// Service returns the collector service
func (m *Module) Service() *service.Service { return m.svc }

// EnsureSchema creates the collector tables when a database is wired
func (m *Module) EnsureSchema(ctx context.Context) error { return m.svc.EnsureSchema(ctx) }

// Close drains pending lead deliveries
func (m *Module) Close(ctx context.Context) error { return m.svc.Close(ctx) }

// Name is the module name
func (m *Module) Name() string { return strings.MustString(m.built.Name, "module name") }

// Prefix is the module route prefix
func (m *Module) Prefix() string { return strings.MustPrefix(m.built.Prefix) }

// Middlewares is the module middlewares
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.built.Mw }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }
