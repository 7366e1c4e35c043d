// Package module wires meta endpoints into the API using a tiny module
package module

import (
	"net/http"
	"time"

	"campaigncollector/internal/core/version"
	modkit "campaigncollector/internal/modkit"
	"campaigncollector/internal/modkit/httpkit"
	str "campaigncollector/internal/platform/strings"

	metahttp "campaigncollector/internal/services/api/meta/http"
)

// Module implements the modkit.Module interface
type Module struct {
	deps  modkit.Deps
	built modkit.Built
	meta  metahttp.Deps
}

// New constructs a meta module; mediums lists the referrer rule groups served at /rules
func New(deps modkit.Deps, mediums []string, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("meta"),
		modkit.WithPrefix("/meta"),
	}, opts...)...)

	m := &Module{
		deps:  deps,
		built: b,
		meta: metahttp.Deps{
			ServiceName: version.Info().Service,
			StartedAt:   time.Now(),
			Mediums:     mediums,
		},
	}
	if deps.HasPG() {
		m.meta.PG = deps.PG
	}
	return m
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	m.built.Mount(r, func(sub httpkit.Router) { metahttp.Register(sub, m.meta) })
}

// Name implements the modkit.Module interface
func (m *Module) Name() string { return str.MustString(m.built.Name, "meta") }

// Prefix implements the modkit.Module interface
func (m *Module) Prefix() string { return str.MustPrefix(m.built.Prefix) }

// Middlewares implements the modkit.Module interface
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.built.Mw }

// Ports implements the modkit.Module interface
func (m *Module) Ports() any { return nil }
