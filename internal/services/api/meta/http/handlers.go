// Package http provides meta endpoints
package http

import (
	stdctx "context"
	"net/http"
	"time"

	"campaigncollector/internal/core/version"
	"campaigncollector/internal/modkit/httpkit"
)

// Pinger is satisfied by adapters that expose Ping
type Pinger interface {
	Ping(stdctx.Context) error
}

// Deps are the handler dependencies
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	PG          any
	// Mediums lists the referrer rule groups in scan order
	Mediums []string
}

type handlers struct {
	deps Deps
}

// Register mounts the meta routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}

	httpkit.Get(r, "/health", h.health)
	httpkit.Get(r, "/ready", h.ready)
	httpkit.Get(r, "/version", h.version)
	httpkit.Get(r, "/service", h.service)
	httpkit.Get(r, "/rules", h.rules)
}

// HealthResponse is the health payload
type HealthResponse struct {
	OK      bool   `json:"ok"       example:"true"`
	Service string `json:"service"  example:"collector-api"`
	Started string `json:"started"  example:"2026-05-03T13:00:00Z"`
	Now     string `json:"now"      example:"2026-05-03T13:05:00Z"`
}

// ReadyCheck describes a single dependency check
type ReadyCheck struct {
	Name   string `json:"name"   example:"pg"`
	Status string `json:"status" example:"ok"` // ok fail skipped unknown
	Error  string `json:"error,omitempty" example:"dial tcp 127.0.0.1:5432 connect: connection refused"`
}

// ReadyResponse summarizes readiness
type ReadyResponse struct {
	Status string       `json:"status" example:"ok"` // ok degraded fail
	Checks []ReadyCheck `json:"checks"`
	Now    string       `json:"now"    example:"2026-05-03T13:05:00Z"`
}

// ServiceResponse describes service info
type ServiceResponse struct {
	Name    string `json:"name"    example:"collector-api"`
	Started string `json:"started" example:"2026-05-03T13:00:00Z"`
	Uptime  int64  `json:"uptime"  example:"300"`
}

// RulesResponse reports the referrer rule table in effect
type RulesResponse struct {
	Mediums []string          `json:"mediums" example:"organic,social,email"`
	Build   version.BuildInfo `json:"build"`
}

// @Summary Health check
// @Tags Meta
// @Produce json
// @Success 200 type HealthResponse ok
// @Router /meta/health [get]
func (h *handlers) health(_ *http.Request) (any, error) {
	return HealthResponse{
		OK:      true,
		Service: h.deps.ServiceName,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Now:     time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// @Summary Readiness probe with dependency checks
// @Tags Meta
// @Produce json
// @Success 200 type ReadyResponse ok
// @Router /meta/ready [get]
func (h *handlers) ready(r *http.Request) (any, error) {
	ctx, cancel := stdctx.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	pg := ReadyCheck{Name: "pg", Status: "skipped"}
	switch p := h.deps.PG.(type) {
	case nil:
	case Pinger:
		pg.Status = "ok"
		if err := p.Ping(ctx); err != nil {
			pg.Status, pg.Error = "fail", err.Error()
		}
	default:
		pg.Status = "unknown"
	}

	// postgres is optional: without it local storage stays in process
	overall := "ok"
	switch pg.Status {
	case "fail":
		overall = "fail"
	case "unknown":
		overall = "degraded"
	}

	return ReadyResponse{
		Status: overall,
		Checks: []ReadyCheck{pg},
		Now:    time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// @Summary Build and version info
// @Tags Meta
// @Produce json
// @Success 200 type version.BuildInfo ok
// @Router /meta/version [get]
func (h *handlers) version(_ *http.Request) (any, error) {
	return version.Info(), nil
}

// @Summary Service info and uptime
// @Tags Meta
// @Produce json
// @Success 200 type ServiceResponse ok
// @Router /meta/service [get]
func (h *handlers) service(_ *http.Request) (any, error) {
	uptime := time.Since(h.deps.StartedAt)
	return ServiceResponse{
		Name:    h.deps.ServiceName,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Uptime:  int64(uptime / time.Second),
	}, nil
}

// @Summary Referrer rule groups in scan order
// @Tags Meta
// @Produce json
// @Success 200 type RulesResponse ok
// @Router /meta/rules [get]
func (h *handlers) rules(_ *http.Request) (any, error) {
	return RulesResponse{
		Mediums: h.deps.Mediums,
		Build:   version.Info(),
	}, nil
}
