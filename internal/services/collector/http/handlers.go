// Package http provides http transport for the collector
package http

import (
	"bytes"
	"io"
	stdhttp "net/http"
	"strconv"

	"campaigncollector/internal/core/accessor"
	"campaigncollector/internal/core/lead"
	"campaigncollector/internal/core/session"
	"campaigncollector/internal/modkit/httpkit"
	perr "campaigncollector/internal/platform/errors"
	"campaigncollector/internal/services/collector/domain"
	svc "campaigncollector/internal/services/collector/service"
)

// maxFillBody bounds the HTML accepted by /fill
const maxFillBody = 1 << 20

// Register mounts collector endpoints on the given router
// every route but /intake gets a collector bound to the calling page
func Register(r httpkit.Router, s *svc.Service) {
	h := &handlers{svc: s}
	r.Group(func(g httpkit.Router) {
		g.Use(Attach(s))
		httpkit.Get(g, "/grab", h.grab)
		httpkit.PostJSON(g, "/evaluate", h.evaluate)
		httpkit.Post(g, "/hydrate", h.hydrate)
		httpkit.PostJSON(g, "/navigate", h.navigate)
		httpkit.PostJSON(g, "/consent", h.consent)
		httpkit.PostJSON(g, "/lead", h.lead)
		httpkit.PostRaw(g, "/fill", h.fill)
	})
	httpkit.PostJSON(r, "/intake", h.intake)
}

type handlers struct{ svc *svc.Service }

func collector(r *stdhttp.Request) (*svc.Collector, error) {
	c, ok := svc.FromContext(r.Context())
	if !ok {
		return nil, perr.Unavailablef("collector: no page evaluation on this request")
	}
	return c, nil
}

// grab returns the attribution snapshot
// query: without=<csv sections>, filters=1, deref=1, json=1
func (h *handlers) grab(r *stdhttp.Request) (any, error) {
	c, err := collector(r)
	if err != nil {
		return nil, err
	}
	q := r.URL.Query()
	without, err := accessor.ParseSections(q.Get("without"))
	if err != nil {
		return nil, err
	}
	opt := accessor.Options{
		Without:      without,
		ApplyFilters: flag(q.Get("filters")),
		Dereference:  flag(q.Get("deref")),
		AsJSON:       flag(q.Get("json")),
	}
	out, err := c.Grab(r.Context(), opt)
	if err != nil {
		return nil, err
	}
	if s, ok := out.(string); ok {
		return httpkit.Raw(stdhttp.StatusOK, "application/json; charset=utf-8", []byte(s)), nil
	}
	return out, nil
}

func (h *handlers) evaluate(r *stdhttp.Request, in domain.EvaluateInput) (any, error) {
	c, err := collector(r)
	if err != nil {
		return nil, err
	}
	page := TagPageOf(r)
	page.Referrer = in.Referrer
	if page.URL, err = parseURL(in.URL); err != nil {
		return nil, err
	}
	c.SetPage(page)
	d, err := c.Evaluate(r.Context())
	if err != nil {
		return nil, err
	}
	return evaluation(r, c, d), nil
}

func (h *handlers) hydrate(r *stdhttp.Request) (any, error) {
	c, err := collector(r)
	if err != nil {
		return nil, err
	}
	rec, err := c.Hydrate(r.Context())
	if err != nil || rec == nil {
		return domain.Hydrated{}, err
	}
	live, err := c.ActiveSession(r.Context())
	if err != nil {
		return nil, err
	}
	return domain.Hydrated{Last: live}, nil
}

func (h *handlers) navigate(r *stdhttp.Request, in domain.NavigateInput) (any, error) {
	c, err := collector(r)
	if err != nil {
		return nil, err
	}
	d, err := c.Navigate(r.Context(), in.URL)
	if err != nil {
		return nil, err
	}
	return evaluation(r, c, d), nil
}

func (h *handlers) consent(r *stdhttp.Request, in domain.ConsentInput) (any, error) {
	c, err := collector(r)
	if err != nil {
		return nil, err
	}
	if _, err := c.UpdateConsent(r.Context(), in.Category, in.Value); err != nil {
		return nil, err
	}
	return domain.ConsentState{Consent: c.ConsentMap(), StorageAllowed: c.StorageAllowed()}, nil
}

func (h *handlers) lead(r *stdhttp.Request, in domain.LeadInput) (any, error) {
	c, err := collector(r)
	if err != nil {
		return nil, err
	}
	p, err := c.Lead(r.Context(), in)
	if err != nil {
		return nil, err
	}
	return httpkit.Accepted(domain.LeadAck{EventID: p.EventID}), nil
}

func (h *handlers) fill(r *stdhttp.Request) httpkit.Response {
	c, err := collector(r)
	if err != nil {
		return httpkit.Error(err)
	}
	var out bytes.Buffer
	n, err := c.Fill(r.Context(), io.LimitReader(r.Body, maxFillBody), &out)
	if err != nil {
		return httpkit.Error(err)
	}
	resp := httpkit.Raw(stdhttp.StatusOK, "text/html; charset=utf-8", out.Bytes())
	resp.Header = stdhttp.Header{"X-Collector-Filled": []string{strconv.Itoa(n)}}
	return resp
}

func (h *handlers) intake(r *stdhttp.Request, p lead.Payload) (any, error) {
	ack, err := h.svc.Intake(r.Context(), &p)
	if err != nil {
		return nil, err
	}
	return httpkit.Accepted(ack), nil
}

func evaluation(r *stdhttp.Request, c *svc.Collector, d session.Decision) domain.Evaluation {
	return domain.Evaluation{
		Outcome:     string(d.Outcome),
		Persisted:   d.Persisted,
		AnonymousID: c.AnonymousID(),
		Last:        d.Resolved,
		Snapshot:    c.Snapshot(r.Context(), accessor.SectionGlobals),
	}
}

func flag(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
