package http

import (
	stdhttp "net/http"
	"net/url"

	perr "campaigncollector/internal/platform/errors"
	"campaigncollector/internal/platform/logger"
	pnet "campaigncollector/internal/platform/net"
	svc "campaigncollector/internal/services/collector/service"
)

// Headers a browser tag sends with API calls
const (
	HeaderPage     = "X-Collector-Page"
	HeaderReferrer = "X-Collector-Referrer"
)

// Evaluate runs a page evaluation for every request it wraps: the request URL is
// the page and the Referer header is the document referrer. Resolution failures
// are logged and the request proceeds with the attached collector.
func Evaluate(s *svc.Service) func(stdhttp.Handler) stdhttp.Handler {
	return func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			c := s.Attach(w, r, PageOf(r))
			ctx := pnet.WithAnon(r.Context(), c.AnonymousID())
			if _, err := c.Evaluate(ctx); err != nil {
				logger.C(ctx).Warn().Err(err).Msg("page evaluation failed")
			}
			next.ServeHTTP(w, r.WithContext(svc.WithCollector(ctx, c)))
		})
	}
}

// Attach binds a collector without resolving, for API calls a tag makes after
// the page loaded
func Attach(s *svc.Service) func(stdhttp.Handler) stdhttp.Handler {
	return func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			c := s.Attach(w, r, TagPageOf(r))
			ctx := pnet.WithAnon(r.Context(), c.AnonymousID())
			next.ServeHTTP(w, r.WithContext(svc.WithCollector(ctx, c)))
		})
	}
}

// PageOf reads the page signals of a server-rendered page request
func PageOf(r *stdhttp.Request) svc.Page {
	u := *r.URL
	u.Host = r.Host
	u.Scheme = "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		u.Scheme = "https"
	}
	return svc.Page{URL: &u, Referrer: r.Referer()}
}

// TagPageOf reads the page signals of an API call: the page comes from
// X-Collector-Page, else the Referer header; the document referrer from
// X-Collector-Referrer
func TagPageOf(r *stdhttp.Request) svc.Page {
	raw := r.Header.Get(HeaderPage)
	if raw == "" {
		raw = r.Referer()
	}
	u, err := url.Parse(raw)
	if err != nil {
		u = &url.URL{}
	}
	return svc.Page{URL: u, Referrer: r.Header.Get(HeaderReferrer)}
}

func parseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, perr.Validationf("url", "collector: bad page url: %v", err)
	}
	return u, nil
}
