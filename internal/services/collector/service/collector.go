package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"campaigncollector/internal/core/accessor"
	"campaigncollector/internal/core/anonid"
	"campaigncollector/internal/core/consent"
	"campaigncollector/internal/core/formfill"
	"campaigncollector/internal/core/kv"
	"campaigncollector/internal/core/lead"
	"campaigncollector/internal/core/params"
	"campaigncollector/internal/core/referrer"
	"campaigncollector/internal/core/session"
	"campaigncollector/internal/core/touchpoint"
	perr "campaigncollector/internal/platform/errors"
	"campaigncollector/internal/platform/logger"
	"campaigncollector/internal/services/collector/domain"
)

// Page is one evaluation's signals: the page URL and document referrer
type Page struct {
	URL      *url.URL
	Referrer string
}

// Collector is one page evaluation; confined to its request goroutine
type Collector struct {
	svc     *Service
	page    Page
	domain  string
	jar     *kv.CookieJar
	tp      *touchpoint.Store
	engine  *session.Engine
	params  params.Set
	consent consent.State
	anonID  string
	globals accessor.GlobalResolver
	last    *session.Decision
}

// Attach binds a Collector to one request: it reads consent, the visitor's
// anonymous id and stored touchpoints but resolves nothing yet. Without storage
// consent the id lives for this request only
func (s *Service) Attach(w http.ResponseWriter, r *http.Request, page Page) *Collector {
	ctx := r.Context()
	if page.URL == nil {
		page.URL = &url.URL{}
	}
	c := &Collector{
		svc:     s,
		page:    page,
		domain:  s.cfg.Storage.CookieDomain,
		globals: RequestGlobals(r),
	}
	if c.domain == "" {
		c.domain = referrer.RootDomain(page.URL.Hostname())
	}
	c.jar = kv.NewCookieJar(w, r, kv.CookieOptions{Domain: c.domain, Secure: s.cfg.Secure()})

	c.consent = consent.Load(ctx, c.jar, s.cfg.Key("consent"))

	if c.StorageAllowed() {
		id, created, err := anonid.Ensure(ctx, c.jar, s.cfg.Key("anonymous_id"), s.now())
		if err != nil {
			s.log.Warn().Err(err).Msg("anonymous id not persisted")
		}
		c.anonID = id
		if created {
			s.log.Debug().Str("anon_id", id).Msg("anonymous id minted")
		}
	} else {
		id, err := anonid.Transient(ctx, c.jar, s.cfg.Key("anonymous_id"), s.now())
		if err != nil {
			s.log.Warn().Err(err).Msg("anonymous id not removed")
		}
		c.anonID = id
	}

	var store kv.Store = c.jar
	if s.cfg.Storage.Kind == kv.KindLocal {
		store = kv.NewScoped(s.table, c.anonID, func(op, key string, err error) {
			logger.With(ctx, s.log).Warn().Err(err).Str("op", op).Str("key", key).Msg("local storage failed")
		})
	}
	c.tp = touchpoint.NewStore(store, touchpoint.Config{
		KeyPrefix: s.cfg.Storage.KeyPrefix,
		Namespace: s.cfg.Namespace,
		Base64:    s.cfg.Base64(),
		FirstTTL:  s.cfg.Session.FirstTTL,
		LastTTL:   s.cfg.Session.Timeout,
		Now:       s.now,
		Log:       s.log,
	})
	c.engine = session.New(c.tp, session.Options{
		ExpectedUTM:      s.cfg.Session.ExpectedUTM,
		ExpectedCustom:   s.cfg.Session.ExpectedCustom,
		EndExpiredOnLoad: s.cfg.Storage.Kind == kv.KindLocal,
		StorageAllowed:   c.StorageAllowed,
		Log:              s.log,
	})
	c.params = s.extractor.Extract(page.URL)
	c.engine.Load(ctx)
	return c
}

// SetPage replaces the page signals, for a tag that reports its page explicitly
func (c *Collector) SetPage(page Page) {
	if page.URL == nil {
		page.URL = &url.URL{}
	}
	c.page = page
	c.params = c.svc.extractor.Extract(page.URL)
}

// Evaluate runs session resolution with the page's parameters and referrer
func (c *Collector) Evaluate(ctx context.Context) (session.Decision, error) {
	var ref *referrer.Classification
	if cls, ok := c.svc.classifier.Classify(c.page.Referrer, c.domain); ok {
		ref = &cls
	}
	d, err := c.engine.Resolve(ctx, session.Input{Params: c.params, Referrer: ref})
	if err != nil {
		return d, err
	}
	c.ready(ctx, d)
	return d, nil
}

// Navigate re-resolves for an in-app route change; the referrer is dropped
func (c *Collector) Navigate(ctx context.Context, rawURL string) (session.Decision, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return session.Decision{}, perr.Validationf("url", "collector: bad navigation url: %v", err)
	}
	c.page = Page{URL: u}
	c.params = c.svc.extractor.Extract(u)
	d, err := c.engine.Navigate(ctx, c.params)
	if err != nil {
		return d, err
	}
	c.ready(ctx, d)
	return d, nil
}

// ActiveSession returns the live, reference-resolved last touchpoint
func (c *Collector) ActiveSession(ctx context.Context) (*touchpoint.Record, error) {
	return c.engine.ActiveSession(ctx)
}

// Hydrate refreshes the live last touchpoint's expiry only
func (c *Collector) Hydrate(ctx context.Context) (*touchpoint.Record, error) {
	return c.engine.Hydrate(ctx)
}

// Grab assembles a snapshot, or its JSON text when opt.AsJSON is set
func (c *Collector) Grab(ctx context.Context, opt accessor.Options) (any, error) {
	return c.accessor().Grab(ctx, opt)
}

// Snapshot assembles a dereferenced, filtered snapshot
func (c *Collector) Snapshot(ctx context.Context, without ...accessor.Section) *accessor.Snapshot {
	return c.accessor().Assemble(ctx, accessor.Options{Without: without, ApplyFilters: true, Dereference: true})
}

// UpdateConsent applies one category change and persists the state. When storage
// is no longer allowed the stored touchpoints and the anonymous id are removed,
// otherwise the id is stored
func (c *Collector) UpdateConsent(ctx context.Context, category, value string) (consent.State, error) {
	if err := c.consent.Update(category, value); err != nil {
		return nil, err
	}
	if err := c.consent.Save(ctx, c.jar, c.svc.cfg.Key("consent")); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "collector: save consent")
	}
	key := c.svc.cfg.Key("anonymous_id")
	if c.StorageAllowed() {
		if err := anonid.Save(ctx, c.jar, key, c.anonID); err != nil {
			logger.With(ctx, c.svc.log).Warn().Err(err).Msg("anonymous id not persisted")
		}
		return c.consent, nil
	}
	for _, n := range []touchpoint.Name{touchpoint.First, touchpoint.Last} {
		if err := c.tp.End(ctx, n); err != nil {
			logger.With(ctx, c.svc.log).Warn().Err(err).Str("slot", string(n)).Msg("end touchpoint failed")
		}
	}
	if err := anonid.Forget(ctx, c.jar, key); err != nil {
		logger.With(ctx, c.svc.log).Warn().Err(err).Msg("anonymous id not removed")
	}
	return c.consent, nil
}

// Lead builds a payload carrying the visitor's attribution and hands it to the
// sender; only a missing endpoint or an unencodable payload is returned
func (c *Collector) Lead(ctx context.Context, in domain.LeadInput) (*lead.Payload, error) {
	campaign, err := json.Marshal(c.Snapshot(ctx, accessor.SectionParams, accessor.SectionGlobals))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "collector: encode campaign")
	}
	p := lead.Build(lead.Input{
		Event:       in.Event,
		Properties:  in.Properties,
		UserData:    in.UserData,
		PageURL:     c.page.URL.String(),
		AnonymousID: c.anonID,
		Consent:     c.ConsentMap(),
		Campaign:    campaign,
	}, c.svc.now())
	err = c.svc.sender.Send(ctx, p)
	c.svc.metrics.Lead("send", err == nil)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Fill copies the HTML from r to w with form inputs set to the visitor's
// attribution values and returns how many inputs were written
func (c *Collector) Fill(ctx context.Context, r io.Reader, w io.Writer) (int, error) {
	snap := c.Snapshot(ctx)
	js, err := snap.JSON()
	if err != nil {
		return 0, err
	}
	values := formfill.Values(snap, c.svc.fields)
	return formfill.Rewrite(r, w, values, c.svc.fields.JSON, js, c.svc.targeting)
}

// StorageAllowed reports whether consent lets touchpoints persist
func (c *Collector) StorageAllowed() bool {
	return c.consent.StorageAllowed(c.svc.cfg.RequireConsent())
}

// ConsentMap returns the consent state keyed by category name
func (c *Collector) ConsentMap() map[string]string {
	out := make(map[string]string, len(c.consent))
	for k, v := range c.consent {
		out[string(k)] = string(v)
	}
	return out
}

// AnonymousID returns the visitor id
func (c *Collector) AnonymousID() string { return c.anonID }

// Decision returns the last resolution, nil before Evaluate or Navigate
func (c *Collector) Decision() *session.Decision { return c.last }

// Page returns the page signals in effect
func (c *Collector) Page() Page { return c.page }

// Params returns the extracted query parameters
func (c *Collector) Params() params.Set { return c.params }

func (c *Collector) accessor() *accessor.Accessor {
	return accessor.New(accessor.Config{
		Cookies: c.svc.cfg.Collect.Cookies,
		Globals: c.svc.cfg.Collect.Globals,
		Filters: c.svc.filters,
		Log:     c.svc.log,
	}, accessor.Sources{
		Params:  c.params,
		Store:   c.engine.Store(),
		Cookies: c.jar,
		Globals: c.globals,
	})
}

// ready records the evaluation: metrics by outcome and medium, and the ready
// event carrying the grab payload
func (c *Collector) ready(ctx context.Context, d session.Decision) {
	c.last = &d
	var medium string
	if d.Resolved != nil {
		medium = d.Resolved.UTM["medium"]
	}
	c.svc.metrics.Resolution(string(d.Outcome), medium)

	ev := logger.With(ctx, c.svc.log).Info().Str("outcome", string(d.Outcome)).Bool("persisted", d.Persisted)
	if b, err := json.Marshal(c.Snapshot(ctx, accessor.SectionGlobals)); err == nil {
		ev = ev.RawJSON("payload", b)
	}
	ev.Msg("ready")
}
