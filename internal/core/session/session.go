// Package session decides, once per page evaluation, what the first and last
// touchpoints become given the page's parameters and referrer.
//
// Signal strength, strongest first:
//   - complete campaign parameters in the URL always start a new span
//   - an active last session with complete, non-direct values is kept
//   - a classified referrer
//   - direct, which never replaces a live last session
package session

import (
	"context"
	"maps"

	"campaigncollector/internal/core/params"
	"campaigncollector/internal/core/referrer"
	"campaigncollector/internal/core/touchpoint"
	"campaigncollector/internal/platform/logger"
)

// Outcome names which rule produced the last touchpoint
type Outcome string

// Outcomes
const (
	OutcomeFirstTouch Outcome = "first_touch"
	OutcomeCampaign   Outcome = "campaign"
	OutcomePreserved  Outcome = "preserved"
	OutcomeReferrer   Outcome = "referrer"
	OutcomeDirectKept Outcome = "direct_kept"
	OutcomeDirect     Outcome = "direct"
)

// Expected parameter subsets that make a URL signal complete
var (
	DefaultExpectedUTM    = []string{"source", "medium", "campaign"}
	DefaultExpectedCustom = []string{"campaign", "group", "ad"}
)

// Input is one page's signals
type Input struct {
	Params   params.Set
	Referrer *referrer.Classification
}

// Decision is the result of one resolution
type Decision struct {
	Outcome Outcome
	// Last is the record as stored, possibly a reference
	Last *touchpoint.Record
	// Resolved is Last with any reference followed
	Resolved *touchpoint.Record
	// Persisted is false when storage was withheld
	Persisted bool
}

// Options configures an Engine
type Options struct {
	ExpectedUTM    []string
	ExpectedCustom []string
	// EndExpiredOnLoad removes stale entries during Load; storage without
	// native expiry (the server-side table) needs it
	EndExpiredOnLoad bool
	// StorageAllowed gates persistence; nil allows
	StorageAllowed func() bool
	Log            *logger.Logger
}

// Engine runs resolution for one page evaluation; not safe for concurrent use
type Engine struct {
	store     *touchpoint.Store
	ns        string
	expUTM    []string
	expCustom []string
	endOnLoad bool
	allowed   func() bool
	detached  bool
	log       *logger.Logger
	input     Input
}

// New binds an Engine to a touchpoint store
func New(store *touchpoint.Store, opt Options) *Engine {
	e := &Engine{
		store:     store,
		ns:        store.Namespace(),
		expUTM:    opt.ExpectedUTM,
		expCustom: opt.ExpectedCustom,
		endOnLoad: opt.EndExpiredOnLoad,
		allowed:   opt.StorageAllowed,
		log:       opt.Log,
	}
	if e.expUTM == nil {
		e.expUTM = DefaultExpectedUTM
	}
	if e.expCustom == nil {
		e.expCustom = DefaultExpectedCustom
	}
	if e.log == nil {
		e.log = logger.Named("session")
	}
	return e
}

// Store exposes the (possibly detached) touchpoint store
func (e *Engine) Store() *touchpoint.Store { return e.store }

// Load reads both slots, ending stale ones when configured to
func (e *Engine) Load(ctx context.Context) (first, last *touchpoint.Record) {
	now := e.store.Now()
	first = e.store.Get(ctx, touchpoint.First)
	last = e.store.Get(ctx, touchpoint.Last)
	if !e.endOnLoad {
		return first, last
	}
	if first.Expired(now) {
		e.end(ctx, touchpoint.First)
		first = nil
	}
	if last.Expired(now) {
		e.end(ctx, touchpoint.Last)
		last = nil
	}
	return first, last
}

// Resolve runs the transition for one page evaluation
func (e *Engine) Resolve(ctx context.Context, in Input) (Decision, error) {
	e.input = in
	e.gate(ctx)

	now := e.store.Now()
	last := e.store.Get(ctx, touchpoint.Last)
	if last.Expired(now) {
		e.end(ctx, touchpoint.Last)
		last = nil
	}

	cand := touchpoint.NewDirect(e.ns)
	outcome := OutcomeDirect

	utmOK := in.Params.HasAll(params.UTM, e.expUTM)
	customOK := in.Params.HasAll(e.ns, e.expCustom)
	switch {
	case utmOK || customOK:
		if utmOK {
			maps.Copy(cand.UTM, in.Params.Bucket(params.UTM))
		}
		if customOK {
			maps.Copy(cand.Custom, in.Params.Bucket(e.ns))
		}
		outcome = OutcomeCampaign
	case e.quality(e.store.Resolve(ctx, last)):
		// stored form is kept so a reference stays a reference
		cand = last.Clone()
		outcome = OutcomePreserved
	case in.Referrer != nil:
		cand.UTM["source"] = in.Referrer.Source
		cand.UTM["medium"] = in.Referrer.Medium
		outcome = OutcomeReferrer
	}

	if e.store.Get(ctx, touchpoint.First) == nil {
		if _, err := e.store.Set(ctx, touchpoint.First, cand); err != nil {
			return Decision{}, err
		}
		cand = touchpoint.Reference(touchpoint.First, e.ns)
		outcome = OutcomeFirstTouch
	} else if last != nil && e.store.Resolve(ctx, cand).IsDirect() {
		cand = last
		outcome = OutcomeDirectKept
	}

	stored, err := e.store.Set(ctx, touchpoint.Last, cand)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Outcome:   outcome,
		Last:      stored,
		Resolved:  e.store.Resolve(ctx, stored),
		Persisted: !e.detached,
	}
	ev := e.log.Debug().Str("outcome", string(outcome)).Bool("persisted", d.Persisted)
	if d.Resolved != nil {
		ev = ev.Str("source", d.Resolved.UTM["source"]).Str("medium", d.Resolved.UTM["medium"])
	}
	ev.Msg("session resolved")
	return d, nil
}

// ActiveSession returns the reference-resolved last touchpoint, nil when there is
// none. An expired last is ended and resolution re-runs with this page's inputs.
func (e *Engine) ActiveSession(ctx context.Context) (*touchpoint.Record, error) {
	last := e.store.Get(ctx, touchpoint.Last)
	if last == nil {
		return nil, nil
	}
	if last.Expired(e.store.Now()) {
		e.end(ctx, touchpoint.Last)
		d, err := e.Resolve(ctx, e.input)
		if err != nil {
			return nil, err
		}
		return d.Resolved, nil
	}
	return e.store.Resolve(ctx, last), nil
}

// Hydrate extends the live last touchpoint's expiry without re-running resolution
// it returns the stored record, nil when there is no live session
func (e *Engine) Hydrate(ctx context.Context) (*touchpoint.Record, error) {
	e.gate(ctx)
	last := e.store.Get(ctx, touchpoint.Last)
	if last == nil || last.Expired(e.store.Now()) {
		return nil, nil
	}
	return e.store.Set(ctx, touchpoint.Last, last)
}

// Navigate handles an in-app route change: the referrer belongs to the initial
// load only, so it is cleared before resolution re-runs with the new parameters
func (e *Engine) Navigate(ctx context.Context, p params.Set) (Decision, error) {
	return e.Resolve(ctx, Input{Params: p})
}

// quality reports whether an active session is strong enough to resist a referrer
func (e *Engine) quality(r *touchpoint.Record) bool {
	if r == nil {
		return false
	}
	if allSet(r.UTM, e.expUTM) &&
		r.UTM["source"] != touchpoint.DirectSource &&
		r.UTM["medium"] != touchpoint.DirectMedium {
		return true
	}
	return allSet(r.Custom, e.expCustom)
}

func allSet(f params.Fields, keys []string) bool {
	if len(f) == 0 || len(keys) == 0 {
		return false
	}
	for _, k := range keys {
		if f[k] == "" {
			return false
		}
	}
	return true
}

// gate moves the engine onto a detached store once storage is withheld
func (e *Engine) gate(ctx context.Context) {
	if e.detached || e.allowed == nil || e.allowed() {
		return
	}
	e.store = e.store.Detach(ctx)
	e.detached = true
}

func (e *Engine) end(ctx context.Context, n touchpoint.Name) {
	if err := e.store.End(ctx, n); err != nil {
		e.log.Warn().Err(err).Str("slot", string(n)).Msg("end touchpoint failed")
	}
}
