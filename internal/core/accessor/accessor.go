// Package accessor assembles the externally visible attribution snapshot
package accessor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"campaigncollector/internal/core/params"
	"campaigncollector/internal/core/touchpoint"
	perr "campaigncollector/internal/platform/errors"
	"campaigncollector/internal/platform/logger"
)

// Section is one part of a snapshot
type Section string

// Sections in output order
const (
	SectionParams  Section = "params"
	SectionFirst   Section = "first"
	SectionLast    Section = "last"
	SectionGlobals Section = "globals"
	SectionCookies Section = "cookies"
)

// Sections lists every section in output order
var Sections = []Section{SectionParams, SectionFirst, SectionLast, SectionGlobals, SectionCookies}

// ParseSections reads a comma separated list, e.g. "params,globals"
func ParseSections(csv string) ([]Section, error) {
	var out []Section
	for _, p := range strings.Split(csv, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		s := Section(p)
		if !slices.Contains(Sections, s) {
			return nil, perr.WithField(perr.Newf(perr.ErrorCodeValidation, "unknown section %q", p), "without")
		}
		out = append(out, s)
	}
	return out, nil
}

// Filter transforms one collected value; errors and panics are contained
type Filter func(value any) (any, error)

// GlobalResolver reads a host-provided value by dotted path
type GlobalResolver func(path string) (any, bool)

// CookieReader reads a cookie by name
type CookieReader interface {
	Get(ctx context.Context, name string) (string, bool)
}

// Config is fixed per deployment
type Config struct {
	// Cookies are the cookie names collected into the cookies section
	Cookies []string
	// Globals are the paths collected into the globals section
	Globals []string
	// Filters are keyed by cookie name, global path or flattened touchpoint key
	Filters map[string]Filter
	Log     *logger.Logger
}

// Sources are the per-evaluation inputs
type Sources struct {
	Params  params.Set
	Store   *touchpoint.Store
	Cookies CookieReader
	Globals GlobalResolver
}

// Options select and shape a snapshot; sections are included unless listed in Without
type Options struct {
	Without      []Section
	ApplyFilters bool
	Dereference  bool
	AsJSON       bool
}

func (o Options) includes(s Section) bool { return !slices.Contains(o.Without, s) }

// Snapshot is the assembled result; nil sections were not requested
type Snapshot struct {
	Params  params.Set
	First   *touchpoint.Record
	Last    *touchpoint.Record
	Globals map[string]any
	Cookies map[string]string

	included []Section
}

// Included reports whether s was requested
func (s *Snapshot) Included(sec Section) bool { return slices.Contains(s.included, sec) }

// MarshalJSON writes requested sections in order; a requested but empty
// touchpoint is written as null
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	n := 0
	for _, sec := range s.included {
		var v any
		switch sec {
		case SectionParams:
			v = s.Params
		case SectionFirst:
			v = s.First
		case SectionLast:
			v = s.Last
		case SectionGlobals:
			v = s.Globals
		case SectionCookies:
			v = s.Cookies
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("accessor: %s: %w", sec, err)
		}
		if n > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%q:", sec)
		b.Write(raw)
		n++
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// JSON encodes the snapshot
func (s *Snapshot) JSON() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeJSON, "accessor: encode snapshot")
	}
	return string(b), nil
}

// Accessor is a read-only composition over one evaluation's state
type Accessor struct {
	cfg Config
	src Sources
	log *logger.Logger
}

// New binds cfg to the evaluation's sources
func New(cfg Config, src Sources) *Accessor {
	l := cfg.Log
	if l == nil {
		l = logger.Named("accessor")
	}
	return &Accessor{cfg: cfg, src: src, log: l}
}

// Assemble builds a snapshot
func (a *Accessor) Assemble(ctx context.Context, opt Options) *Snapshot {
	s := &Snapshot{}
	for _, sec := range Sections {
		if !opt.includes(sec) {
			continue
		}
		s.included = append(s.included, sec)
		switch sec {
		case SectionParams:
			s.Params = a.src.Params
			if s.Params == nil {
				s.Params = params.Set{}
			}
		case SectionFirst:
			s.First = a.touchpoint(ctx, touchpoint.First, opt)
		case SectionLast:
			s.Last = a.touchpoint(ctx, touchpoint.Last, opt)
		case SectionGlobals:
			s.Globals = a.globals(opt.ApplyFilters)
		case SectionCookies:
			s.Cookies = a.cookies(ctx, opt.ApplyFilters)
		}
	}
	return s
}

// Grab is Assemble honoring AsJSON: it yields a string or a *Snapshot
func (a *Accessor) Grab(ctx context.Context, opt Options) (any, error) {
	s := a.Assemble(ctx, opt)
	if !opt.AsJSON {
		return s, nil
	}
	return s.JSON()
}

func (a *Accessor) touchpoint(ctx context.Context, n touchpoint.Name, opt Options) *touchpoint.Record {
	if a.src.Store == nil {
		return nil
	}
	r := a.src.Store.Get(ctx, n)
	if r == nil {
		return nil
	}
	if opt.Dereference && r.IsReference() {
		if resolved := a.src.Store.Resolve(ctx, r); resolved != nil {
			r = resolved
		}
	}
	if opt.ApplyFilters && !r.IsReference() {
		a.filterRecord(r)
	}
	return r
}

func (a *Accessor) filterRecord(r *touchpoint.Record) {
	ns := r.Namespace
	if ns == "" {
		ns = params.DefaultNamespace
	}
	apply := func(prefix string, f params.Fields) {
		for k, v := range f {
			key := prefix + "_" + k
			if out, ok := a.filter(key, v); ok {
				f[k] = fmt.Sprint(out)
			}
		}
	}
	apply(params.UTM, r.UTM)
	apply(ns, r.Custom)
}

// cookies keeps the unfiltered value when a filter fails
func (a *Accessor) cookies(ctx context.Context, applyFilters bool) map[string]string {
	out := map[string]string{}
	if a.src.Cookies == nil {
		return out
	}
	for _, name := range a.cfg.Cookies {
		v, ok := a.src.Cookies.Get(ctx, name)
		if !ok || v == "" {
			continue
		}
		if applyFilters {
			if f, ok := a.filter(name, v); ok {
				v = fmt.Sprint(f)
			}
		}
		out[name] = v
	}
	return out
}

// globals omits the value when a filter fails
func (a *Accessor) globals(applyFilters bool) map[string]any {
	out := map[string]any{}
	if a.src.Globals == nil {
		return out
	}
	for _, path := range a.cfg.Globals {
		v, ok := a.resolveGlobal(path)
		if !ok || empty(v) {
			continue
		}
		if applyFilters {
			if _, has := a.cfg.Filters[path]; has {
				fv, ok := a.filter(path, v)
				if !ok {
					continue
				}
				v = fv
			}
		}
		out[path] = v
	}
	return out
}

func (a *Accessor) resolveGlobal(path string) (v any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Str("global", path).Interface("panic", r).Msg("resolving global failed")
			v, ok = nil, false
		}
	}()
	return a.src.Globals(path)
}

// filter runs the filter for key; ok is false when there is none or it failed
func (a *Accessor) filter(key string, v any) (out any, ok bool) {
	f, has := a.cfg.Filters[key]
	if !has || f == nil {
		return nil, false
	}
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Str("filter", key).Interface("panic", r).Msg("filter panicked")
			out, ok = nil, false
		}
	}()
	res, err := f(v)
	if err != nil {
		a.log.Error().Str("filter", key).Err(err).Msg("filter failed")
		return nil, false
	}
	return res, true
}

func empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	}
	return false
}
