// Package formfill maps a snapshot onto form input names and rewrites HTML
// forms so their inputs carry the attribution values
package formfill

import (
	"maps"

	"campaigncollector/internal/core/accessor"
	"campaigncollector/internal/core/params"
)

// Defaults
const (
	DefaultJSONField     = "campaign_json"
	DefaultDataAttribute = "data-campaign-collector"
	FirstSuffix          = "_1st"
	Missing              = "-"
)

// FieldMap maps snapshot keys to form field selectors
// First and Last are keyed by flattened touchpoint key, e.g. "utm_source";
// Cookies by cookie name; Globals by path
type FieldMap struct {
	JSON    string
	First   map[string]string
	Last    map[string]string
	Cookies map[string]string
	Globals map[string]string
}

// DefaultFieldMap gives every allow-listed field "<ns>_<field>" for last and
// "<ns>_<field>_1st" for first
func DefaultFieldMap(ns string) FieldMap {
	if ns == "" {
		ns = params.DefaultNamespace
	}
	m := FieldMap{
		JSON:    DefaultJSONField,
		First:   map[string]string{},
		Last:    map[string]string{},
		Cookies: map[string]string{},
		Globals: map[string]string{},
	}
	add := func(prefix string, fields []string) {
		for _, f := range fields {
			key := prefix + "_" + f
			m.Last[key] = key
			m.First[key] = key + FirstSuffix
		}
	}
	add(params.UTM, params.UTMFields)
	add(ns, params.NamespaceFields)
	return m
}

// Clone copies m structurally
func (m FieldMap) Clone() FieldMap {
	return FieldMap{
		JSON:    m.JSON,
		First:   maps.Clone(m.First),
		Last:    maps.Clone(m.Last),
		Cookies: maps.Clone(m.Cookies),
		Globals: maps.Clone(m.Globals),
	}
}

// Merge returns m with o's non-empty entries layered on top
func (m FieldMap) Merge(o FieldMap) FieldMap {
	out := m.Clone()
	if o.JSON != "" {
		out.JSON = o.JSON
	}
	out.First = mergeMap(out.First, o.First)
	out.Last = mergeMap(out.Last, o.Last)
	out.Cookies = mergeMap(out.Cookies, o.Cookies)
	out.Globals = mergeMap(out.Globals, o.Globals)
	return out
}

func mergeMap(dst, src map[string]string) map[string]string {
	if dst == nil {
		dst = map[string]string{}
	}
	for k, v := range src {
		if v != "" {
			dst[k] = v
		}
	}
	return dst
}

// Values resolves selector -> value; mapped fields missing from the snapshot get Missing
func Values(s *accessor.Snapshot, m FieldMap) map[string]string {
	out := map[string]string{}
	if s == nil {
		return out
	}
	fill := func(data map[string]string, fields map[string]string) {
		for key, sel := range fields {
			if v, ok := data[key]; ok && v != "" {
				out[sel] = v
			} else {
				out[sel] = Missing
			}
		}
	}
	fill(s.First.Flatten(), m.First)
	fill(s.Last.Flatten(), m.Last)
	fill(s.Cookies, m.Cookies)

	globals := make(map[string]string, len(s.Globals))
	for k, v := range s.Globals {
		globals[k] = stringify(v)
	}
	fill(globals, m.Globals)
	return out
}
