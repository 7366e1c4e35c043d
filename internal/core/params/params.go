// Package params turns a page URL's query string into namespaced parameter sets
package params

import (
	"net/url"
	"slices"
	"strings"

	"campaigncollector/internal/core/sanitize"
)

// Reserved bucket and namespace names
const (
	UTM   = "utm"
	Stray = "stray"

	// DefaultNamespace is the custom namespace used when none is configured
	DefaultNamespace = "lvl"
)

// UTMFields is the utm allow-list, standard fields first then the synthetic extensions
var UTMFields = []string{
	"source",
	"medium",
	"campaign",
	"term",
	"content",
	"id",
	"source_platform",
	"marketing_tactic",
	"creative_format",
	"group",
	"ad",
	"product",
	"feed",
	"creative",
	"extension",
	"geo_int",
	"geo_phy",
	"target",
	"network",
	"device",
	"matchtype",
	"placement",
}

// NamespaceFields is the allow-list for the custom platform namespace
var NamespaceFields = []string{
	"platform",
	"source",
	"campaign_name",
	"campaign",
	"group",
	"ad",
	"product",
	"feed",
	"creative",
	"extension",
	"geo_int",
	"geo_phy",
	"target",
	"network",
	"device",
	"matchtype",
	"placement",
}

// Fields maps field name to sanitized value
type Fields map[string]string

// Set is one page's parameters grouped by namespace, plus the stray bucket
type Set map[string]Fields

// Bucket returns the fields for ns, never nil
func (s Set) Bucket(ns string) Fields {
	if f, ok := s[ns]; ok && f != nil {
		return f
	}
	return Fields{}
}

// HasAll reports whether the ns bucket is non-empty and carries every expected key
// only presence is checked, an empty value still counts
func (s Set) HasAll(ns string, expected []string) bool {
	b := s.Bucket(ns)
	if len(b) == 0 {
		return false
	}
	for _, k := range expected {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// Vendor describes an optional third namespace that is only scanned
// when Marker occurs in the raw query string
type Vendor struct {
	Namespace string
	Marker    string
	Fields    []string
}

// Options configures an Extractor
type Options struct {
	// Namespace is the custom namespace key, DefaultNamespace when empty
	Namespace string
	// Vendor is optional
	Vendor *Vendor
	// Remap renames query keys before extraction, e.g. "gclid" -> "lvl_click_id"
	Remap map[string]string
	// Clean overrides value sanitization, sanitize.Value when nil
	Clean func(string) string
}

// Extractor is immutable after New and safe for concurrent use
type Extractor struct {
	namespaces []string
	allow      map[string][]string
	vendor     *Vendor
	remap      map[string]string
	clean      func(string) string
}

// New builds an Extractor
func New(opt Options) *Extractor {
	ns := opt.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	e := &Extractor{
		namespaces: []string{UTM, ns},
		allow: map[string][]string{
			UTM: UTMFields,
			ns:  NamespaceFields,
		},
		remap: opt.Remap,
		clean: opt.Clean,
	}
	if opt.Vendor != nil && opt.Vendor.Namespace != "" {
		v := *opt.Vendor
		if v.Marker == "" {
			v.Marker = v.Namespace + "_"
		}
		e.vendor = &v
		e.allow[v.Namespace] = v.Fields
	}
	if e.clean == nil {
		e.clean = sanitize.Value
	}
	return e
}

// Namespace returns the custom namespace key
func (e *Extractor) Namespace() string { return e.namespaces[1] }

// Allowed returns a copy of the allow-list for ns
func (e *Extractor) Allowed(ns string) []string { return slices.Clone(e.allow[ns]) }

// Extract parses u's query string into a Set
// keys matching a namespace prefix keep only allow-listed fields, the rest are dropped;
// keys matching no prefix land in Stray untouched except for value sanitization
func (e *Extractor) Extract(u *url.URL) Set {
	namespaces := e.namespaces
	if e.vendor != nil && u != nil && strings.Contains(u.RawQuery, e.vendor.Marker) {
		namespaces = append(slices.Clone(namespaces), e.vendor.Namespace)
	}

	out := make(Set, len(namespaces)+1)
	for _, ns := range namespaces {
		out[ns] = Fields{}
	}
	out[Stray] = Fields{}

	if u == nil || u.RawQuery == "" {
		return out
	}

	for _, kv := range e.pairs(u.RawQuery) {
		key, value := kv[0], kv[1]
		matched := false
		for _, ns := range namespaces {
			prefix := ns + "_"
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			field := key[len(prefix):]
			if slices.Contains(e.allow[ns], field) {
				out[ns][field] = e.clean(value)
			}
			matched = true
			break
		}
		if !matched {
			out[Stray][key] = e.clean(value)
		}
	}
	return out
}

// pairs splits the raw query in order, applying the remap table
// url.ParseQuery is not used because it loses ordering and later duplicates must win
func (e *Extractor) pairs(raw string) [][2]string {
	parts := strings.Split(raw, "&")
	out := make([][2]string, 0, len(parts))
	present := make(map[string]bool, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		k, v, _ := strings.Cut(p, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			val = v
		}
		present[key] = true
		out = append(out, [2]string{key, val})
	}
	if len(e.remap) == 0 {
		return out
	}
	for i, kv := range out {
		to, ok := e.remap[kv[0]]
		if !ok || present[to] {
			continue
		}
		out[i][0] = to
	}
	return out
}
