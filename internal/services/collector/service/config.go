package service

import (
	"maps"
	"slices"
	"time"

	"campaigncollector/internal/core/formfill"
	"campaigncollector/internal/core/kv"
	"campaigncollector/internal/core/lead"
	"campaigncollector/internal/core/params"
	"campaigncollector/internal/core/session"
	"campaigncollector/internal/core/touchpoint"
	perr "campaigncollector/internal/platform/errors"
)

// Config is the collector's typed configuration
// Merge and Clone walk it field by field so non-JSON types survive
type Config struct {
	Namespace string
	Storage   StorageConfig
	Session   SessionConfig
	Referrer  ReferrerConfig
	Params    ParamsConfig
	Lead      LeadConfig
	Consent   ConsentConfig
	Collect   CollectConfig
	Fill      FillConfig
}

// StorageConfig selects where attribution entries live
type StorageConfig struct {
	Kind         kv.Kind
	KeyPrefix    string
	CookieDomain string
	Secure       *bool
	Base64       *bool
}

// SessionConfig holds the touchpoint lifetimes and completeness rules
type SessionConfig struct {
	Timeout        touchpoint.Duration
	FirstTTL       touchpoint.Duration
	ExpectedUTM    []string
	ExpectedCustom []string
}

// ReferrerConfig points at an optional rule table override
type ReferrerConfig struct {
	RulesFile string
	Enable    []string
}

// ParamsConfig configures query extraction
type ParamsConfig struct {
	VendorNamespace string
	VendorMarker    string
	VendorFields    []string
	Remap           map[string]string
}

// LeadConfig configures lead delivery
type LeadConfig struct {
	Endpoint  string
	Timeout   time.Duration
	QueueSize int
}

// ConsentConfig gates storage on consent
type ConsentConfig struct {
	Require *bool
}

// CollectConfig drives the accessor: collected cookies and globals, and
// per-key transforms by name (see Transforms)
type CollectConfig struct {
	Cookies []string
	Globals []string
	Filters map[string]string
}

// FillConfig drives server-side form fill; Fields overrides the namespace defaults
type FillConfig struct {
	Methods       []formfill.Method
	DataAttribute string
	Fields        formfill.FieldMap
}

// DefaultCookies are the ad platform cookies collected when none are configured
var DefaultCookies = []string{"_ga", "_fbp", "_fbc", "_gcl_aw"}

// DefaultConfig is the baseline every deployment merges onto
func DefaultConfig() Config {
	return Config{
		Namespace: params.DefaultNamespace,
		Storage: StorageConfig{
			Kind:      kv.KindCookie,
			KeyPrefix: touchpoint.DefaultKeyPrefix,
			Secure:    ptr(true),
			Base64:    ptr(true),
		},
		Session: SessionConfig{
			Timeout:        touchpoint.DefaultLastTTL,
			FirstTTL:       touchpoint.DefaultFirstTTL,
			ExpectedUTM:    slices.Clone(session.DefaultExpectedUTM),
			ExpectedCustom: slices.Clone(session.DefaultExpectedCustom),
		},
		Lead: LeadConfig{
			Timeout:   lead.DefaultTimeout,
			QueueSize: 64,
		},
		Consent: ConsentConfig{Require: ptr(false)},
		Collect: CollectConfig{Cookies: slices.Clone(DefaultCookies)},
		Fill:    FillConfig{Methods: []formfill.Method{formfill.ByName}},
	}
}

// Merge returns c overlaid with every field o sets
// strings, durations and pointers override when set, slices replace when non-nil,
// maps merge key by key
func (c Config) Merge(o Config) Config {
	out := c.Clone()
	setStr(&out.Namespace, o.Namespace)

	if o.Storage.Kind != "" {
		out.Storage.Kind = o.Storage.Kind
	}
	setStr(&out.Storage.KeyPrefix, o.Storage.KeyPrefix)
	setStr(&out.Storage.CookieDomain, o.Storage.CookieDomain)
	setPtr(&out.Storage.Secure, o.Storage.Secure)
	setPtr(&out.Storage.Base64, o.Storage.Base64)

	if !o.Session.Timeout.IsZero() {
		out.Session.Timeout = o.Session.Timeout
	}
	if !o.Session.FirstTTL.IsZero() {
		out.Session.FirstTTL = o.Session.FirstTTL
	}
	setSlice(&out.Session.ExpectedUTM, o.Session.ExpectedUTM)
	setSlice(&out.Session.ExpectedCustom, o.Session.ExpectedCustom)

	setStr(&out.Referrer.RulesFile, o.Referrer.RulesFile)
	setSlice(&out.Referrer.Enable, o.Referrer.Enable)

	setStr(&out.Params.VendorNamespace, o.Params.VendorNamespace)
	setStr(&out.Params.VendorMarker, o.Params.VendorMarker)
	setSlice(&out.Params.VendorFields, o.Params.VendorFields)
	out.Params.Remap = mergeMap(out.Params.Remap, o.Params.Remap)

	setStr(&out.Lead.Endpoint, o.Lead.Endpoint)
	if o.Lead.Timeout > 0 {
		out.Lead.Timeout = o.Lead.Timeout
	}
	if o.Lead.QueueSize > 0 {
		out.Lead.QueueSize = o.Lead.QueueSize
	}

	setPtr(&out.Consent.Require, o.Consent.Require)

	setSlice(&out.Collect.Cookies, o.Collect.Cookies)
	setSlice(&out.Collect.Globals, o.Collect.Globals)
	out.Collect.Filters = mergeMap(out.Collect.Filters, o.Collect.Filters)

	setSlice(&out.Fill.Methods, o.Fill.Methods)
	setStr(&out.Fill.DataAttribute, o.Fill.DataAttribute)
	out.Fill.Fields = out.Fill.Fields.Merge(o.Fill.Fields)
	return out
}

// Clone copies c without sharing slices, maps or pointers
func (c Config) Clone() Config {
	out := c
	out.Storage.Secure = clonePtr(c.Storage.Secure)
	out.Storage.Base64 = clonePtr(c.Storage.Base64)
	out.Session.ExpectedUTM = slices.Clone(c.Session.ExpectedUTM)
	out.Session.ExpectedCustom = slices.Clone(c.Session.ExpectedCustom)
	out.Referrer.Enable = slices.Clone(c.Referrer.Enable)
	out.Params.VendorFields = slices.Clone(c.Params.VendorFields)
	out.Params.Remap = maps.Clone(c.Params.Remap)
	out.Consent.Require = clonePtr(c.Consent.Require)
	out.Collect.Cookies = slices.Clone(c.Collect.Cookies)
	out.Collect.Globals = slices.Clone(c.Collect.Globals)
	out.Collect.Filters = maps.Clone(c.Collect.Filters)
	out.Fill.Methods = slices.Clone(c.Fill.Methods)
	out.Fill.Fields = c.Fill.Fields.Clone()
	return out
}

// Validate reports the first unusable setting
func (c Config) Validate() error {
	if c.Namespace == "" {
		return perr.Validationf("namespace", "collector: namespace is required")
	}
	if !c.Storage.Kind.Valid() {
		return perr.Validationf("storage", "collector: storage must be cookie or local, got %q", c.Storage.Kind)
	}
	if c.Storage.KeyPrefix == "" {
		return perr.Validationf("key_prefix", "collector: key prefix is required")
	}
	if c.Session.Timeout.IsZero() || c.Session.FirstTTL.IsZero() {
		return perr.Validationf("session_timeout", "collector: touchpoint lifetimes must be positive")
	}
	if c.Params.VendorMarker != "" && c.Params.VendorNamespace == "" {
		return perr.Validationf("vendor", "collector: vendor marker needs a vendor namespace")
	}
	for key, name := range c.Collect.Filters {
		if _, ok := Transforms[name]; !ok {
			return perr.Validationf("filters", "collector: unknown transform %q for %s", name, key)
		}
	}
	return nil
}

// Base64 reports whether records are written in the base64 envelope
func (c Config) Base64() bool { return deref(c.Storage.Base64, true) }

// Secure reports whether cookies carry the Secure attribute
func (c Config) Secure() bool { return deref(c.Storage.Secure, true) }

// RequireConsent reports whether storage waits for analytics consent
func (c Config) RequireConsent() bool { return deref(c.Consent.Require, false) }

// Key returns a storage key under the configured prefix
func (c Config) Key(name string) string { return c.Storage.KeyPrefix + "_" + name }

func ptr[T any](v T) *T { return &v }

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setPtr[T any](dst **T, v *T) {
	if v != nil {
		*dst = clonePtr(v)
	}
}

func setSlice[T any](dst *[]T, v []T) {
	if v != nil {
		*dst = slices.Clone(v)
	}
}

func mergeMap[K comparable, V any](dst, src map[K]V) map[K]V {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[K]V, len(src))
	}
	maps.Copy(dst, src)
	return dst
}
