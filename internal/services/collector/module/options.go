package module

import (
	"time"

	"campaigncollector/internal/core/formfill"
	"campaigncollector/internal/core/kv"
	"campaigncollector/internal/core/touchpoint"
	"campaigncollector/internal/platform/config"
	perr "campaigncollector/internal/platform/errors"
	"campaigncollector/internal/services/collector/service"
)

// EnvPrefix scopes every collector setting
const EnvPrefix = "CC_COLLECTOR_"

// DefaultStatementTimeout bounds each collector transaction
const DefaultStatementTimeout = 5 * time.Second

// FromConfig reads the collector settings under CC_COLLECTOR_ and layers them
// onto service.DefaultConfig; unset keys keep the defaults
func FromConfig(cfg config.Conf) (service.Config, error) {
	c := cfg.Prefix(EnvPrefix)
	out := service.Config{
		Namespace: c.MayString("NAMESPACE", ""),
		Storage: service.StorageConfig{
			Kind:         kv.Kind(c.MayEnum("STORAGE", string(kv.KindCookie), string(kv.KindCookie), string(kv.KindLocal))),
			KeyPrefix:    c.MayString("KEY_PREFIX", ""),
			CookieDomain: c.MayString("COOKIE_DOMAIN", ""),
			Secure:       mayBool(c, "SECURE"),
			Base64:       mayBool(c, "BASE64"),
		},
		Session: service.SessionConfig{
			ExpectedUTM:    c.MayCSV("EXPECTED_UTM", nil),
			ExpectedCustom: c.MayCSV("EXPECTED_CUSTOM", nil),
		},
		Referrer: service.ReferrerConfig{
			RulesFile: c.MayString("RULES_FILE", ""),
		},
		Params: service.ParamsConfig{
			VendorNamespace: c.MayString("VENDOR_NAMESPACE", ""),
			VendorMarker:    c.MayString("VENDOR_MARKER", ""),
			VendorFields:    c.MayCSV("VENDOR_FIELDS", nil),
			Remap:           c.MayPairs("PARAM_MAP"),
		},
		Lead: service.LeadConfig{
			Endpoint:  c.MayURL("LEAD_ENDPOINT", ""),
			Timeout:   c.MayDuration("LEAD_TIMEOUT", 0),
			QueueSize: c.MayInt("LEAD_QUEUE", 0),
		},
		Consent: service.ConsentConfig{Require: mayBool(c, "REQUIRE_CONSENT")},
		Collect: service.CollectConfig{
			Cookies: c.MayCSV("COOKIES", nil),
			Globals: c.MayCSV("GLOBALS", nil),
			Filters: c.MayPairs("FILTERS"),
		},
		Fill: service.FillConfig{DataAttribute: c.MayString("FILL_ATTRIBUTE", "")},
	}
	if c.MayBool("AI_RULES", false) {
		out.Referrer.Enable = []string{"ai"}
	}
	for _, m := range c.MayCSV("FILL_METHODS", nil) {
		out.Fill.Methods = append(out.Fill.Methods, formfill.ParseMethod(m))
	}

	var err error
	if out.Session.Timeout, err = mayLifetime(c, "SESSION_TIMEOUT"); err != nil {
		return service.Config{}, err
	}
	if out.Session.FirstTTL, err = mayLifetime(c, "FIRST_TTL"); err != nil {
		return service.Config{}, err
	}
	return service.DefaultConfig().Merge(out), nil
}

// StatementTimeout reads CC_COLLECTOR_STATEMENT_TIMEOUT
func StatementTimeout(cfg config.Conf) time.Duration {
	return cfg.Prefix(EnvPrefix).MayDuration("STATEMENT_TIMEOUT", DefaultStatementTimeout)
}

func mayBool(c config.Conf, key string) *bool {
	if !c.Has(key) {
		return nil
	}
	v := c.MayBool(key, false)
	return &v
}

// mayLifetime reads "30 minutes" style values; a bare number is minutes
func mayLifetime(c config.Conf, key string) (touchpoint.Duration, error) {
	raw := c.MayString(key, "")
	if raw == "" {
		return touchpoint.Duration{}, nil
	}
	d, err := touchpoint.ParseDuration(raw)
	if err != nil {
		return touchpoint.Duration{}, perr.Validationf(EnvPrefix+key, "collector: %v", err)
	}
	return d, nil
}
