// Package config reads typed settings from environment variables
package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"campaigncollector/internal/platform/logger"
	pstrings "campaigncollector/internal/platform/strings"
)

// Conf is a prefixed view over the environment, e.g. New().Prefix("CC_COLLECTOR_")
// Must* panic on missing or invalid values; May* log and fall back to the default
type Conf struct {
	prefix string
	lookup func(string) (string, bool)
}

// New reads the process environment
func New() Conf { return Conf{lookup: os.LookupEnv} }

// FromMap reads from m; tests use it instead of t.Setenv
func FromMap(m map[string]string) Conf {
	return Conf{lookup: func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}}
}

// Prefix nests a prefix under the current one
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p, lookup: c.lookup} }

func (c Conf) key(k string) string { return c.prefix + k }

func (c Conf) get(k string) string {
	if c.lookup == nil {
		return ""
	}
	v, _ := c.lookup(c.key(k))
	return strings.TrimSpace(v)
}

// Has reports whether key is set to a non-blank value
func (c Conf) Has(key string) bool { return c.get(key) != "" }

// MustString panics when key is blank
func (c Conf) MustString(key string) string {
	v := c.get(key)
	if v == "" {
		logger.Get().Panic().Str("key", c.key(key)).Msg("missing required env")
	}
	return v
}

// MustURL panics unless key holds an absolute URL
func (c Conf) MustURL(key string) *url.URL {
	s := c.MustString(key)
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() {
		logger.Get().Panic().Str("key", c.key(key)).Str("value", s).Msg("invalid absolute URL")
	}
	return u
}

// MayString returns the value or def
func (c Conf) MayString(key, def string) string {
	if v := c.get(key); v != "" {
		return v
	}
	return def
}

// MayURL returns an absolute http(s) URL or def
func (c Conf) MayURL(key, def string) string {
	s := c.get(key)
	if s == "" {
		return def
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Msg("invalid http url; using default")
		return def
	}
	return s
}

// MayInt returns the value or def
func (c Conf) MayInt(key string, def int) int {
	s := c.get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Int("default", def).Msg("invalid int; using default")
		return def
	}
	return v
}

// MayBool returns the value or def
func (c Conf) MayBool(key string, def bool) bool {
	s := c.get(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Bool("default", def).Msg("invalid bool; using default")
		return def
	}
	return v
}

// MayDuration parses Go durations such as 250ms or 2s
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	s := c.get(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Dur("default", def).Msg("invalid duration; using default")
		return def
	}
	return d
}

// MayCSV splits a comma separated value, dropping blanks
func (c Conf) MayCSV(key string, def []string) []string {
	out := pstrings.SplitCSV(c.get(key))
	if len(out) == 0 {
		return def
	}
	return out
}

// MayPairs reads "a:b,c:d" into a map; malformed entries are logged and skipped
func (c Conf) MayPairs(key string) map[string]string {
	pairs, bad := pstrings.SplitPairs(c.get(key))
	for _, b := range bad {
		logger.Get().Warn().Str("key", c.key(key)).Str("entry", b).Msg("ignoring malformed pair")
	}
	return pairs
}

// MayEnum returns the value when it is one of allowed (case-insensitive); panics otherwise
func (c Conf) MayEnum(key, def string, allowed ...string) string {
	v := c.MayString(key, def)
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return a
		}
	}
	logger.Get().Panic().Str("key", c.key(key)).Str("value", v).Strs("allowed", allowed).Msg("invalid enum value")
	return ""
}
