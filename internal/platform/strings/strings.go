// Package strings holds small string helpers shared by config and modules
package strings

import std "strings"

// IfEmpty returns def when in is empty
func IfEmpty[T any](in []T, def []T) []T {
	if len(in) == 0 {
		return def
	}
	return in
}

// MustString returns s or panics naming what was missing
func MustString(s string, name string) string {
	if std.TrimSpace(s) == "" {
		panic(name + " is required")
	}
	return s
}

// MustPrefix normalizes a mount path to a single leading slash and no trailing slash
// the root path "/" is returned as is; blank input panics
func MustPrefix(p string) string {
	p = std.TrimSpace(p)
	if p == "" {
		panic("prefix is required")
	}
	p = "/" + std.Trim(p, "/")
	return p
}

// SplitCSV splits on commas, trims each part and drops blanks
func SplitCSV(s string) []string {
	if std.TrimSpace(s) == "" {
		return nil
	}
	parts := std.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := std.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// SplitPairs parses "a:b,c:d"; entries without a colon or with a blank side are returned in bad
func SplitPairs(s string) (pairs map[string]string, bad []string) {
	for _, entry := range SplitCSV(s) {
		k, v, ok := std.Cut(entry, ":")
		k, v = std.TrimSpace(k), std.TrimSpace(v)
		if !ok || k == "" || v == "" {
			bad = append(bad, entry)
			continue
		}
		if pairs == nil {
			pairs = make(map[string]string)
		}
		pairs[k] = v
	}
	return pairs, bad
}

// FirstNonEmpty returns the first non-blank value
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if std.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
