package referrer

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// MediumReferral is assigned to any external referrer that matches no rule
const MediumReferral = "referral"

// Classification is a referrer's source/medium pair
type Classification struct {
	Source string `json:"source"`
	Medium string `json:"medium"`
}

// Classifier is immutable and safe for concurrent use
type Classifier struct {
	table *Table
}

// New returns a Classifier over t, the embedded default table when nil
func New(t *Table) *Classifier {
	if t == nil {
		t = Default()
	}
	return &Classifier{table: t}
}

// Mediums lists the table's group mediums in scan order
func (c *Classifier) Mediums() []string { return c.table.Mediums() }

// Classify maps a referrer URL to a Classification
// ok is false for an empty or unparseable referrer and for one whose hostname
// contains storageDomain; the caller then falls back to direct.
// An empty storageDomain disables the same-site check.
func (c *Classifier) Classify(ref, storageDomain string) (Classification, bool) {
	host := Hostname(ref)
	if host == "" {
		return Classification{}, false
	}
	if d := strings.ToLower(strings.TrimPrefix(storageDomain, ".")); d != "" && strings.Contains(host, d) {
		return Classification{}, false
	}
	if src, medium, ok := c.table.Match(host); ok {
		return Classification{Source: src, Medium: medium}, true
	}
	return Classification{Source: host, Medium: MediumReferral}, true
}

// Hostname extracts the lowercased hostname from a referrer, "" when there is none
func Hostname(ref string) string {
	ref = strings.TrimSpace(ref)
	switch ref {
	case "", "null", "undefined":
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if u.Host == "" && u.Scheme == "" {
		// bare hostnames are accepted, e.g. "t.co"
		if u, err = url.Parse("//" + ref); err != nil {
			return ""
		}
	}
	return strings.ToLower(u.Hostname())
}

// RootDomain returns the registrable domain for host, used as the storage domain
// when none is configured: "a.b.example.co.uk" -> "example.co.uk".
// localhost, IP addresses and single-label hosts yield "".
func RootDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" || host == "localhost" || net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return ""
	}
	root, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return root
}
