package kv

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CookieOptions are the attributes written on every cookie
type CookieOptions struct {
	// Domain is the storage domain, omitted when empty
	Domain string
	// Secure sets the Secure attribute
	Secure bool
	// SameSite defaults to Lax
	SameSite http.SameSite
}

// CookieJar is a Store over one request/response pair
// writes are mirrored into an overlay so later reads in the same evaluation
// observe them, the way a browser cookie jar would
type CookieJar struct {
	r       *http.Request
	w       http.ResponseWriter
	opt     CookieOptions
	overlay map[string]*string
}

// NewCookieJar binds a jar to one request; w may be nil for read-only use
func NewCookieJar(w http.ResponseWriter, r *http.Request, opt CookieOptions) *CookieJar {
	if opt.SameSite == 0 {
		opt.SameSite = http.SameSiteLaxMode
	}
	return &CookieJar{r: r, w: w, opt: opt, overlay: map[string]*string{}}
}

// Get implements Store
func (j *CookieJar) Get(_ context.Context, key string) (string, bool) {
	if v, ok := j.overlay[key]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	if j.r == nil {
		return "", false
	}
	c, err := j.r.Cookie(key)
	if err != nil {
		return "", false
	}
	return decodeCookie(c.Value), true
}

// Set implements Store
func (j *CookieJar) Set(_ context.Context, key, value string, maxAge time.Duration) error {
	v := value
	j.overlay[key] = &v
	c := j.cookie(key, encodeCookie(value))
	if maxAge > 0 {
		c.MaxAge = int(maxAge / time.Second)
		c.Expires = time.Now().Add(maxAge).UTC()
	}
	j.write(c)
	return nil
}

// Delete implements Store; the cookie is expired with Max-Age=0
func (j *CookieJar) Delete(_ context.Context, key string) error {
	j.overlay[key] = nil
	c := j.cookie(key, "")
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	j.write(c)
	return nil
}

// Names lists cookie names visible to this evaluation
func (j *CookieJar) Names() []string {
	seen := map[string]bool{}
	var out []string
	if j.r != nil {
		for _, c := range j.r.Cookies() {
			if _, shadowed := j.overlay[c.Name]; !seen[c.Name] && !shadowed {
				seen[c.Name] = true
				out = append(out, c.Name)
			}
		}
	}
	for k, v := range j.overlay {
		if v != nil && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func (j *CookieJar) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   j.opt.Domain,
		Secure:   j.opt.Secure,
		SameSite: j.opt.SameSite,
	}
}

func (j *CookieJar) write(c *http.Cookie) {
	if j.w == nil {
		return
	}
	http.SetCookie(j.w, c)
}

// cookie-octet minus '%', which is reserved for escaped values
func cookieSafe(s string) bool {
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b <= 0x20 || b >= 0x7f || b == '"' || b == ',' || b == ';' || b == '\\' || b == '%' {
			return false
		}
	}
	return true
}

func encodeCookie(v string) string {
	if cookieSafe(v) {
		return v
	}
	return url.PathEscape(v)
}

// safe values never carry '%', so its presence marks an escaped value
func decodeCookie(v string) string {
	if !strings.Contains(v, "%") {
		return v
	}
	d, err := url.PathUnescape(v)
	if err != nil {
		return v
	}
	return d
}
