// Package raw reads bootstrap env before the logger exists
// it must not import the logger package
package raw

import (
	"os"
	"strconv"
	"strings"
)

// Conf is a prefixed env view, e.g. Prefix("LOG_")
type Conf struct {
	prefix string
	lookup func(string) (string, bool)
}

// New reads the process environment
func New() Conf { return Conf{lookup: os.LookupEnv} }

// FromMap reads from m instead of the environment
func FromMap(m map[string]string) Conf {
	return Conf{lookup: func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}}
}

// Prefix nests a prefix under the current one
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p, lookup: c.lookup} }

func (c Conf) value(key string) string {
	if c.lookup == nil {
		return ""
	}
	v, _ := c.lookup(c.prefix + key)
	return strings.TrimSpace(v)
}

// Get returns the value or def when blank
func (c Conf) Get(key, def string) string {
	if v := c.value(key); v != "" {
		return v
	}
	return def
}

// GetBool accepts 1, true, yes and on; other non-blank values are false
func (c Conf) GetBool(key string, def bool) bool {
	switch v := strings.ToLower(c.value(key)); v {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// GetInt returns a non-negative integer or def
func (c Conf) GetInt(key string, def int) int {
	n, err := strconv.Atoi(c.value(key))
	if err != nil || n < 0 {
		return def
	}
	return n
}
