// Package anonid mints and persists the anonymous visitor id
// Format: CC.<version>.<unix seconds>.<10 hex chars>
package anonid

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"campaigncollector/internal/core/kv"

	"github.com/google/uuid"
)

// Format constants
const (
	Prefix  = "CC"
	Version = 1

	// MaxAge is the cookie lifetime of the id
	MaxAge = 400 * 24 * time.Hour
)

var pattern = regexp.MustCompile(`^CC\.\d+\.\d+\.[0-9a-f]{10}$`)

// random part seam for tests
var random = func() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// New mints an id stamped with now
func New(now time.Time) string {
	return fmt.Sprintf("%s.%d.%d.%s", Prefix, Version, now.Unix(), random())
}

// Valid reports whether id is well formed
func Valid(id string) bool { return pattern.MatchString(id) }

// Ensure returns the stored id, minting and storing one when absent or malformed
// the entry is rewritten either way so the 400-day window rolls
func Ensure(ctx context.Context, store kv.Store, key string, now time.Time) (id string, created bool, err error) {
	if v, ok := store.Get(ctx, key); ok && Valid(v) {
		id = v
	} else {
		id, created = New(now), true
	}
	return id, created, Save(ctx, store, key, id)
}

// Save stores id with the full lifetime
func Save(ctx context.Context, store kv.Store, key, id string) error {
	return store.Set(ctx, key, id, MaxAge)
}

// Transient returns a fresh id that is never stored, and removes any stored one
func Transient(ctx context.Context, store kv.Store, key string, now time.Time) (string, error) {
	return New(now), Forget(ctx, store, key)
}

// Forget removes the stored id; absent entries are left untouched
func Forget(ctx context.Context, store kv.Store, key string) error {
	if _, ok := store.Get(ctx, key); !ok {
		return nil
	}
	return store.Delete(ctx, key)
}

// IssuedAt extracts the mint time from a valid id
func IssuedAt(id string) (time.Time, bool) {
	if !Valid(id) {
		return time.Time{}, false
	}
	parts := strings.Split(id, ".")
	var sec int64
	if _, err := fmt.Sscan(parts[2], &sec); err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}
