// Package consent tracks the visitor's consent categories and decides whether
// attribution data may be stored
package consent

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"campaigncollector/internal/core/kv"
	perr "campaigncollector/internal/platform/errors"
)

// Category is a consent category
type Category string

// Categories
const (
	AdStorage              Category = "ad_storage"
	AnalyticsStorage       Category = "analytics_storage"
	AdUserData             Category = "ad_user_data"
	AdPersonalization      Category = "ad_personalization"
	FunctionalityStorage   Category = "functionality_storage"
	PersonalizationStorage Category = "personalization_storage"
	SecurityStorage        Category = "security_storage"
)

// Categories lists every accepted category
var Categories = []Category{
	AdStorage,
	AnalyticsStorage,
	AdUserData,
	AdPersonalization,
	FunctionalityStorage,
	PersonalizationStorage,
	SecurityStorage,
}

// Value is a consent value; Unset is the null state
type Value string

// Values
const (
	Granted Value = "granted"
	Denied  Value = "denied"
	Unset   Value = "null"
)

// MaxAge of the persisted consent entry
const MaxAge = 400 * 24 * time.Hour

// ParseCategory validates a category name
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !slices.Contains(Categories, c) {
		return "", perr.WithField(perr.Newf(perr.ErrorCodeValidation, "unknown consent category %q", s), "category")
	}
	return c, nil
}

// ParseValue validates a consent value; "" reads as Unset
func ParseValue(s string) (Value, error) {
	switch Value(s) {
	case Granted, Denied, Unset:
		return Value(s), nil
	case "":
		return Unset, nil
	}
	return "", perr.WithField(perr.Newf(perr.ErrorCodeValidation, "invalid consent value %q", s), "value")
}

// State is the per-visitor consent map; unset categories are absent
type State map[Category]Value

// Get returns the category's value, Unset when absent
func (s State) Get(c Category) Value {
	if v, ok := s[c]; ok {
		return v
	}
	return Unset
}

// Update validates and applies one change; Unset removes the category
func (s State) Update(category, value string) error {
	c, err := ParseCategory(category)
	if err != nil {
		return err
	}
	v, err := ParseValue(value)
	if err != nil {
		return err
	}
	if v == Unset {
		delete(s, c)
		return nil
	}
	s[c] = v
	return nil
}

// StorageAllowed reports whether attribution records may be persisted:
// a denied analytics_storage always blocks; with requireConsent it must be granted
func (s State) StorageAllowed(requireConsent bool) bool {
	switch s.Get(AnalyticsStorage) {
	case Denied:
		return false
	case Granted:
		return true
	}
	return !requireConsent
}

// Load reads the persisted state; a missing or unreadable entry is empty
func Load(ctx context.Context, store kv.Store, key string) State {
	st := State{}
	raw, ok := store.Get(ctx, key)
	if !ok || raw == "" {
		return st
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return st
	}
	for k, v := range m {
		_ = st.Update(k, v)
	}
	return st
}

// Save persists the state under key
func (s State) Save(ctx context.Context, store kv.Store, key string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "consent: encode")
	}
	return store.Set(ctx, key, string(b), MaxAge)
}
