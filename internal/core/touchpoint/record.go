// Package touchpoint holds the first/last attribution records, their storage
// envelope and expiry arithmetic
package touchpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"

	"campaigncollector/internal/core/params"
	perr "campaigncollector/internal/platform/errors"
)

// Name is a touchpoint slot
type Name string

// The only two slots
const (
	First Name = "first"
	Last  Name = "last"
)

// Direct sentinel pair used when no campaign or referrer signal exists
const (
	DirectSource = "(direct)"
	DirectMedium = "(none)"
)

// ParseName validates a slot name
func ParseName(s string) (Name, error) {
	switch Name(s) {
	case First, Last:
		return Name(s), nil
	}
	return "", perr.InvalidArgf("touchpoint: unknown slot %q", s)
}

// Record is one attribution snapshot
// A reference record has Ref set and carries no payload of its own
type Record struct {
	UTM       params.Fields
	Custom    params.Fields
	Namespace string
	CreatedAt int64
	ExpiresAt int64
	Ref       Name
}

// NewDirect returns the default candidate: (direct)/(none) and an empty custom bucket
func NewDirect(ns string) *Record {
	return &Record{
		UTM:       params.Fields{"source": DirectSource, "medium": DirectMedium},
		Custom:    params.Fields{},
		Namespace: ns,
	}
}

// Reference returns a record pointing at target
func Reference(target Name, ns string) *Record {
	return &Record{Ref: target, Namespace: ns}
}

// IsReference reports whether r points at another slot
func (r *Record) IsReference() bool { return r != nil && r.Ref != "" }

// Expired reports whether the record's expiry has passed at now (epoch seconds)
// a record without expiry never expires
func (r *Record) Expired(now int64) bool {
	return r != nil && r.ExpiresAt > 0 && now >= r.ExpiresAt
}

// IsDirect reports whether the utm pair is the direct sentinel
func (r *Record) IsDirect() bool {
	return r != nil && r.UTM["source"] == DirectSource
}

// Clone copies r structurally
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.UTM = maps.Clone(r.UTM)
	c.Custom = maps.Clone(r.Custom)
	return &c
}

// SameContent compares payloads and reference, ignoring timestamps
func (r *Record) SameContent(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.Ref == o.Ref && maps.Equal(r.UTM, o.UTM) && maps.Equal(r.Custom, o.Custom)
}

// Flatten returns "<ns>_<field>" keys for both buckets
func (r *Record) Flatten() map[string]string {
	out := map[string]string{}
	if r == nil {
		return out
	}
	for k, v := range r.UTM {
		out[params.UTM+"_"+k] = v
	}
	for k, v := range r.Custom {
		out[r.ns()+"_"+k] = v
	}
	return out
}

func (r *Record) ns() string {
	if r.Namespace == "" {
		return params.DefaultNamespace
	}
	return r.Namespace
}

// MarshalJSON writes {"utm":{},"<ns>":{},"$set":n,"$exp":n} or, for a reference,
// {"$ref":"first","$set":n,"$exp":n}
func (r Record) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	if r.Ref != "" {
		b.WriteString(`"$ref":`)
		b.WriteString(strconv.Quote(string(r.Ref)))
	} else {
		if err := writeBucket(&b, params.UTM, r.UTM); err != nil {
			return nil, err
		}
		b.WriteByte(',')
		if err := writeBucket(&b, r.ns(), r.Custom); err != nil {
			return nil, err
		}
	}
	fmt.Fprintf(&b, `,"$set":%d,"$exp":%d}`, r.CreatedAt, r.ExpiresAt)
	return b.Bytes(), nil
}

func writeBucket(b *bytes.Buffer, key string, f params.Fields) error {
	if f == nil {
		f = params.Fields{}
	}
	k, _ := json.Marshal(key)
	v, err := json.Marshal(f)
	if err != nil {
		return err
	}
	b.Write(k)
	b.WriteByte(':')
	b.Write(v)
	return nil
}

var (
	createdKeys = []string{"$set", "_set", "_started_at"}
	expiresKeys = []string{"$exp", "_exp", "_expires_at"}
	refKeys     = []string{"$ref", "_ref"}
)

// unmarshalRecord decodes any historical key spelling
// ns names the custom bucket; when empty the first non-meta object key is used
func unmarshalRecord(data []byte, ns string) (*Record, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	r := &Record{Namespace: ns}

	var err error
	if r.CreatedAt, err = firstInt(raw, createdKeys); err != nil {
		return nil, err
	}
	if r.ExpiresAt, err = firstInt(raw, expiresKeys); err != nil {
		return nil, err
	}
	for _, k := range refKeys {
		if v, ok := raw[k]; ok {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return nil, fmt.Errorf("reference: %w", err)
			}
			r.Ref = Name(s)
			break
		}
	}

	if v, ok := raw[params.UTM]; ok {
		if r.UTM, err = decodeBucket(v); err != nil {
			return nil, fmt.Errorf("utm: %w", err)
		}
	}
	if r.Namespace == "" {
		for k, v := range raw {
			if k != params.UTM && !isMeta(k) && len(v) > 0 && v[0] == '{' {
				r.Namespace = k
				break
			}
		}
	}
	if v, ok := raw[r.Namespace]; ok && r.Namespace != "" {
		if r.Custom, err = decodeBucket(v); err != nil {
			return nil, fmt.Errorf("%s: %w", r.Namespace, err)
		}
	}
	if r.Ref == "" {
		if r.UTM == nil {
			r.UTM = params.Fields{}
		}
		if r.Custom == nil {
			r.Custom = params.Fields{}
		}
	}
	return r, nil
}

func isMeta(k string) bool {
	return k != "" && (k[0] == '$' || k[0] == '_')
}

func firstInt(raw map[string]json.RawMessage, keys []string) (int64, error) {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || string(v) == "null" {
			continue
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err != nil {
			return 0, fmt.Errorf("%s: %w", k, err)
		}
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%s: %w", k, err)
		}
		return int64(f), nil
	}
	return 0, nil
}

// decodeBucket accepts string, number and bool leaves; others are dropped
func decodeBucket(v json.RawMessage) (params.Fields, error) {
	if string(v) == "null" {
		return params.Fields{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(v, &m); err != nil {
		return nil, err
	}
	out := make(params.Fields, len(m))
	for k, val := range m {
		switch t := val.(type) {
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		}
	}
	return out, nil
}
