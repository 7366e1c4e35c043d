package touchpoint

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// Envelope markers; Encode writes envelopePrefix, Decode accepts all three
const envelopePrefix = "64:"

var envelopePrefixes = []string{"64:", "$:", "base64:"}

var errEmpty = errors.New("touchpoint: empty value")

// Codec serializes records for the storage adapter
type Codec struct {
	// Namespace is the custom bucket key
	Namespace string
	// Base64 wraps the JSON in the "64:" envelope
	Base64 bool
}

// Encode serializes r
func (c Codec) Encode(r *Record) (string, error) {
	rec := *r
	if rec.Namespace == "" {
		rec.Namespace = c.Namespace
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	if !c.Base64 {
		return string(b), nil
	}
	return envelopePrefix + base64.StdEncoding.EncodeToString(b), nil
}

// Decode parses a stored value
// the literal "null" yields (nil, nil); anything unparseable is an error
func (c Codec) Decode(raw string) (*Record, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, errEmpty
	}
	for _, p := range envelopePrefixes {
		if rest, ok := strings.CutPrefix(s, p); ok {
			b, err := decodeBase64(rest)
			if err != nil {
				return nil, err
			}
			s = strings.TrimSpace(string(b))
			break
		}
	}
	if s == "null" {
		return nil, nil
	}
	return unmarshalRecord([]byte(s), c.Namespace)
}

func decodeBase64(s string) ([]byte, error) {
	var firstErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
