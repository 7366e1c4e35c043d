// Package lead builds the lead payload and delivers it to the first-party endpoint
package lead

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Payload is what the collector posts to the lead endpoint
type Payload struct {
	EventID     string            `json:"event_id" validate:"required,uuid"`
	Event       string            `json:"event" validate:"required,max=64"`
	Timestamp   int64             `json:"timestamp" validate:"required,gt=0"`
	PageURL     string            `json:"page_url,omitempty" validate:"omitempty,url,max=2048"`
	AnonymousID string            `json:"anonymous_id,omitempty" validate:"omitempty,max=64"`
	Properties  map[string]any    `json:"properties,omitempty"`
	UserData    map[string]string `json:"user_data,omitempty" validate:"omitempty,dive,keys,oneof=email phone first_name last_name city region postal_code country external_id,endkeys,len=64,hexadecimal"`
	Consent     map[string]string `json:"consent,omitempty"`
	Campaign    json.RawMessage   `json:"campaign,omitempty"`
}

// UserDataKeys is the allow-list of user-data fields
var UserDataKeys = []string{
	"email",
	"phone",
	"first_name",
	"last_name",
	"city",
	"region",
	"postal_code",
	"country",
	"external_id",
}

// Input is the caller-supplied part of a payload
type Input struct {
	Event       string
	Properties  map[string]any
	UserData    map[string]string
	PageURL     string
	AnonymousID string
	Consent     map[string]string
	Campaign    json.RawMessage
}

// Build stamps an id and time onto in and hashes its user data
func Build(in Input, now time.Time) *Payload {
	return &Payload{
		EventID:     uuid.NewString(),
		Event:       in.Event,
		Timestamp:   now.Unix(),
		PageURL:     in.PageURL,
		AnonymousID: in.AnonymousID,
		Properties:  in.Properties,
		UserData:    HashUserData(in.UserData),
		Consent:     in.Consent,
		Campaign:    in.Campaign,
	}
}

var (
	hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)
	nonDigit  = regexp.MustCompile(`[^0-9]`)
)

// HashUserData keeps allow-listed keys and replaces each value with the
// SHA-256 hex digest of its normalized form; values already hashed pass through
func HashUserData(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for _, k := range UserDataKeys {
		v, ok := in[k]
		if !ok {
			continue
		}
		n := normalize(k, v)
		if n == "" {
			continue
		}
		if hexDigest.MatchString(n) {
			out[k] = n
			continue
		}
		sum := sha256.Sum256([]byte(n))
		out[k] = hex.EncodeToString(sum[:])
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalize(key, v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	switch key {
	case "phone":
		return nonDigit.ReplaceAllString(v, "")
	case "first_name", "last_name", "city", "region":
		return strings.Join(strings.Fields(v), "")
	case "postal_code":
		return strings.ReplaceAll(v, " ", "")
	}
	return v
}
