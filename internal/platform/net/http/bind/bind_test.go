package bind

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	perr "campaigncollector/internal/platform/errors"
)

type consentBody struct {
	Category string `json:"category" validate:"required,field_key"`
	Value    string `json:"value" validate:"required,oneof=granted denied null"`
}

type leadBody struct {
	Event string `json:"event" validate:"required,event_name,max=64"`
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestParseJSON_OK(t *testing.T) {
	got, err := ParseJSON[consentBody](post(`{"category":"analytics_storage","value":"denied"}`))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if got.Category != "analytics_storage" || got.Value != "denied" {
		t.Fatalf("got %+v", got)
	}
}

func TestParseJSON_Failures(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		code  perr.ErrorCode
		field string
	}{
		{"empty", ``, perr.ErrorCodeJSON, ""},
		{"broken", `{`, perr.ErrorCodeJSON, ""},
		{"unknown field", `{"category":"ad_storage","value":"granted","extra":1}`, perr.ErrorCodeJSON, ""},
		{"trailing", `{"category":"ad_storage","value":"granted"} {}`, perr.ErrorCodeJSON, ""},
		{"missing", `{"value":"granted"}`, perr.ErrorCodeValidation, "category"},
		{"bad key", `{"category":"Ad Storage","value":"granted"}`, perr.ErrorCodeValidation, "category"},
		{"bad enum", `{"category":"ad_storage","value":"maybe"}`, perr.ErrorCodeValidation, "value"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseJSON[consentBody](post(c.body))
			if !perr.IsCode(err, c.code) {
				t.Fatalf("code = %s (%v), want %s", perr.CodeOf(err), err, c.code)
			}
			if c.field != "" {
				if e, _ := perr.As(err); e.Field() != c.field {
					t.Fatalf("field = %q, want %q", e.Field(), c.field)
				}
			}
		})
	}
}

func TestParseJSON_Options(t *testing.T) {
	if _, err := ParseJSON[leadBody](post(``), Options{AllowEmptyBody: true}); err != nil {
		t.Fatalf("empty allowed: %v", err)
	}
	got, err := ParseJSON[leadBody](post(`{"event":"signup","source":"x"}`), Options{AllowUnknown: true})
	if err != nil || got.Event != "signup" {
		t.Fatalf("unknown allowed: %+v %v", got, err)
	}
	_, err = ParseJSON[leadBody](post(`{"event":"`+strings.Repeat("a", 100)+`"}`), Options{MaxBytes: 16})
	if !perr.IsCode(err, perr.ErrorCodeJSON) {
		t.Fatalf("oversized body: %v", err)
	}
}

func TestStruct_TranslatedMessage(t *testing.T) {
	err := Struct(leadBody{Event: strings.Repeat("a", 65)})
	if err == nil || !strings.Contains(err.Error(), "event must be at most 64") {
		t.Fatalf("message = %v", err)
	}
	if err := Struct(leadBody{Event: "Form Submit"}); !strings.Contains(err.Error(), "lowercase event name") {
		t.Fatalf("custom message = %v", err)
	}
	if Struct(leadBody{Event: "form_submit"}) != nil {
		t.Fatal("valid event rejected")
	}
}
