package errors

import (
	stderrs "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCodeMapping(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrorCodeInvalidArgument, http.StatusUnprocessableEntity},
		{ErrorCodeValidation, http.StatusBadRequest},
		{ErrorCodeJSON, http.StatusBadRequest},
		{ErrorCodeUnavailable, http.StatusServiceUnavailable},
		{ErrorCodeNotFound, http.StatusNotFound},
		{ErrorCodeDuplicateKey, http.StatusConflict},
		{ErrorCodeDB, http.StatusInternalServerError},
		{ErrorCodePanic, http.StatusInternalServerError},
		{ErrorCodeUnknown, http.StatusInternalServerError},
		{9999, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatusCode(c.code); got != c.want {
			t.Fatalf("HTTPStatusCode(%s) = %d, want %d", c.code, got, c.want)
		}
	}
}

func TestErrorRenderingAndChain(t *testing.T) {
	var nilErr *Error
	if nilErr.Error() != "<nil>" {
		t.Fatalf("nil render = %q", nilErr.Error())
	}

	cause := stderrs.New("connection refused")
	err := WithOp(Wrap(cause, ErrorCodeUnavailable, "lead: post"), "send")
	if got := err.Error(); got != "send: lead: post: connection refused" {
		t.Fatalf("Error() = %q", got)
	}
	if !stderrs.Is(err, cause) || Root(err) != cause {
		t.Fatal("cause lost")
	}

	outer := fmt.Errorf("collector: %w", err)
	if !IsCode(outer, ErrorCodeUnavailable) || HTTPStatus(outer) != http.StatusServiceUnavailable {
		t.Fatalf("code through fmt wrap = %s", CodeOf(outer))
	}
	if CodeOf(cause) != ErrorCodeUnknown {
		t.Fatal("foreign error must be Unknown")
	}
}

func TestWithFieldIsCopyOnWrite(t *testing.T) {
	base := New(ErrorCodeValidation, "bad category")
	withField := WithField(base, "category")
	if e, _ := As(base); e.Field() != "" {
		t.Fatal("WithField mutated the original")
	}
	if w := WireFrom(withField); w.Field != "category" || w.Message != "bad category" {
		t.Fatalf("wire = %+v", w)
	}
	foreign := stderrs.New("x")
	if WithField(foreign, "f") != foreign {
		t.Fatal("foreign errors pass through")
	}
}

func TestValidationfAndHTTP(t *testing.T) {
	err := Validationf("value", "unknown consent value %q", "maybe")
	status, w := HTTP(err)
	if status != http.StatusBadRequest || w.Field != "value" || w.Code != ErrorCodeValidation {
		t.Fatalf("HTTP = %d %+v", status, w)
	}
	if status, w := HTTP(nil); status != http.StatusOK || w != (Wire{}) {
		t.Fatal("nil error maps to 200")
	}
	if WrapIf(nil, ErrorCodeDB, "x") != nil {
		t.Fatal("WrapIf(nil) must be nil")
	}
	if got := WireFrom(stderrs.New("plain")); got.Code != ErrorCodeUnknown || got.Message != "plain" {
		t.Fatalf("foreign wire = %+v", got)
	}
}

func TestCodeNames(t *testing.T) {
	if ErrorCodeInvalidArgument.String() != "invalid_argument" || ErrorCode(999).String() != "unknown" {
		t.Fatal("code names")
	}
}
