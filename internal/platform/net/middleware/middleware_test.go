package middleware_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pnet "campaigncollector/internal/platform/net"
	"campaigncollector/internal/platform/net/middleware"

	"github.com/go-chi/chi/v5"
)

func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func TestCorrelate_EchoesRequestID(t *testing.T) {
	var seen string
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = pnet.RequestID(r.Context())
	}), middleware.RequestID(), middleware.Correlate())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if seen != "req-42" || rr.Header().Get("X-Request-ID") != "req-42" {
		t.Fatalf("seen=%q header=%q", seen, rr.Header().Get("X-Request-ID"))
	}
}

func TestRecoverJSON(t *testing.T) {
	h := middleware.RecoverJSON(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["error"] != "internal error" {
		t.Fatalf("body = %v", body)
	}
}

func TestRecoverJSON_AbortHandlerPropagates(t *testing.T) {
	h := middleware.RecoverJSON(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if v := recover(); v != http.ErrAbortHandler {
			t.Fatalf("recovered %v", v)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestAccessLog_ObservesRoutePattern(t *testing.T) {
	type obs struct {
		method, route string
		status        int
	}
	var got []obs
	r := chi.NewRouter()
	r.Use(middleware.AccessLogZerolog(middleware.AccessLogOptions{
		Slow: time.Nanosecond,
		Observe: func(method, route string, status int, _ time.Duration) {
			got = append(got, obs{method, route, status})
		},
	}))
	r.Post("/api/v1/collect/consent", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "ok")
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/collect/consent", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rr.Code != http.StatusCreated || rr.Body.String() != "ok" {
		t.Fatalf("pass-through: %d %q", rr.Code, rr.Body.String())
	}
	if len(got) != 2 {
		t.Fatalf("observed %d", len(got))
	}
	if got[0] != (obs{"POST", "/api/v1/collect/consent", 201}) {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].route != "unmatched" || got[1].status != http.StatusNotFound {
		t.Fatalf("second = %+v", got[1])
	}
}

func TestCORS_CredentialedPreflight(t *testing.T) {
	h := middleware.CORS(middleware.CORSOptions{
		AllowedOrigins:   []string{"https://shop.example.com"},
		AllowCredentials: true,
	})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/collect/hydrate", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Header().Get("Access-Control-Allow-Origin") != "https://shop.example.com" {
		t.Fatalf("allow-origin = %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("credentials not allowed")
	}
}

func TestDefaults_NotEmpty(t *testing.T) {
	if len(middleware.Defaults(middleware.AccessLogOptions{})) == 0 {
		t.Fatal("no default middleware")
	}
}
