package lead

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	perr "campaigncollector/internal/platform/errors"

	"github.com/go-playground/validator/v10"
)

func sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func TestHashUserData(t *testing.T) {
	pre := sum("already")
	got := HashUserData(map[string]string{
		"email":       "  Jane@Example.COM ",
		"phone":       "+1 (555) 010-9999",
		"first_name":  "Mary Ann",
		"postal_code": "SW1A 1AA",
		"external_id": strings.ToUpper(pre),
		"password":    "hunter2",
		"city":        "   ",
	})
	want := map[string]string{
		"email":       sum("jane@example.com"),
		"phone":       sum("15550109999"),
		"first_name":  sum("maryann"),
		"postal_code": sum("sw1a1aa"),
		"external_id": pre,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d keys, want %d: %v", len(got), len(want), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s = %s, want %s", k, got[k], v)
		}
	}
	if HashUserData(map[string]string{"ssn": "1"}) != nil {
		t.Fatal("only disallowed keys should yield nil")
	}
}

func TestBuild_Validates(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := Build(Input{
		Event:    "lead",
		UserData: map[string]string{"email": "a@b.co"},
		PageURL:  "https://example.com/signup",
		Campaign: json.RawMessage(`{"last":null}`),
	}, now)
	if p.Timestamp != now.Unix() || p.EventID == "" {
		t.Fatalf("payload = %+v", p)
	}
	if err := validator.New().Struct(p); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if Build(Input{Event: "lead"}, now).EventID == p.EventID {
		t.Fatal("event ids must be unique")
	}
}

type sink struct {
	mu     sync.Mutex
	bodies []Payload
	got    chan struct{}
}

func newSink() *sink { return &sink{got: make(chan struct{}, 16)} }

func (s *sink) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		var p Payload
		_ = json.Unmarshal(b, &p)
		s.mu.Lock()
		s.bodies = append(s.bodies, p)
		s.mu.Unlock()
		w.WriteHeader(status)
		s.got <- struct{}{}
	}
}

func (s *sink) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.got:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestSender_NotConfigured(t *testing.T) {
	s := NewSender(SenderOptions{})
	err := s.Send(context.Background(), Build(Input{Event: "lead"}, time.Now()))
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
	if perr.HTTPStatus(err) != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", perr.HTTPStatus(err))
	}
}

func TestSender_Beacon(t *testing.T) {
	sk := newSink()
	srv := httptest.NewServer(sk.handler(http.StatusNoContent))
	defer srv.Close()

	b := NewBeacon(4, &HTTPTransport{Client: srv.Client()}, nil)
	s := NewSender(SenderOptions{Endpoint: srv.URL, Beacon: b})

	ctx, cancel := context.WithCancel(context.Background())
	p := Build(Input{Event: "signup"}, time.Now())
	if err := s.Send(ctx, p); err != nil {
		t.Fatalf("Send: %v", err)
	}
	cancel() // delivery outlives the request context
	sk.wait(t)
	if err := b.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if sk.bodies[0].EventID != p.EventID {
		t.Fatalf("delivered %+v", sk.bodies[0])
	}
}

func TestSender_FallbackWhenBeaconClosed(t *testing.T) {
	sk := newSink()
	srv := httptest.NewServer(sk.handler(http.StatusOK))
	defer srv.Close()

	b := NewBeacon(1, &HTTPTransport{Client: srv.Client()}, nil)
	if err := b.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if b.Enqueue(context.Background(), srv.URL, nil, nil) {
		t.Fatal("closed beacon accepted work")
	}

	s := NewSender(SenderOptions{Endpoint: srv.URL, Beacon: b, HTTP: &HTTPTransport{Client: srv.Client()}})
	if err := s.Send(context.Background(), Build(Input{Event: "lead"}, time.Now())); err != nil {
		t.Fatalf("Send: %v", err)
	}
	s.Wait()
	sk.wait(t)
}

func TestSender_FailureReportedOnce(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var reported []error
	rep := ReporterFunc(func(_ context.Context, err error, _ *Payload) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	})
	s := NewSender(SenderOptions{Endpoint: srv.URL, HTTP: &HTTPTransport{Client: srv.Client()}, Reporter: rep})
	if err := s.Send(context.Background(), Build(Input{Event: "lead"}, time.Now())); err != nil {
		t.Fatalf("Send: %v", err)
	}
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	if hits != 1 || len(reported) != 1 {
		t.Fatalf("hits=%d reported=%d", hits, len(reported))
	}
	if !perr.IsCode(reported[0], perr.ErrorCodeUnavailable) {
		t.Fatalf("reported %v", reported[0])
	}
	if got := TransportOf(reported[0]); got != "http" {
		t.Fatalf("TransportOf = %q", got)
	}
}

func TestTransportOf_Beacon(t *testing.T) {
	t.Parallel()

	err := beaconErr{err: perr.New(perr.ErrorCodeUnavailable, "lead: post")}
	if got := TransportOf(err); got != "beacon" {
		t.Fatalf("TransportOf = %q", got)
	}
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatal("beacon error should unwrap to its cause")
	}
}

func TestBeacon_FullQueueRefuses(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	b := NewBeacon(1, &HTTPTransport{Client: srv.Client()}, nil)
	ctx := context.Background()
	accepted := 0
	for i := 0; i < 5; i++ {
		if b.Enqueue(ctx, srv.URL, []byte(`{}`), nil) {
			accepted++
		}
	}
	// one in flight at most plus one buffered
	if accepted < 1 || accepted > 2 {
		t.Fatalf("accepted %d", accepted)
	}
}
