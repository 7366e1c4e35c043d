package kv

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestCookieJar_SetWritesAttributes(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "https://shop.example.com/", nil)
	w := httptest.NewRecorder()
	j := NewCookieJar(w, r, CookieOptions{Domain: "example.com", Secure: true})

	if err := j.Set(context.Background(), "_lvl_last", "64:eyJ1dG0iOnt9fQ==", 30*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got := w.Header().Get("Set-Cookie")
	for _, part := range []string{"_lvl_last=64:eyJ1dG0iOnt9fQ==", "Path=/", "Domain=example.com", "Max-Age=1800", "Secure", "SameSite=Lax"} {
		if !strings.Contains(got, part) {
			t.Fatalf("Set-Cookie %q missing %q", got, part)
		}
	}
}

func TestCookieJar_ReadsRequestAndOverlay(t *testing.T) {
	ctx := context.Background()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "a", Value: "1"})
	r.AddCookie(&http.Cookie{Name: "b", Value: "2"})
	j := NewCookieJar(httptest.NewRecorder(), r, CookieOptions{})

	if v, ok := j.Get(ctx, "a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}
	_ = j.Set(ctx, "a", "3", 0)
	if v, _ := j.Get(ctx, "a"); v != "3" {
		t.Fatalf("overlay not visible, got %q", v)
	}
	_ = j.Delete(ctx, "b")
	if _, ok := j.Get(ctx, "b"); ok {
		t.Fatal("deleted cookie still visible")
	}
	names := j.Names()
	slices.Sort(names)
	if !slices.Equal(names, []string{"a"}) {
		t.Fatalf("Names = %v", names)
	}
}

func TestCookieJar_DeleteExpires(t *testing.T) {
	w := httptest.NewRecorder()
	j := NewCookieJar(w, httptest.NewRequest(http.MethodGet, "/", nil), CookieOptions{})
	_ = j.Delete(context.Background(), "_lvl_last")
	if got := w.Header().Get("Set-Cookie"); !strings.Contains(got, "Max-Age=0") {
		t.Fatalf("Set-Cookie = %q, want Max-Age=0", got)
	}
}

func TestCookieJar_EscapesUnsafeValues(t *testing.T) {
	ctx := context.Background()
	w := httptest.NewRecorder()
	raw := `{"utm":{"source":"a b"},"$set":1}`
	_ = NewCookieJar(w, httptest.NewRequest(http.MethodGet, "/", nil), CookieOptions{}).Set(ctx, "k", raw, 0)

	res := w.Result()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range res.Cookies() {
		r.AddCookie(c)
	}
	if got, ok := NewCookieJar(nil, r, CookieOptions{}).Get(ctx, "k"); !ok || got != raw {
		t.Fatalf("round trip = %q, %v", got, ok)
	}
}

func TestScoped_MemoryTable(t *testing.T) {
	ctx := context.Background()
	tbl := NewMemoryTable()
	a := NewScoped(tbl, "visitor-a", nil)
	b := NewScoped(tbl, "visitor-b", nil)

	_ = a.Set(ctx, "k", "va", time.Hour)
	_ = b.Set(ctx, "k", "vb", time.Hour)
	if v, _ := a.Get(ctx, "k"); v != "va" {
		t.Fatalf("a = %q", v)
	}
	if v, _ := b.Get(ctx, "k"); v != "vb" {
		t.Fatalf("b = %q", v)
	}
	_ = a.Delete(ctx, "k")
	if _, ok := a.Get(ctx, "k"); ok {
		t.Fatal("a still present")
	}
	if tbl.Len("visitor-b") != 1 || tbl.Len("visitor-a") != 0 {
		t.Fatal("partition leak")
	}
}

type failingTable struct{}

func (failingTable) Get(context.Context, string, string) (string, bool, error) {
	return "", false, errors.New("down")
}

func (failingTable) Put(context.Context, string, string, string) error { return errors.New("down") }

func (failingTable) Delete(context.Context, string, string) error { return errors.New("down") }

func TestScoped_ReportsTableErrors(t *testing.T) {
	var ops []string
	s := NewScoped(failingTable{}, "o", func(op, key string, err error) { ops = append(ops, op+":"+key) })
	if _, ok := s.Get(context.Background(), "k"); ok {
		t.Fatal("error must read as absent")
	}
	if err := s.Set(context.Background(), "k", "v", 0); err == nil {
		t.Fatal("Set should return table error")
	}
	if !slices.Equal(ops, []string{"get:k", "put:k"}) {
		t.Fatalf("ops = %v", ops)
	}
}

func TestMemory_RecordsMaxAge(t *testing.T) {
	m := NewMemory()
	_ = m.Set(context.Background(), "k", "v", time.Minute)
	if m.MaxAge("k") != time.Minute {
		t.Fatalf("MaxAge = %v", m.MaxAge("k"))
	}
	if snap := m.Snapshot(); snap["k"] != "v" {
		t.Fatalf("Snapshot = %v", snap)
	}
	if !KindLocal.Valid() || Kind("session").Valid() {
		t.Fatal("Kind.Valid")
	}
}
