package accessor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"campaigncollector/internal/core/kv"
	"campaigncollector/internal/core/params"
	"campaigncollector/internal/core/touchpoint"
	perr "campaigncollector/internal/platform/errors"

	"github.com/google/go-cmp/cmp"
)

func fixture(t *testing.T) (*touchpoint.Store, *kv.Memory) {
	t.Helper()
	ctx := context.Background()
	mem := kv.NewMemory()
	now := time.Unix(1_700_000_000, 0)
	s := touchpoint.NewStore(mem, touchpoint.Config{Now: func() time.Time { return now }})
	if _, err := s.Set(ctx, touchpoint.First, &touchpoint.Record{
		UTM:    params.Fields{"source": "google", "medium": "cpc", "campaign": "Spring"},
		Custom: params.Fields{"ad": "42"},
	}); err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Minute)
	if _, err := s.Set(ctx, touchpoint.Last, touchpoint.Reference(touchpoint.First, "lvl")); err != nil {
		t.Fatal(err)
	}
	_ = mem.Set(ctx, "_fbp", "fb.1.123", 0)
	_ = mem.Set(ctx, "_ga", "GA1.1.999", 0)
	return s, mem
}

func TestAssemble_AllSections(t *testing.T) {
	s, mem := fixture(t)
	a := New(Config{Cookies: []string{"_fbp", "_ga", "_missing"}, Globals: []string{"app.user", "app.none"}}, Sources{
		Params:  params.Set{params.UTM: {}, params.Stray: {"page": "2"}},
		Store:   s,
		Cookies: mem,
		Globals: func(path string) (any, bool) {
			if path == "app.user" {
				return "u-1", true
			}
			return nil, false
		},
	})

	snap := a.Assemble(context.Background(), Options{})
	for _, sec := range Sections {
		if !snap.Included(sec) {
			t.Fatalf("section %s missing", sec)
		}
	}
	if !snap.Last.IsReference() {
		t.Fatal("last should stay a reference without Dereference")
	}
	if diff := cmp.Diff(map[string]string{"_fbp": "fb.1.123", "_ga": "GA1.1.999"}, snap.Cookies); diff != "" {
		t.Fatalf("cookies (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"app.user": "u-1"}, snap.Globals); diff != "" {
		t.Fatalf("globals (-want +got):\n%s", diff)
	}
}

func TestAssemble_Dereference(t *testing.T) {
	s, _ := fixture(t)
	ref := s.Get(context.Background(), touchpoint.Last)
	snap := New(Config{}, Sources{Store: s}).Assemble(context.Background(), Options{Dereference: true})
	if snap.Last.IsReference() || snap.Last.UTM["campaign"] != "Spring" {
		t.Fatalf("dereferenced last = %+v", snap.Last)
	}
	if snap.Last.CreatedAt != ref.CreatedAt || snap.Last.ExpiresAt != ref.ExpiresAt {
		t.Fatal("reference timestamps must take precedence")
	}
	if snap.First.CreatedAt == ref.CreatedAt {
		t.Fatal("first keeps its own timestamps")
	}
}

func TestAssemble_Without(t *testing.T) {
	s, _ := fixture(t)
	snap := New(Config{}, Sources{Store: s}).Assemble(context.Background(), Options{
		Without: []Section{SectionParams, SectionGlobals, SectionCookies},
	})
	js, err := snap.JSON()
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(js), &m); err != nil {
		t.Fatal(err)
	}
	if len(m) != 2 || m["first"] == nil || m["last"] == nil {
		t.Fatalf("keys = %v", js)
	}
	if !strings.HasPrefix(js, `{"first":`) {
		t.Fatalf("order: %s", js)
	}
}

func TestAssemble_EmptyTouchpointsAreNull(t *testing.T) {
	s := touchpoint.NewStore(kv.NewMemory(), touchpoint.Config{})
	js, _ := New(Config{}, Sources{Store: s}).Assemble(context.Background(), Options{
		Without: []Section{SectionParams, SectionGlobals, SectionCookies},
	}).JSON()
	if js != `{"first":null,"last":null}` {
		t.Fatalf("json = %s", js)
	}
}

func TestAssemble_FiltersContained(t *testing.T) {
	s, mem := fixture(t)
	a := New(Config{
		Cookies: []string{"_fbp", "_ga"},
		Globals: []string{"a", "b"},
		Filters: map[string]Filter{
			"_fbp":       func(v any) (any, error) { return strings.ToUpper(v.(string)), nil },
			"_ga":        func(any) (any, error) { panic("boom") },
			"a":          func(any) (any, error) { return nil, errors.New("nope") },
			"utm_source": func(v any) (any, error) { return "src:" + v.(string), nil },
		},
	}, Sources{
		Store:   s,
		Cookies: mem,
		Globals: func(path string) (any, bool) { return path + "-value", true },
	})

	snap := a.Assemble(context.Background(), Options{ApplyFilters: true, Dereference: true})
	if snap.Cookies["_fbp"] != "FB.1.123" {
		t.Fatalf("_fbp = %q", snap.Cookies["_fbp"])
	}
	if snap.Cookies["_ga"] != "GA1.1.999" {
		t.Fatalf("panicking cookie filter must keep raw value, got %q", snap.Cookies["_ga"])
	}
	if _, ok := snap.Globals["a"]; ok {
		t.Fatal("failing global filter must omit the value")
	}
	if snap.Globals["b"] != "b-value" {
		t.Fatalf("unfiltered global = %v", snap.Globals["b"])
	}
	if snap.Last.UTM["source"] != "src:google" {
		t.Fatalf("touchpoint filter not applied: %v", snap.Last.UTM)
	}

	plain := a.Assemble(context.Background(), Options{})
	if plain.Cookies["_fbp"] != "fb.1.123" {
		t.Fatal("filters must only run when requested")
	}
}

func TestAssemble_PanickingGlobalResolver(t *testing.T) {
	a := New(Config{Globals: []string{"x"}}, Sources{Globals: func(string) (any, bool) { panic("host") }})
	snap := a.Assemble(context.Background(), Options{})
	if len(snap.Globals) != 0 {
		t.Fatalf("globals = %v", snap.Globals)
	}
}

func TestGrab_AsJSON(t *testing.T) {
	s, _ := fixture(t)
	out, err := New(Config{}, Sources{Store: s}).Grab(context.Background(), Options{AsJSON: true, Without: []Section{SectionFirst}})
	if err != nil {
		t.Fatal(err)
	}
	js, ok := out.(string)
	if !ok || !strings.Contains(js, `"$ref":"first"`) {
		t.Fatalf("Grab = %#v", out)
	}
}

func TestParseSections(t *testing.T) {
	got, err := ParseSections("params, globals,,")
	if err != nil || len(got) != 2 || got[1] != SectionGlobals {
		t.Fatalf("ParseSections = %v, %v", got, err)
	}
	if _, err := ParseSections("params,nope"); !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("err = %v", err)
	}
}
