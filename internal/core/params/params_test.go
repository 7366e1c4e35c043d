package params

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestExtract_Namespaces(t *testing.T) {
	e := New(Options{})
	u := mustURL(t, "https://example.com/?utm_source=google&utm_medium=cpc&utm_campaign=LVL_Test"+
		"&utm_bogus=1&lvl_platform=google&lvl_campaign=987&lvl_nope=x&gclid=abc&page=2")

	got := e.Extract(u)
	want := Set{
		UTM:   {"source": "google", "medium": "cpc", "campaign": "LVL_Test"},
		"lvl": {"platform": "google", "campaign": "987"},
		Stray: {"gclid": "abc", "page": "2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Extract mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_EmptyQueryHasBuckets(t *testing.T) {
	e := New(Options{Namespace: "cc"})
	got := e.Extract(mustURL(t, "https://example.com/"))
	for _, ns := range []string{UTM, "cc", Stray} {
		if b, ok := got[ns]; !ok || len(b) != 0 {
			t.Fatalf("bucket %q = %v, present=%v", ns, b, ok)
		}
	}
	if e.Namespace() != "cc" {
		t.Fatalf("Namespace = %q", e.Namespace())
	}
}

func TestExtract_NilURL(t *testing.T) {
	got := New(Options{}).Extract(nil)
	if len(got.Bucket(UTM)) != 0 || len(got.Bucket(Stray)) != 0 {
		t.Fatalf("expected empty set, got %v", got)
	}
}

func TestExtract_ValuesSanitized(t *testing.T) {
	e := New(Options{})
	got := e.Extract(mustURL(t, "https://example.com/?utm_source=%3Cb%3Egoogle%3C%2Fb%3E&utm_campaign=spring%3Bsale"))
	if got[UTM]["source"] != "google" {
		t.Fatalf("source = %q", got[UTM]["source"])
	}
	if got[UTM]["campaign"] != "springsale" {
		t.Fatalf("campaign = %q", got[UTM]["campaign"])
	}
}

func TestExtract_LastDuplicateWins(t *testing.T) {
	got := New(Options{}).Extract(mustURL(t, "https://example.com/?utm_source=a&utm_source=b"))
	if got[UTM]["source"] != "b" {
		t.Fatalf("source = %q, want b", got[UTM]["source"])
	}
}

func TestExtract_VendorOnlyWithMarker(t *testing.T) {
	e := New(Options{Vendor: &Vendor{Namespace: "hsa", Fields: []string{"acc", "cam"}}})

	with := e.Extract(mustURL(t, "https://example.com/?hsa_acc=1&hsa_cam=2&hsa_zzz=3"))
	if diff := cmp.Diff(Fields{"acc": "1", "cam": "2"}, with["hsa"]); diff != "" {
		t.Fatalf("vendor bucket (-want +got):\n%s", diff)
	}
	if _, ok := with[Stray]["hsa_zzz"]; ok {
		t.Fatal("unknown vendor field must be dropped, not strayed")
	}

	without := e.Extract(mustURL(t, "https://example.com/?utm_source=x"))
	if _, ok := without["hsa"]; ok {
		t.Fatal("vendor bucket present without marker")
	}
}

func TestExtract_Remap(t *testing.T) {
	e := New(Options{Remap: map[string]string{"src": "utm_source", "cmp": "utm_campaign"}})

	got := e.Extract(mustURL(t, "https://example.com/?src=news&cmp=x&utm_campaign=y"))
	if got[UTM]["source"] != "news" {
		t.Fatalf("remapped source = %q", got[UTM]["source"])
	}
	if got[UTM]["campaign"] != "y" {
		t.Fatalf("existing key must win over remap, got %q", got[UTM]["campaign"])
	}
	if got[Stray]["cmp"] != "x" {
		t.Fatalf("unapplied remap stays stray, got %v", got[Stray])
	}
}

func TestSet_HasAll(t *testing.T) {
	s := Set{
		UTM:   {"source": "google", "medium": "", "campaign": "x"},
		"lvl": {},
	}
	if !s.HasAll(UTM, []string{"source", "medium", "campaign"}) {
		t.Fatal("presence with empty value should satisfy")
	}
	if s.HasAll(UTM, []string{"source", "term"}) {
		t.Fatal("missing key should not satisfy")
	}
	if s.HasAll("lvl", nil) {
		t.Fatal("empty bucket never satisfies")
	}
	if s.HasAll("missing", nil) {
		t.Fatal("absent bucket never satisfies")
	}
}
