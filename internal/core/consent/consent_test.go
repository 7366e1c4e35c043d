package consent

import (
	"context"
	"testing"

	"campaigncollector/internal/core/kv"
	perr "campaigncollector/internal/platform/errors"
)

func TestState_UpdateValidates(t *testing.T) {
	s := State{}
	if err := s.Update("analytics_storage", "granted"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if s.Get(AnalyticsStorage) != Granted {
		t.Fatalf("Get = %q", s.Get(AnalyticsStorage))
	}
	if err := s.Update("cookies", "granted"); !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("bad category err = %v", err)
	}
	if err := s.Update("ad_storage", "maybe"); !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("bad value err = %v", err)
	}
	if err := s.Update("analytics_storage", "null"); err != nil || s.Get(AnalyticsStorage) != Unset {
		t.Fatalf("null should unset, got %q (%v)", s.Get(AnalyticsStorage), err)
	}
}

func TestState_StorageAllowed(t *testing.T) {
	tests := []struct {
		name    string
		value   Value
		require bool
		want    bool
	}{
		{"unset optional", Unset, false, true},
		{"unset required", Unset, true, false},
		{"granted required", Granted, true, true},
		{"denied optional", Denied, false, false},
		{"denied required", Denied, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := State{}
			_ = s.Update(string(AnalyticsStorage), string(tc.value))
			if got := s.StorageAllowed(tc.require); got != tc.want {
				t.Fatalf("StorageAllowed = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestState_SaveLoad(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := State{}
	_ = s.Update("ad_storage", "denied")
	_ = s.Update("analytics_storage", "granted")
	if err := s.Save(ctx, mem, "_lvl_consent"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got := Load(ctx, mem, "_lvl_consent")
	if got.Get(AdStorage) != Denied || got.Get(AnalyticsStorage) != Granted || len(got) != 2 {
		t.Fatalf("Load = %v", got)
	}
	if mem.MaxAge("_lvl_consent") != MaxAge {
		t.Fatalf("max-age = %v", mem.MaxAge("_lvl_consent"))
	}

	_ = mem.Set(ctx, "_lvl_consent", "{garbage", 0)
	if len(Load(ctx, mem, "_lvl_consent")) != 0 {
		t.Fatal("garbage should load as empty")
	}
}
