package pg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestCompact(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"select 1", "select 1"},
		{"  select   1  ", " select 1 "},
		{"SELECT\t*\nFROM\r\tcollector_kv WHERE  owner =  $1", "SELECT * FROM collector_kv WHERE owner = $1"},
		{"", ""},
	}
	for _, c := range cases {
		if got := compact(c.in); got != c.want {
			t.Fatalf("compact(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRedact(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 100)
	got := redact([]any{"owner", long, 3}).([]any)
	if got[0] != "owner" || got[2] != 3 {
		t.Fatalf("short values changed: %v", got)
	}
	if s := got[1].(string); len(s) != 67 || !strings.HasSuffix(s, "...") {
		t.Fatalf("long value not truncated: %q", s)
	}
	if redact("plain") != "plain" {
		t.Fatal("non-slice args should pass through")
	}
}

func TestTracer_Levels(t *testing.T) {
	t.Parallel()

	type line struct {
		Level     string  `json:"level"`
		ElapsedMS float64 `json:"elapsed_ms"`
		Slow      bool    `json:"slow"`
		SQL       string  `json:"sql"`
		Error     string  `json:"error"`
		Component string  `json:"component"`
		Message   string  `json:"message"`
	}

	cases := []struct {
		name string
		ev   QueryEvent
		want string
	}{
		{"fast", QueryEvent{SQL: "SELECT 1", ElapsedUS: 1500}, "info"},
		{"slow", QueryEvent{SQL: "SELECT 1", ElapsedUS: 900000, Slow: true}, "warn"},
		{"failed", QueryEvent{SQL: "SELECT 1", Err: errors.New("boom")}, "warn"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var buf bytes.Buffer
			Tracer(zerolog.New(&buf).Level(zerolog.ErrorLevel)).OnQuery(context.Background(), c.ev)

			var got line
			if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
				t.Fatalf("unmarshal: %v raw=%s", err, buf.String())
			}
			if got.Level != c.want {
				t.Fatalf("level = %q, want %q", got.Level, c.want)
			}
			if got.Component != "pg" || got.Message != "pg query" || got.SQL != "SELECT 1" {
				t.Fatalf("fields: %+v", got)
			}
			if got.ElapsedMS != float64(c.ev.ElapsedUS)/1000.0 {
				t.Fatalf("elapsed_ms = %v", got.ElapsedMS)
			}
			if (c.ev.Err != nil) != (got.Error != "") {
				t.Fatalf("error field = %q", got.Error)
			}
		})
	}
}
