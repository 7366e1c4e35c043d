package testkit

import (
	"testing"
	"time"
)

var seamTarget = func() string { return "real" }

func TestSwapRestores(t *testing.T) {
	t.Run("swapped", func(t *testing.T) {
		Serial(t)
		Swap(t, &seamTarget, func() string { return "fake" })
		if seamTarget() != "fake" {
			t.Fatal("swap not applied")
		}
	})
	if seamTarget() != "real" {
		t.Fatal("swap not restored")
	}
}

func TestAssertions(t *testing.T) {
	MustPanic(t, func() { panic("boom") })
	MustNotPanic(t, func() {})
	MustContain(t, "utm_source=google", "google")
	MustEqual(t, map[string]string{"a": "1"}, map[string]string{"a": "1"})
}

func TestClock(t *testing.T) {
	c := NewClock(1_700_000_000)
	c.Advance(31 * time.Minute)
	if got := c.Now().Unix(); got != 1_700_000_000+31*60 {
		t.Fatalf("Now = %d", got)
	}
}
