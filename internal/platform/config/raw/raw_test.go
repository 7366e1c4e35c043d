package raw

import "testing"

func TestFromMapPrefixed(t *testing.T) {
	c := FromMap(map[string]string{
		"LOG_LEVEL":        "  warn ",
		"LOG_CALLER":       "on",
		"LOG_SAMPLE_EVERY": "10",
		"LOG_BAD_INT":      "-3",
		"LOG_OFF":          "nope",
	}).Prefix("LOG_")

	if got := c.Get("LEVEL", "debug"); got != "warn" {
		t.Fatalf("Get = %q", got)
	}
	if got := c.Get("FORMAT", "console"); got != "console" {
		t.Fatalf("default = %q", got)
	}
	if !c.GetBool("CALLER", false) || c.GetBool("OFF", true) || !c.GetBool("MISSING", true) {
		t.Fatal("GetBool")
	}
	if c.GetInt("SAMPLE_EVERY", 0) != 10 || c.GetInt("BAD_INT", 7) != 7 || c.GetInt("MISSING", 2) != 2 {
		t.Fatal("GetInt")
	}
}

func TestNewReadsEnv(t *testing.T) {
	t.Setenv("RAWTEST_SERVICE", "collector-api")
	if got := New().Prefix("RAWTEST_").Get("SERVICE", ""); got != "collector-api" {
		t.Fatalf("Get = %q", got)
	}
	var zero Conf
	if zero.Get("X", "d") != "d" {
		t.Fatal("zero Conf must fall back to defaults")
	}
}
