package touchpoint

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Unit is a calendar-ish duration unit; months and years are fixed lengths
type Unit string

// Supported units
const (
	Minutes Unit = "minutes"
	Hours   Unit = "hours"
	Days    Unit = "days"
	Weeks   Unit = "weeks"
	Months  Unit = "months"
	Years   Unit = "years"
)

var unitSeconds = map[Unit]int64{
	Minutes: 60,
	Hours:   60 * 60,
	Days:    24 * 60 * 60,
	Weeks:   7 * 24 * 60 * 60,
	Months:  30 * 24 * 60 * 60,
	Years:   365 * 24 * 60 * 60,
}

// Duration is a TTL as configured, e.g. {30, Minutes}
type Duration struct {
	Value int  `json:"value"`
	Unit  Unit `json:"unit"`
}

// Default TTLs per slot
var (
	DefaultFirstTTL = Duration{Value: 2, Unit: Years}
	DefaultLastTTL  = Duration{Value: 30, Unit: Minutes}
)

// Seconds converts d; an unknown unit yields 0
func (d Duration) Seconds() int64 {
	return int64(d.Value) * unitSeconds[normalizeUnit(string(d.Unit))]
}

// Std converts d to a time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d.Seconds()) * time.Second }

// IsZero reports whether d yields no time at all
func (d Duration) IsZero() bool { return d.Seconds() <= 0 }

func (d Duration) String() string { return fmt.Sprintf("%d %s", d.Value, d.Unit) }

// ParseDuration reads "30 minutes", "2 years", "1 week"
// a bare integer is taken as minutes
func ParseDuration(s string) (Duration, error) {
	f := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	if len(f) == 0 || len(f) > 2 {
		return Duration{}, fmt.Errorf("touchpoint: bad duration %q", s)
	}
	n, err := strconv.Atoi(f[0])
	if err != nil || n < 0 {
		return Duration{}, fmt.Errorf("touchpoint: bad duration value %q", s)
	}
	if len(f) == 1 {
		return Duration{Value: n, Unit: Minutes}, nil
	}
	u := normalizeUnit(f[1])
	if _, ok := unitSeconds[u]; !ok {
		return Duration{}, fmt.Errorf("touchpoint: unknown duration unit %q", f[1])
	}
	return Duration{Value: n, Unit: u}, nil
}

func normalizeUnit(s string) Unit {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasSuffix(s, "s") {
		s += "s"
	}
	return Unit(s)
}
