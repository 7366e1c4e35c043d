package testkit

import (
	"sync"
	"testing"
)

var seamMu sync.Mutex

// Swap replaces a package-level variable for the test and restores it on cleanup
func Swap[T any](t testing.TB, target *T, replacement T) {
	t.Helper()
	orig := *target
	*target = replacement
	t.Cleanup(func() { *target = orig })
}

// Serial holds a global lock for the rest of the test; use it with Swap on shared seams
func Serial(t testing.TB) {
	t.Helper()
	seamMu.Lock()
	t.Cleanup(seamMu.Unlock)
}
