package repokit

import (
	"context"
	"fmt"
	"time"
)

// Guarder is anything that can verify its backends, e.g. *store.Store
type Guarder interface {
	Guard(context.Context) error
}

// MustGuard panics when g reports a failed backend; used at boot
// a ctx without deadline gets 5s
func MustGuard(ctx context.Context, g Guarder) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := g.Guard(ctx); err != nil {
		panic(fmt.Errorf("dependency guard failed: %w", err))
	}
}
