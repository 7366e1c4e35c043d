package service

import "context"

type ctxKey struct{}

// WithCollector stores c on ctx
func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the request's Collector
func FromContext(ctx context.Context) (*Collector, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Collector)
	return c, ok && c != nil
}
