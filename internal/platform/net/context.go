// Package net carries request-scoped ids across the transport boundary
package net

import (
	"context"

	"campaigncollector/internal/platform/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type ctxKey uint8

const keyAnonID ctxKey = iota

// WithRequest stores reqID where chi's RequestID middleware would and tags the logger
func WithRequest(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		return ctx
	}
	ctx = context.WithValue(ctx, chimw.RequestIDKey, reqID)
	return logger.WithRequest(ctx, reqID)
}

// WithAnon stores the visitor's anonymous id and tags the logger
func WithAnon(ctx context.Context, anonID string) context.Context {
	if anonID == "" {
		return ctx
	}
	ctx = context.WithValue(ctx, keyAnonID, anonID)
	return logger.WithAnon(ctx, anonID)
}

// RequestID returns the request id on ctx
func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }

// AnonID returns the anonymous id on ctx
func AnonID(ctx context.Context) string {
	v, _ := ctx.Value(keyAnonID).(string)
	return v
}
