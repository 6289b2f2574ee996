package httpserver

import (
	"context"

	"github.com/and161185/docshare/internal/model"
)

type ctxKey string

const (
	identityKey  ctxKey = "docshare.identity"
	requestIDKey ctxKey = "docshare.requestID"
)

// WithIdentity stores the authenticated caller in context.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromCtx fetches the authenticated caller from context.
func IdentityFromCtx(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok
}

// WithRequestID stores the request id in context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromCtx returns the request id, or "" outside a request.
func RequestIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}
