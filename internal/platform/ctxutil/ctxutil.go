// Package ctxutil holds the context plumbing shared by the outbound
// clients and the HTTP middleware: nil-context hardening and the
// request id attached to every inbound request.
package ctxutil

import "context"

type requestIDKey struct{}

// Ensure returns a usable context even when the caller passed nil, so
// the qdrant and osu! clients never hand nil to net/http.
func Ensure(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// WithRequestID stores the request id set by the request-id middleware.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the stored request id, or "" outside a request.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}
