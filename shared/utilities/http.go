package utilities

import (
	"context"
	"net/http"
)

// RequestIDHeader carries the request correlation ID across services.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// ContextWithRequestID stores the request ID in ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ForwardRequestID copies the request ID in ctx onto an outgoing request so
// upstream logs can be correlated with ours.
func ForwardRequestID(ctx context.Context, req *http.Request) {
	if id := RequestIDFromContext(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}
}
