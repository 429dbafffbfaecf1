package providers

import "context"

type requestIDKeyType struct{}
type providerKeyKeyType struct{}

// RequestIDKey is the context key carrying the inbound request ID, forwarded
// to upstream providers as X-Request-ID so a single call can be traced
// across the gateway and the provider's own logs.
var RequestIDKey = requestIDKeyType{}

var providerKeyKey = providerKeyKeyType{}

// WithRequestID returns a context with the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID extracts the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithProviderKey tags ctx with the configured provider key an adapter is
// about to call. DoRequest/DoStreamRequest read it back to label spans, so a
// trace backend can group provider latency and errors by provider key
// without the caller threading it through every function signature.
func WithProviderKey(ctx context.Context, providerKey string) context.Context {
	return context.WithValue(ctx, providerKeyKey, providerKey)
}

// GetProviderKey extracts the provider key set by WithProviderKey, or "" if
// none was set.
func GetProviderKey(ctx context.Context) string {
	if key, ok := ctx.Value(providerKeyKey).(string); ok {
		return key
	}
	return ""
}
