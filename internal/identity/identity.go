// Package identity attaches a lightweight tenant/user context to incoming
// requests. It does not authenticate the caller or store credentials; it
// only extracts the scope keys the routing score calculator and usage
// recorder need for policy precedence and attribution.
package identity

import (
	"context"
	"net/http"
)

// Context is the tenant/user scope extracted from one request.
type Context struct {
	TenantID string
	UserID   string
}

type contextKey string

const identityContextKey contextKey = "identity"

// FromContext returns the identity attached to ctx, or the zero Context if
// none was attached.
func FromContext(ctx context.Context) Context {
	if v, ok := ctx.Value(identityContextKey).(Context); ok {
		return v
	}
	return Context{}
}

// Middleware extracts tenant and user identifiers from request headers and
// attaches them to the request context. Both headers are optional; an
// unauthenticated or single-tenant deployment simply carries an empty
// Context, which the Routing Score Calculator treats as the global scope.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Context{
			TenantID: r.Header.Get("X-Synaxis-Tenant"),
			UserID:   r.Header.Get("X-Synaxis-User"),
		}
		ctx := context.WithValue(r.Context(), identityContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
