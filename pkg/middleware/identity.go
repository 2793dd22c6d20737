package middleware

import (
	"context"
	"net/http"
	"regexp"
)

// UserIDHeader carries the shopper identity forwarded by the gateway.
const UserIDHeader = "X-User-ID"

type contextKeyType string

const userIDKey contextKeyType = "user_id"

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:@-]{1,128}$`)

// Identity trusts the gateway-forwarded X-User-ID header and stores it in the
// request context. Malformed values are dropped so the request is treated as
// anonymous.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(UserIDHeader); id != "" && userIDPattern.MatchString(id) {
			r = r.WithContext(WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// WithUserID stores a shopper ID in ctx.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext returns the shopper ID set by Identity, or "".
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}
