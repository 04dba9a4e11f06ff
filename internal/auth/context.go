package auth

import (
	"context"
	"strings"
)

type callerContextKey struct{}

// Caller is the request-scoped identity resolved from the bearer token.
// Handlers read the caller from the request context; nothing downstream
// consults the session directory to decide "who is asking".
type Caller struct {
	UserID   int64
	Role     string
	RoleCode string
}

// ContextWithCaller attaches the authenticated caller to the context.
func ContextWithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext extracts the authenticated caller from the context.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	v, ok := ctx.Value(callerContextKey{}).(Caller)
	if !ok || v.UserID <= 0 {
		return Caller{}, false
	}
	return v, true
}

// UserIDFromContext returns the caller's user id if one is attached.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return 0, false
	}
	return caller.UserID, true
}

// HasRole reports whether the caller carries the named role (case-insensitive).
func HasRole(ctx context.Context, role string) bool {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return false
	}
	return strings.EqualFold(caller.Role, role) || strings.EqualFold(caller.RoleCode, role)
}
