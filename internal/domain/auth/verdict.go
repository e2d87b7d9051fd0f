package auth

import (
	"context"

	"github.com/xenking/webshop/internal/domain/user"
)

// Verdict is the outcome of validating a bearer token. The zero value is the
// anonymous caller.
type Verdict struct {
	Authenticated bool
	UserID        string
	Role          user.Role
}

// IsAuthenticated reports whether the token resolved to an active session.
func (v Verdict) IsAuthenticated() bool {
	return v.Authenticated
}

// HasElevatedPrivilege reports whether the caller may perform operator-only
// mutations such as fulfillment state changes.
func (v Verdict) HasElevatedPrivilege() bool {
	return v.Authenticated && v.Role == user.RoleAdmin
}

// Subject returns the authenticated user id, or "" for anonymous callers.
func (v Verdict) Subject() string {
	return v.UserID
}

type verdictKey struct{}

// WithVerdict stores v in ctx.
func WithVerdict(ctx context.Context, v Verdict) context.Context {
	return context.WithValue(ctx, verdictKey{}, v)
}

// VerdictFrom returns the verdict stored in ctx, or the anonymous verdict.
func VerdictFrom(ctx context.Context) Verdict {
	v, _ := ctx.Value(verdictKey{}).(Verdict)
	return v
}
