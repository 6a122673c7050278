// Package principal identifies who performs a request.
package principal

import (
	"context"
	"slices"
)

// AnonymousName is the principal name used when no credentials were given.
const AnonymousName = "Anonymous"

// AnonymousRole is the role every unauthenticated principal carries.
const AnonymousRole = "anonymous"

// Principal is an authenticated (or anonymous) caller.
type Principal struct {
	Name  string
	Roles []string
}

// Anonymous returns the unauthenticated principal.
func Anonymous() Principal {
	return Principal{Name: AnonymousName, Roles: []string{AnonymousRole}}
}

// IsAnonymous reports whether the principal carries no identity.
func (p Principal) IsAnonymous() bool { return p.Name == "" || p.Name == AnonymousName }

// HasRole checks role membership.
func (p Principal) HasRole(role string) bool { return slices.Contains(p.Roles, role) }

type ctxKey struct{}

// ContextWith stores p in ctx.
func ContextWith(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal in ctx, or Anonymous when absent.
func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(ctxKey{}).(Principal); ok {
		return p
	}
	return Anonymous()
}
