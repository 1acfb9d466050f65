package httpx

import (
	"context"

	domainauth "github.com/target/gatekeeper/internal/domain/auth"
)

// principalKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type principalKey struct{}

// principalSlot carries the innermost principal back out to middleware that
// runs before routing, such as the access log.
type principalSlot struct {
	p domainauth.Principal
}

type principalSlotKey struct{}

func withPrincipalSlot(ctx context.Context) (context.Context, *principalSlot) {
	slot := &principalSlot{p: domainauth.AnonymousPrincipal()}
	return context.WithValue(ctx, principalSlotKey{}, slot), slot
}

// WithPrincipal returns a child context that carries p.
func WithPrincipal(ctx context.Context, p domainauth.Principal) context.Context {
	if slot, ok := ctx.Value(principalSlotKey{}).(*principalSlot); ok {
		slot.p = p
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal resolved for the request.
// A context without one yields Anonymous.
func PrincipalFromContext(ctx context.Context) domainauth.Principal {
	if p, ok := ctx.Value(principalKey{}).(domainauth.Principal); ok {
		return p
	}
	return domainauth.AnonymousPrincipal()
}
