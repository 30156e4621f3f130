package auth

import "context"

// identityContextKey is the key used to store a VerifiedIdentity in the
// request context. An empty struct type prevents collisions with other
// context keys.
type identityContextKey struct{}

// WithIdentity stores a verified identity in the context.
func WithIdentity(ctx context.Context, identity VerifiedIdentity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext retrieves the verified identity from the context.
// Returns the identity and true if present.
func IdentityFromContext(ctx context.Context) (VerifiedIdentity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(VerifiedIdentity)
	return identity, ok
}
