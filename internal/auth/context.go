package auth

import "context"

type contextKey int

const (
	claimsKey contextKey = iota
	serviceKey
)

// WithClaims returns a context carrying verified user claims. Claims are
// immutable for the lifetime of the request.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFrom extracts verified user claims, if any.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

// WithServiceName returns a context carrying the verified caller service
// name from an internal service token.
func WithServiceName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, serviceKey, name)
}

// ServiceNameFrom extracts the verified caller service name, if any.
func ServiceNameFrom(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(serviceKey).(string)
	return name, ok
}
