package domain

import "context"

type ctxKey struct{}

// ContextWithUserID attaches a verified identity to ctx.
func ContextWithUserID(ctx context.Context, userID UserID) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserIDFromContext returns the verified identity attached by the request gate.
func UserIDFromContext(ctx context.Context) (UserID, bool) {
	id, ok := ctx.Value(ctxKey{}).(UserID)
	return id, ok && id != ""
}
