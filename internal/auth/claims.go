package auth

import "context"

type contextKey string

// claimsContextKey holds verified token claims (local JWT or OIDC).
const claimsContextKey contextKey = "claims"

// Roles known to the gateway.
const (
	RoleCashier  = "cashier"
	RoleManager  = "manager"
	RoleTerminal = "terminal"
)

// WithClaims stores verified claims for the authorization layer.
func WithClaims(ctx context.Context, claims map[string]interface{}) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

func ClaimsFrom(ctx context.Context) (map[string]interface{}, bool) {
	claims, ok := ctx.Value(claimsContextKey).(map[string]interface{})
	return claims, ok && claims != nil
}

// Subject returns the "sub" claim or "".
func Subject(ctx context.Context) string {
	claims, ok := ClaimsFrom(ctx)
	if !ok {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}
