package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"retail-pos-system/internal/auth"
)

// OIDCAuthenticator stores the token verifier.
type OIDCAuthenticator struct {
	Verifier *oidc.IDTokenVerifier
	logger   *slog.Logger
}

// NewOIDCAuthenticator connects to the OIDC provider (Keycloak) and creates an authenticator
// for back-office staff tokens.
func NewOIDCAuthenticator(ctx context.Context, providerURL, clientID string, logger *slog.Logger) (*OIDCAuthenticator, error) {
	if providerURL == "" || clientID == "" {
		return nil, fmt.Errorf("OIDC URL and ClientID cannot be empty")
	}

	provider, err := oidc.NewProvider(ctx, providerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return &OIDCAuthenticator{Verifier: verifier, logger: logger}, nil
}

// Middleware - This is an HTTP middleware for token verification.
func (a *OIDCAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawToken, ok := bearerToken(r)
		if !ok {
			writeJSONError(w, a.logger, "Authorization header with a Bearer token required", http.StatusUnauthorized)
			return
		}

		idToken, err := a.Verifier.Verify(r.Context(), rawToken)
		if err != nil {
			a.logger.Warn("OIDC token rejected", "error", err)
			writeJSONError(w, a.logger, "Invalid token", http.StatusUnauthorized)
			return
		}

		var claims map[string]interface{}
		if err := idToken.Claims(&claims); err != nil {
			writeJSONError(w, a.logger, "Failed to extract claims", http.StatusInternalServerError)
			return
		}

		// Saving claims in context for OPA
		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}
