package auth

import (
	"fmt"
	"log/slog"

	"github.com/go-oauth2/oauth2/v4"
	"github.com/go-oauth2/oauth2/v4/errors"
	"github.com/go-oauth2/oauth2/v4/generates"
	"github.com/go-oauth2/oauth2/v4/manage"
	"github.com/go-oauth2/oauth2/v4/models"
	"github.com/go-oauth2/oauth2/v4/server"
	"github.com/go-oauth2/oauth2/v4/store"
	"github.com/golang-jwt/jwt/v5"
)

// TerminalClient is a till registered for the client credentials grant.
type TerminalClient struct {
	ID     string
	Secret string
}

// NewAuthorizationServer configures the OAuth 2.0 server that issues tokens to checkout terminals.
// Tokens are HS256 JWTs signed with the same secret the API middleware verifies.
func NewAuthorizationServer(jwtSecret string, terminals []TerminalClient, logger *slog.Logger) (*server.Server, error) {
	manager := manage.NewDefaultManager()

	// token store
	manager.MustTokenStorage(store.NewMemoryTokenStore())

	// Configure the token generator to use JWT.
	manager.MapAccessGenerate(generates.NewJWTAccessGenerate("", []byte(jwtSecret), jwt.SigningMethodHS256))

	clientStore := store.NewClientStore()
	for _, t := range terminals {
		err := clientStore.Set(t.ID, &models.Client{
			ID:     t.ID,
			Secret: t.Secret,
			Domain: "http://localhost",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to register terminal %s: %w", t.ID, err)
		}
	}
	manager.MapClientStorage(clientStore)

	srv := server.NewServer(server.NewConfig(), manager)

	// Terminals use the Client Credentials grant.
	srv.SetAllowGetAccessRequest(true)
	srv.SetClientInfoHandler(server.ClientFormHandler)

	srv.SetExtensionFieldsHandler(func(ti oauth2.TokenInfo) (fieldsValue map[string]interface{}) {
		fieldsValue = map[string]interface{}{
			"sub":   ti.GetClientID(),
			"roles": []string{RoleTerminal},
		}
		return
	})

	srv.SetInternalErrorHandler(func(err error) (re *errors.Response) {
		logger.Error("Internal OAuth2 server error", "error", err)
		return
	})

	logger.Info("OAuth 2.0 server configured", "terminals", len(terminals))
	return srv, nil
}
