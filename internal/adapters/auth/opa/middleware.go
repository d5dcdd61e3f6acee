package opa

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"retail-pos-system/internal/auth"
)

// Middleware for authorization via OPA.
type Middleware struct {
	opaURL string
	logger *slog.Logger
	client *http.Client
}

// NewMiddleware creates a new OPA middleware.
func NewMiddleware(opaURL string, logger *slog.Logger) *Middleware {
	return &Middleware{
		opaURL: opaURL,
		logger: logger,
		client: &http.Client{Timeout: 500 * time.Millisecond},
	}
}

// OPAInput - structure for querying OPA. Segments is the path split on "/",
// so a policy can match ["api", "v1", "sessions", id, "checkout"] without regexes.
type OPAInput struct {
	Method   string                 `json:"method"`
	Path     string                 `json:"path"`
	Segments []string               `json:"segments"`
	User     map[string]interface{} `json:"user"`
}

// OPAResponse - structure for response from OPA.
type OPAResponse struct {
	Result struct {
		Allow bool `json:"allow"`
	} `json:"result"`
}

// Authorize is an HTTP middleware that performs permissions checking.
// It must run after a middleware that stored claims with auth.WithClaims.
func (m *Middleware) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFrom(r.Context())
		if !ok {
			http.Error(w, "Claims not found in context", http.StatusUnauthorized)
			return
		}

		input := OPAInput{
			Method:   r.Method,
			Path:     r.URL.Path,
			Segments: strings.Split(strings.Trim(r.URL.Path, "/"), "/"),
			User:     claims,
		}

		inputBytes, err := json.Marshal(map[string]interface{}{"input": input})
		if err != nil {
			m.logger.Error("Failed to create OPA request", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		// The URL typically looks like http://opa:8181/v1/data/pos/authz
		req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, m.opaURL, bytes.NewReader(inputBytes))
		if err != nil {
			m.logger.Error("Failed to create OPA request", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := m.client.Do(req)
		if err != nil {
			m.logger.Error("error accessing OPA", "error", err)
			http.Error(w, "Authorization service unavailable", http.StatusServiceUnavailable)
			return
		}
		defer resp.Body.Close()

		var opaResp OPAResponse
		if err := json.NewDecoder(resp.Body).Decode(&opaResp); err != nil {
			m.logger.Error("Unable to decode response from OPA", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if !opaResp.Result.Allow {
			m.logger.Info("request denied by policy", "sub", claims["sub"], "method", r.Method, "path", r.URL.Path)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
