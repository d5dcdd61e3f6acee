package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"retail-pos-system/internal/auth"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	jwtSecret []byte
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(logger *slog.Logger, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		logger:    logger,
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

// LoginRequest - structure for login request.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"` //TODO: реализовать проверку пароля по таблице сотрудников
}

// LoginResponse - structure for response with token.
type LoginResponse struct {
	Token string `json:"token"`
}

// HandleLogin issues a staff token. Cashiers run checkouts; managers may also run reports.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, h.logger, "Invalid request body", http.StatusBadRequest)
		return
	}

	var (
		roles  []string
		userID string
	)
	switch req.Username {
	case "manager":
		roles = []string{auth.RoleManager, auth.RoleCashier}
		userID = "employee-manager-1"
	case "cashier":
		roles = []string{auth.RoleCashier}
		userID = "employee-cashier-1"
	default:
		writeJSONError(w, h.logger, "Invalid username", http.StatusUnauthorized)
		return
	}

	now := h.now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"roles": roles, // Custom roles for OPA
		"exp":   now.Add(8 * time.Hour).Unix(),
		"iat":   now.Unix(),
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtSecret)
	if err != nil {
		writeJSONError(w, h.logger, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(LoginResponse{Token: tokenString}); err != nil {
		h.logger.Error("failed to write json response", "ERROR", err)
	}
}
