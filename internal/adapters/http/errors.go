package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"retail-pos-system/internal/core/domain"
)

// ErrorResponse is a standard structure for returning errors in JSON format.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSONError - вспомогательная функция для отправки JSON-ошибок
func writeJSONError(w http.ResponseWriter, logger *slog.Logger, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		logger.Error("Failed to write JSON error response", "error", err)
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrLineOutOfRange),
		errors.Is(err, domain.ErrInvalidProduct),
		errors.Is(err, domain.ErrInvalidPromotion),
		errors.Is(err, domain.ErrInvalidCustomer):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrPromotionNotApplied):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPersistence),
		errors.Is(err, domain.ErrBrokerUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes err with its mapped status. Internal details of 5xx errors are not exposed.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	switch {
	case status == http.StatusServiceUnavailable:
		logger.Warn("temporary failure in external dependency", "error", err)
		writeJSONError(w, logger, "service temporarily unavailable", status)
	case status >= 500:
		logger.Error("unexpected error during checkout", "error", err)
		writeJSONError(w, logger, "internal server error", status)
	default:
		writeJSONError(w, logger, err.Error(), status)
	}
}
