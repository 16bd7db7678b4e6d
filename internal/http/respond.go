package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/fjod/go_inventory/internal/service"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string, retryable bool) {
	respondJSON(w, status, &ErrorResponse{
		Error:     message,
		Code:      code,
		Retryable: retryable,
	})
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
// The retryable flag travels with the body so clients can dispatch on it
// without parsing messages.
func respondServiceError(w http.ResponseWriter, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		log.Printf("unexpected error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", true)
		return
	}

	switch svcErr.Kind {
	case service.KindValidation:
		respondError(w, http.StatusBadRequest, "invalid_request", svcErr.Message, svcErr.Retryable)
	case service.KindNotFound:
		respondError(w, http.StatusNotFound, "not_found", svcErr.Message, svcErr.Retryable)
	case service.KindConflict:
		respondError(w, http.StatusConflict, "conflict", svcErr.Message, svcErr.Retryable)
	case service.KindInsufficientStock:
		respondError(w, http.StatusConflict, "insufficient_stock", svcErr.Message, svcErr.Retryable)
	case service.KindExpiredReservation:
		respondError(w, http.StatusConflict, "reservation_expired", svcErr.Message, svcErr.Retryable)
	case service.KindConcurrentConflict:
		respondError(w, http.StatusInternalServerError, "concurrent_conflict", svcErr.Message, svcErr.Retryable)
	default:
		log.Printf("internal error: %v", svcErr)
		respondError(w, http.StatusInternalServerError, "internal_error", svcErr.Message, svcErr.Retryable)
	}
}
