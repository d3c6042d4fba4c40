package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/distrofy/backend/internal/common"
)

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, apiError{Error: message})
}

// writeServiceError is the single translation point from service errors to
// HTTP statuses. Internal detail never reaches the client.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		writeError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, common.ErrorNotPaid):
		writeError(w, http.StatusPaymentRequired, "purchase not paid")
	case errors.Is(err, common.ErrorForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrTokenExpired):
		writeError(w, http.StatusGone, "token expired")
	case errors.Is(err, common.ErrorAlreadyExists):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, common.ErrorUpstream):
		writeError(w, http.StatusBadGateway, "payment provider unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
