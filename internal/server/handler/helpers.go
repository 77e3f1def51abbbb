// Package handler contains the HTTP handlers of the reward engine API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/meridianlabs/lpboost/internal/domain"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeDomainError maps the domain error taxonomy onto HTTP status codes.
// Unrecognized errors become a logged 500 without leaking internals.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSession):
		writeError(w, http.StatusUnauthorized, "invalid or expired session")
	case errors.Is(err, domain.ErrUserMismatch):
		writeError(w, http.StatusForbidden, "session identity mismatch")
	case errors.Is(err, domain.ErrDuplicateTransaction):
		writeError(w, http.StatusConflict, "transaction already recorded")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "record already exists")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrNoClaimableRewards):
		writeError(w, http.StatusBadRequest, "no claimable rewards")
	case errors.Is(err, domain.ErrLockActive):
		writeError(w, http.StatusLocked, err.Error())
	case errors.Is(err, domain.ErrAmountExceedsLimit):
		writeError(w, http.StatusBadRequest, "amount exceeds claimable limit")
	case errors.Is(err, domain.ErrLockHeld):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusConflict, "a claim is already in progress")
	case errors.Is(err, domain.ErrSignerUnavailable):
		writeError(w, http.StatusServiceUnavailable, "claim signing is not configured")
	case errors.Is(err, domain.ErrConfigurationMissing):
		writeError(w, http.StatusServiceUnavailable, "reward program is not configured")
	case errors.Is(err, domain.ErrContractUnreachable):
		writeError(w, http.StatusBadGateway, "reward contract unreachable")
	default:
		logger.ErrorContext(r.Context(), "handler: request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
