package handler

import (
	"log/slog"
	"net/http"

	"github.com/meridianlabs/lpboost/internal/service"
)

// SessionHandler serves app-session endpoints.
type SessionHandler struct {
	provenance *service.ProvenanceService
	logger     *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(provenance *service.ProvenanceService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{provenance: provenance, logger: logger}
}

type createSessionRequest struct {
	UserID      string `json:"userId"`
	UserAddress string `json:"userAddress"`
}

// Create issues a new session bound to the user and wallet address.
// POST /api/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.UserAddress == "" {
		writeError(w, http.StatusBadRequest, "userId and userAddress are required")
		return
	}

	sess, err := h.provenance.CreateSession(r.Context(), req.UserID, req.UserAddress)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// Validate reports whether the session is live.
// GET /api/sessions/{id}
func (h *SessionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	sess, err := h.provenance.ValidateSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Invalidate explicitly ends a session.
// DELETE /api/sessions/{id}
func (h *SessionHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.provenance.InvalidateSession(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
