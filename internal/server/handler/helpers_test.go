package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meridianlabs/lpboost/internal/domain"
)

func TestWriteDomainErrorStatusMapping(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrInvalidSession, http.StatusUnauthorized},
		{domain.ErrUserMismatch, http.StatusForbidden},
		{domain.ErrDuplicateTransaction, http.StatusConflict},
		{domain.ErrAlreadyExists, http.StatusConflict},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrNoClaimableRewards, http.StatusBadRequest},
		{domain.ErrLockActive, http.StatusLocked},
		{domain.ErrAmountExceedsLimit, http.StatusBadRequest},
		{domain.ErrLockHeld, http.StatusConflict},
		{domain.ErrSignerUnavailable, http.StatusServiceUnavailable},
		{domain.ErrConfigurationMissing, http.StatusServiceUnavailable},
		{domain.ErrContractUnreachable, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/test", nil)

			// Wrapped errors must map the same as bare sentinels.
			writeDomainError(rec, req, logger, fmt.Errorf("claims: authorize: %w", tc.err))

			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestWriteDomainErrorLockHeldSetsRetryAfter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/claims/authorize", nil)

	writeDomainError(rec, req, logger, domain.ErrLockHeld)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestWriteDomainErrorHidesInternalDetail(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/rewards/u1", nil)

	writeDomainError(rec, req, logger, errors.New("pq: connection refused at 10.0.0.3"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
	assert.Contains(t, rec.Body.String(), "internal server error")
}
