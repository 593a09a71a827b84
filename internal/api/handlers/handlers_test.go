package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"not found", fmt.Errorf("post: %w", domain.ErrNotFound), http.StatusNotFound, "not_found"},
		{"invalid amount", domain.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
		{"reason", domain.ErrReasonRequired, http.StatusBadRequest, "reason_required"},
		{"duplicate challenge", domain.ErrDuplicateChallenge, http.StatusConflict, "duplicate_challenge"},
		{"duplicate vote", domain.ErrDuplicateVote, http.StatusConflict, "duplicate_vote"},
		{"voting open", domain.ErrVotingOpen, http.StatusConflict, "voting_open"},
		{"voting closed", domain.ErrVotingClosed, http.StatusConflict, "voting_closed"},
		{"self action", domain.ErrSelfAction, http.StatusUnprocessableEntity, "self_action"},
		{"ledger down", fmt.Errorf("%w: dial tcp", domain.ErrExternalLedgerUnavailable), http.StatusServiceUnavailable, "external_ledger_unavailable"},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeDomainError(w, zap.NewNop(), tt.err)
			assert.Equal(t, tt.status, w.Code)

			var body errorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.kind, body.Kind)
		})
	}
}

func TestWriteDomainErrorDetails(t *testing.T) {
	w := httptest.NewRecorder()
	writeDomainError(w, zap.NewNop(), fmt.Errorf("challenge: %w", &domain.AmountError{
		Err:      domain.ErrInsufficientBalance,
		Required: decimal.RequireFromString("22"),
		Actual:   decimal.RequireFromString("7.5"),
	}))
	var body errorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "22", body.Required)
	assert.Equal(t, "7.5", body.Available)

	w = httptest.NewRecorder()
	writeDomainError(w, zap.NewNop(), &domain.StateError{
		Err:      domain.ErrInvalidPostState,
		Current:  "disputed",
		Expected: []string{"pending", "verified"},
	})
	body = errorResponse{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_post_state", body.Kind)
	assert.Equal(t, "disputed", body.Status)
	assert.Equal(t, []string{"pending", "verified"}, body.Expected)
}

func TestInternalErrorsAreLoggedNotLeaked(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	w := httptest.NewRecorder()
	writeDomainError(w, zap.New(core), errors.New("pq: password authentication failed"))

	var body errorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "internal error", body.Error)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "request failed", logs.All()[0].Message)
}

func TestGenerateAPIKey(t *testing.T) {
	a, err := generateAPIKey()
	require.NoError(t, err)
	b, err := generateAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, len("ts_")+64)
}
