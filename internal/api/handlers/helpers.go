package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Harshitk-cp/truthstake/internal/api/middleware"
	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// errorResponse is the body of every failed request. Kind is a stable
// machine-readable name for the failure; the remaining fields are set when
// the failure carries them.
type errorResponse struct {
	Error     string   `json:"error"`
	Kind      string   `json:"kind,omitempty"`
	Required  string   `json:"required,omitempty"`
	Available string   `json:"available,omitempty"`
	Status    string   `json:"status,omitempty"`
	Expected  []string `json:"expected,omitempty"`
}

type errorMapping struct {
	err    error
	status int
	kind   string
}

// Order matters: the first sentinel err matches wins.
var errorMappings = []errorMapping{
	{domain.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
	{domain.ErrBelowMinimumStake, http.StatusUnprocessableEntity, "below_minimum_stake"},
	{domain.ErrSelfAction, http.StatusUnprocessableEntity, "self_action"},
	{domain.ErrNoExternalAddress, http.StatusUnprocessableEntity, "no_external_address"},
	{domain.ErrInvalidPostState, http.StatusConflict, "invalid_post_state"},
	{domain.ErrInvalidChallengeState, http.StatusConflict, "invalid_challenge_state"},
	{domain.ErrDuplicateChallenge, http.StatusConflict, "duplicate_challenge"},
	{domain.ErrDuplicateVote, http.StatusConflict, "duplicate_vote"},
	{domain.ErrDuplicateVerdict, http.StatusConflict, "duplicate_verdict"},
	{domain.ErrAlreadyResolved, http.StatusConflict, "already_resolved"},
	{domain.ErrVotingOpen, http.StatusConflict, "voting_open"},
	{domain.ErrVotingClosed, http.StatusConflict, "voting_closed"},
	{domain.ErrAccountInactive, http.StatusConflict, "account_inactive"},
	{domain.ErrAddressInUse, http.StatusConflict, "address_in_use"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{domain.ErrReasonRequired, http.StatusBadRequest, "reason_required"},
	{domain.ErrContentRequired, http.StatusBadRequest, "content_required"},
	{domain.ErrInvalidConfidence, http.StatusBadRequest, "invalid_confidence"},
	{domain.ErrExternalLedgerUnavailable, http.StatusServiceUnavailable, "external_ledger_unavailable"},
}

// writeDomainError maps a service error to its status and body. Anything
// unrecognised is logged and reported as a 500 without internal detail.
func writeDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		resp := errorResponse{Error: err.Error(), Kind: m.kind}
		var amountErr *domain.AmountError
		if errors.As(err, &amountErr) {
			resp.Required = amountErr.Required.String()
			resp.Available = amountErr.Actual.String()
		}
		var stateErr *domain.StateError
		if errors.As(err, &stateErr) {
			resp.Status = stateErr.Current
			resp.Expected = stateErr.Expected
		}
		writeJSON(w, m.status, resp)
		return
	}
	logger.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Kind: "internal"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

// actingAccount returns the X-Account-ID identity or writes a 400.
func actingAccount(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, middleware.AccountIDHeader+" header is required")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}
