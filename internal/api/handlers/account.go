package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/truthstake/internal/service"
	"go.uber.org/zap"
)

type AccountHandler struct {
	accounts   *service.AccountService
	challenges *service.ChallengeService
	reconciler *service.Reconciler
	logger     *zap.Logger
}

func NewAccountHandler(accounts *service.AccountService, challenges *service.ChallengeService, reconciler *service.Reconciler, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		accounts:   accounts,
		challenges: challenges,
		reconciler: reconciler,
		logger:     logger,
	}
}

type registerAccountRequest struct {
	ExternalAddress string `json:"external_address"`
}

func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.accounts.Register(r.Context(), req.ExternalAddress)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "account")
	if !ok {
		return
	}
	state, err := h.accounts.GetState(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *AccountHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "account")
	if !ok {
		return
	}
	a, err := h.accounts.Deactivate(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Reconcile reads the account's external balance now instead of waiting
// for the next reconciliation sweep.
func (h *AccountHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "account")
	if !ok {
		return
	}
	result, err := h.reconciler.ReconcileAccount(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *AccountHandler) Entries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "account")
	if !ok {
		return
	}
	entries, err := h.accounts.Entries(r.Context(), id, queryInt(r, "limit", service.DefaultEntryLimit))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *AccountHandler) Challenges(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "account")
	if !ok {
		return
	}
	history, err := h.challenges.HistoryByChallenger(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"challenges": history})
}
