package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/truthstake/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ChallengeHandler struct {
	challenges *service.ChallengeService
	resolution *service.ResolutionService
	logger     *zap.Logger
}

func NewChallengeHandler(challenges *service.ChallengeService, resolution *service.ResolutionService, logger *zap.Logger) *ChallengeHandler {
	return &ChallengeHandler{challenges: challenges, resolution: resolution, logger: logger}
}

type createChallengeRequest struct {
	PostID uuid.UUID       `json:"post_id"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

func (h *ChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
	challenger, ok := actingAccount(w, r)
	if !ok {
		return
	}
	var req createChallengeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PostID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "post_id is required")
		return
	}
	ch, err := h.challenges.CreateChallenge(r.Context(), challenger, req.PostID, req.Amount, req.Reason)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

func (h *ChallengeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "challenge")
	if !ok {
		return
	}
	state, err := h.challenges.GetChallenge(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type verdictRequest struct {
	Verdict    *bool `json:"verdict"`
	Confidence int   `json:"confidence"`
}

// Verdict records an automated verdict supplied by the caller, for
// deployments that evaluate claims outside the engine.
func (h *ChallengeHandler) Verdict(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "challenge")
	if !ok {
		return
	}
	var req verdictRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Verdict == nil {
		writeError(w, http.StatusBadRequest, "verdict is required")
		return
	}
	ch, err := h.resolution.SubmitVerdict(r.Context(), id, *req.Verdict, req.Confidence)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

type voteRequest struct {
	Agree *bool `json:"agree"`
}

func (h *ChallengeHandler) Vote(w http.ResponseWriter, r *http.Request) {
	voter, ok := actingAccount(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "challenge")
	if !ok {
		return
	}
	var req voteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Agree == nil {
		writeError(w, http.StatusBadRequest, "agree is required")
		return
	}
	result, err := h.resolution.CastVote(r.Context(), id, voter, *req.Agree)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *ChallengeHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "challenge")
	if !ok {
		return
	}
	res, err := h.resolution.Finalize(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
