package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/truthstake/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PostHandler struct {
	stake      *service.StakeService
	challenges *service.ChallengeService
	logger     *zap.Logger
}

func NewPostHandler(stake *service.StakeService, challenges *service.ChallengeService, logger *zap.Logger) *PostHandler {
	return &PostHandler{stake: stake, challenges: challenges, logger: logger}
}

type createPostRequest struct {
	Content     string          `json:"content"`
	StakeAmount decimal.Decimal `json:"stake_amount"`
}

// Create stakes a new post owned by the X-Account-ID account.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := actingAccount(w, r)
	if !ok {
		return
	}
	var req createPostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	post, err := h.stake.CreatePost(r.Context(), owner, req.Content, req.StakeAmount)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "post")
	if !ok {
		return
	}
	state, err := h.stake.GetPostState(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type supportRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *PostHandler) Support(w http.ResponseWriter, r *http.Request) {
	supporter, ok := actingAccount(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "post")
	if !ok {
		return
	}
	var req supportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	support, err := h.stake.SupportStake(r.Context(), supporter, id, req.Amount)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, support)
}

func (h *PostHandler) Challenges(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "post")
	if !ok {
		return
	}
	history, err := h.challenges.HistoryByPost(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"challenges": history})
}

func (h *PostHandler) MinimumChallenge(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "post")
	if !ok {
		return
	}
	quote, err := h.challenges.QuoteMinimum(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}
