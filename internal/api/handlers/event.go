package handlers

import (
	"net/http"
	"strconv"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

type EventHandler struct {
	events domain.EventStore
	logger *zap.Logger
}

func NewEventHandler(events domain.EventStore, logger *zap.Logger) *EventHandler {
	return &EventHandler{events: events, logger: logger}
}

// List pages through the outbox in commit order. Callers pass the last
// seq they saw as after.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	var after int64
	if v := r.URL.Query().Get("after"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "after must be a non-negative integer")
			return
		}
		after = parsed
	}
	limit := queryInt(r, "limit", defaultEventLimit)
	if limit == 0 || limit > maxEventLimit {
		limit = maxEventLimit
	}

	events, err := h.events.ListAfter(r.Context(), after, limit)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if events == nil {
		events = []domain.DomainEvent{}
	}
	next := after
	if len(events) > 0 {
		next = events[len(events)-1].Seq
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "next": next})
}
