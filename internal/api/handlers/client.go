package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/Harshitk-cp/truthstake/internal/api/middleware"
	"github.com/Harshitk-cp/truthstake/internal/domain"
)

type ClientHandler struct {
	store domain.ClientStore
}

func NewClientHandler(store domain.ClientStore) *ClientHandler {
	return &ClientHandler{store: store}
}

type createClientRequest struct {
	Name string `json:"name"`
}

type createClientResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	APIKey string `json:"api_key"`
}

// Create bootstraps a collaborator client. The key is returned once and
// only its hash is stored.
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate API key")
		return
	}

	client := &domain.Client{
		Name:       req.Name,
		APIKeyHash: middleware.HashAPIKey(apiKey),
	}
	if err := h.store.Create(r.Context(), client); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create client")
		return
	}

	writeJSON(w, http.StatusCreated, createClientResponse{
		ID:     client.ID.String(),
		Name:   client.Name,
		APIKey: apiKey,
	})
}

func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "ts_" + hex.EncodeToString(b), nil
}
