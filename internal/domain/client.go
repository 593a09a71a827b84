package domain

import (
	"time"

	"github.com/google/uuid"
)

// Client is a collaborator (UI backend, notification worker, operator tool)
// allowed to call the engine. It is not an end-user identity.
type Client struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	APIKeyHash string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
